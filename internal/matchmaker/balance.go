package matchmaker

import (
	"math"
	"sort"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// exactBalanceNodeBudget caps the branch-and-bound search so a pathological
// party mix cannot stall the tick.
const exactBalanceNodeBudget = 200000

// exactBalanceMaxPlayers bounds the modes eligible for exact balancing.
const exactBalanceMaxPlayers = 12

// partyEntry is an atomic unit of team assignment: a whole party, or a solo
// player treated as a party of one.
type partyEntry struct {
	memberIDs []int
	totalSkill float64
	avgSkill   float64
}

// BalanceTeams partitions the committed roster into the playlist's team
// count, keeping every party intact on a single team. Free-for-all gives
// each player their own team. Small two-team modes use exact subset balancing
// when enabled, falling back to a snake draft whenever the search fails.
func (m *Matchmaker) BalanceTeams(
	playerIDs []int,
	players map[int]*types.Player,
	parties map[int]*types.Party,
	playlist types.Playlist,
) [][]int {
	teamCount := playlist.TeamCount()

	if teamCount == len(playerIDs) {
		teams := make([][]int, 0, len(playerIDs))
		for _, pid := range playerIDs {
			teams = append(teams, []int{pid})
		}
		return teams
	}

	entries := groupByParty(playerIDs, players, parties)

	// Highest average skill first; ties go to the smaller leading member id.
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].avgSkill != entries[b].avgSkill {
			return entries[a].avgSkill > entries[b].avgSkill
		}
		return entries[a].memberIDs[0] < entries[b].memberIDs[0]
	})

	if teamCount == 2 && len(playerIDs) <= exactBalanceMaxPlayers && m.cfg.UseExactTeamBalancing {
		if teams, ok := exactBalance(entries, len(playerIDs)/2); ok {
			return teams
		}
	}

	return snakeDraft(entries, teamCount)
}

func groupByParty(playerIDs []int, players map[int]*types.Player, parties map[int]*types.Party) []partyEntry {
	var entries []partyEntry
	entryByParty := map[int]int{}

	for _, pid := range playerIDs {
		player, ok := players[pid]
		if !ok {
			continue
		}
		if player.PartyID != nil {
			if idx, seen := entryByParty[*player.PartyID]; seen {
				entries[idx].memberIDs = append(entries[idx].memberIDs, pid)
				entries[idx].totalSkill += player.Skill
				continue
			}
			entryByParty[*player.PartyID] = len(entries)
		}
		entries = append(entries, partyEntry{
			memberIDs:  []int{pid},
			totalSkill: player.Skill,
		})
	}

	for i := range entries {
		entries[i].avgSkill = entries[i].totalSkill / float64(len(entries[i].memberIDs))
	}
	return entries
}

// exactBalance solves the constrained subset-sum over party entries: pick
// entries for team A totalling exactly halfSize players while minimizing the
// skill-sum difference against team B. Branch-and-bound with early pruning
// and a node budget.
func exactBalance(entries []partyEntry, halfSize int) ([][]int, bool) {
	var totalSkill float64
	var totalPlayers int
	suffixSizes := make([]int, len(entries)+1)
	for i := len(entries) - 1; i >= 0; i-- {
		suffixSizes[i] = suffixSizes[i+1] + len(entries[i].memberIDs)
	}
	for _, e := range entries {
		totalSkill += e.totalSkill
		totalPlayers += len(e.memberIDs)
	}
	if totalPlayers != halfSize*2 {
		return nil, false
	}

	bestDiff := math.Inf(1)
	var bestMask []bool
	mask := make([]bool, len(entries))
	nodes := 0
	found := false

	var visit func(idx, countA int, sumA float64)
	visit = func(idx, countA int, sumA float64) {
		nodes++
		if nodes > exactBalanceNodeBudget {
			return
		}
		if countA > halfSize || countA+suffixSizes[idx] < halfSize {
			return
		}
		if idx == len(entries) {
			if countA != halfSize {
				return
			}
			diff := math.Abs(sumA - (totalSkill - sumA))
			if diff < bestDiff {
				bestDiff = diff
				bestMask = append([]bool{}, mask...)
				found = true
			}
			return
		}

		mask[idx] = true
		visit(idx+1, countA+len(entries[idx].memberIDs), sumA+entries[idx].totalSkill)
		mask[idx] = false
		visit(idx+1, countA, sumA)
	}
	visit(0, 0, 0)

	if !found {
		return nil, false
	}

	teams := make([][]int, 2)
	for i, e := range entries {
		team := 1
		if bestMask[i] {
			team = 0
		}
		teams[team] = append(teams[team], e.memberIDs...)
	}
	return teams, true
}

// snakeDraft assigns whole entries to teams in the 0..T-1, T-1..0 pattern,
// strongest entries first.
func snakeDraft(entries []partyEntry, teamCount int) [][]int {
	teams := make([][]int, teamCount)
	forward := true
	teamIdx := 0

	for _, entry := range entries {
		teams[teamIdx] = append(teams[teamIdx], entry.memberIDs...)

		if forward {
			if teamIdx == teamCount-1 {
				forward = false
			} else {
				teamIdx++
			}
		} else {
			if teamIdx == 0 {
				forward = true
			} else {
				teamIdx--
			}
		}
	}
	return teams
}
