package matchmaker

import (
	"sort"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// RunTick performs one matchmaking pass over the search queue. It refreshes
// every search object's acceptable DC set from its current wait time, seeds
// lobbies from the longest-waiting searchers, and greedily extends each seed
// with its nearest feasible neighbors. Committed lobbies reserve a server on
// their data center. The returned set holds the ids of search objects that
// were merged into a lobby; the caller removes them from the queue.
func (m *Matchmaker) RunTick(
	searches []*types.SearchObject,
	players map[int]*types.Player,
	dataCenters []*types.DataCenter,
	parties map[int]*types.Party,
	currentTick uint64,
) ([]MatchResult, map[int]bool) {
	var results []MatchResult
	matched := map[int]bool{}

	// Refresh acceptable DCs: intersection of member sets at the current wait.
	for _, search := range searches {
		waitTime := search.WaitTime(currentTick, m.cfg.TickInterval)
		acceptable := map[int]bool{}
		first := true
		for _, pid := range search.PlayerIDs {
			player, ok := players[pid]
			if !ok {
				continue
			}
			memberDCs := map[int]bool{}
			for _, dcID := range player.AcceptableDCs(waitTime, m.cfg, dataCenters) {
				memberDCs[dcID] = true
			}
			if first {
				acceptable = memberDCs
				first = false
				continue
			}
			for dcID := range acceptable {
				if !memberDCs[dcID] {
					delete(acceptable, dcID)
				}
			}
		}
		search.AcceptableDCs = acceptable
	}

	// Longest-waiting searchers seed first; ties go to the smaller id.
	order := make([]int, len(searches))
	for i := range searches {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		waitA := searches[order[a]].WaitTime(currentTick, m.cfg.TickInterval)
		waitB := searches[order[b]].WaitTime(currentTick, m.cfg.TickInterval)
		if waitA != waitB {
			return waitA > waitB
		}
		return searches[order[a]].ID < searches[order[b]].ID
	})

	for _, playlist := range types.AllPlaylists {
		requiredSize := playlist.RequiredPlayers()

		var playlistSearches []int
		for _, idx := range order {
			s := searches[idx]
			if !matched[s.ID] && s.AcceptablePlaylists[playlist] {
				playlistSearches = append(playlistSearches, idx)
			}
		}
		if len(playlistSearches) == 0 {
			continue
		}

		for _, seedIdx := range playlistSearches {
			seed := searches[seedIdx]
			if matched[seed.ID] {
				continue
			}

			type candidate struct {
				idx  int
				dist float64
			}
			var candidates []candidate
			for _, idx := range playlistSearches {
				if idx == seedIdx || matched[searches[idx].ID] {
					continue
				}
				candidates = append(candidates, candidate{idx: idx, dist: m.Distance(seed, searches[idx])})
			}
			sort.Slice(candidates, func(a, b int) bool {
				if candidates[a].dist != candidates[b].dist {
					return candidates[a].dist < candidates[b].dist
				}
				return searches[candidates[a].idx].ID < searches[candidates[b].idx].ID
			})
			if len(candidates) > m.cfg.TopKCandidates {
				candidates = candidates[:m.cfg.TopKCandidates]
			}

			lobby := []*types.SearchObject{seed}
			lobbySize := seed.Size()

			for _, cand := range candidates {
				if lobbySize >= requiredSize {
					break
				}
				candidateSearch := searches[cand.idx]
				if lobbySize+candidateSearch.Size() > requiredSize {
					continue
				}
				extended := append(append([]*types.SearchObject{}, lobby...), candidateSearch)
				if _, ok := m.CheckFeasibility(extended, playlist, currentTick, dataCenters, players); ok {
					lobby = extended
					lobbySize += candidateSearch.Size()
				}
			}

			if lobbySize != requiredSize {
				continue
			}
			feasibility, ok := m.CheckFeasibility(lobby, playlist, currentTick, dataCenters, players)
			if !ok {
				continue
			}

			results = append(results, m.commitLobby(lobby, playlist, feasibility, players, dataCenters, parties, currentTick))
			for _, s := range lobby {
				matched[s.ID] = true
			}
		}
	}

	return results, matched
}

func (m *Matchmaker) commitLobby(
	lobby []*types.SearchObject,
	playlist types.Playlist,
	feasibility FeasibilityResult,
	players map[int]*types.Player,
	dataCenters []*types.DataCenter,
	parties map[int]*types.Party,
	currentTick uint64,
) MatchResult {
	quality := m.Quality(lobby, players, feasibility.DataCenterID, currentTick)

	var searchIDs, allPlayers []int
	var searchTimes []float64
	for _, search := range lobby {
		searchIDs = append(searchIDs, search.ID)
		allPlayers = append(allPlayers, search.PlayerIDs...)
		searchTimes = append(searchTimes, search.WaitTime(currentTick, m.cfg.TickInterval))
	}

	var totalDeltaPing float64
	regions := map[types.Region]bool{}
	for _, pid := range allPlayers {
		player, ok := players[pid]
		if !ok {
			continue
		}
		if ping, ok := player.DCPings[feasibility.DataCenterID]; ok {
			totalDeltaPing += ping - player.BestPing
		}
		regions[player.Region] = true
	}
	avgDeltaPing := totalDeltaPing / float64(len(allPlayers))

	teams := m.BalanceTeams(allPlayers, players, parties, playlist)

	for _, dc := range dataCenters {
		if dc.ID == feasibility.DataCenterID {
			dc.Reserve(playlist)
			break
		}
	}

	return MatchResult{
		SearchIDs:      searchIDs,
		PlayerIDs:      allPlayers,
		Teams:          teams,
		Playlist:       playlist,
		DataCenterID:   feasibility.DataCenterID,
		QualityScore:   quality,
		SkillDisparity: feasibility.SkillDisparity,
		AvgDeltaPing:   avgDeltaPing,
		SearchTimes:    searchTimes,
		IsCrossRegion:  len(regions) >= 2,
	}
}
