package types

import (
	"fmt"
	"sort"
)

// MaxPartySize is the largest party any playlist accepts.
const MaxPartySize = 6

// Party is an ordered group of 1-6 players who search together. The first
// member is the leader. The aggregates are denormalized from the members and
// recomputed on every membership change.
type Party struct {
	ID        int   `json:"id"`
	PlayerIDs []int `json:"player_ids"`
	LeaderID  int   `json:"leader_id"`

	AvgSkill                 float64 `json:"avg_skill"`
	SkillDisparity           float64 `json:"skill_disparity"`
	AvgSkillPercentile       float64 `json:"avg_skill_percentile"`
	SkillPercentileDisparity float64 `json:"skill_percentile_disparity"`

	PreferredPlaylists map[Playlist]bool   `json:"preferred_playlists"`
	Platforms          map[Platform]int    `json:"platforms"`
	InputDevices       map[InputDevice]int `json:"input_devices"`
	AvgLocation        Location            `json:"avg_location"`
}

// Size returns the member count.
func (p *Party) Size() int {
	return len(p.PlayerIDs)
}

// NewPartyFromPlayers builds a party from member players, computing all
// aggregates. The first player becomes the leader.
func NewPartyFromPlayers(id int, players []*Player) (*Party, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("cannot create party with no players")
	}

	party := &Party{
		ID:       id,
		LeaderID: players[0].ID,
	}
	for _, p := range players {
		party.PlayerIDs = append(party.PlayerIDs, p.ID)
	}
	party.recomputeAggregates(players)
	return party, nil
}

// UpdateAggregates recomputes the denormalized aggregates from the current
// member list.
func (p *Party) UpdateAggregates(players map[int]*Player) {
	var members []*Player
	for _, id := range p.PlayerIDs {
		if pl, ok := players[id]; ok {
			members = append(members, pl)
		}
	}
	if len(members) == 0 {
		return
	}
	p.recomputeAggregates(members)
}

func (p *Party) recomputeAggregates(members []*Player) {
	count := float64(len(members))

	minSkill, maxSkill := members[0].Skill, members[0].Skill
	minPct, maxPct := members[0].SkillPercentile, members[0].SkillPercentile
	var sumSkill, sumPct, sumLat, sumLon float64

	playlists := make(map[Playlist]bool, len(members[0].PreferredPlaylists))
	for pl := range members[0].PreferredPlaylists {
		playlists[pl] = true
	}
	platforms := map[Platform]int{}
	inputs := map[InputDevice]int{}

	for i, m := range members {
		sumSkill += m.Skill
		sumPct += m.SkillPercentile
		sumLat += m.Location.Lat
		sumLon += m.Location.Lon
		if m.Skill < minSkill {
			minSkill = m.Skill
		}
		if m.Skill > maxSkill {
			maxSkill = m.Skill
		}
		if m.SkillPercentile < minPct {
			minPct = m.SkillPercentile
		}
		if m.SkillPercentile > maxPct {
			maxPct = m.SkillPercentile
		}
		platforms[m.Platform]++
		inputs[m.InputDevice]++

		if i > 0 {
			for pl := range playlists {
				if !m.PreferredPlaylists[pl] {
					delete(playlists, pl)
				}
			}
		}
	}

	p.AvgSkill = sumSkill / count
	p.SkillDisparity = maxSkill - minSkill
	p.AvgSkillPercentile = sumPct / count
	p.SkillPercentileDisparity = maxPct - minPct
	p.PreferredPlaylists = playlists
	p.Platforms = platforms
	p.InputDevices = inputs
	p.AvgLocation = Location{Lat: sumLat / count, Lon: sumLon / count}
}

// ToSearchObject snapshots the party into a queue entry. The acceptable DC
// set is the intersection of every member's individually acceptable set at
// zero wait.
func (p *Party) ToSearchObject(searchID int, startTick uint64, players map[int]*Player, cfg MatchmakingConfig, dataCenters []*DataCenter) *SearchObject {
	acceptable := map[int]bool{}
	first := true
	for _, id := range p.PlayerIDs {
		member, ok := players[id]
		if !ok {
			continue
		}
		memberDCs := map[int]bool{}
		for _, dcID := range member.AcceptableDCs(0.0, cfg, dataCenters) {
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

	playerIDs := make([]int, len(p.PlayerIDs))
	copy(playerIDs, p.PlayerIDs)

	playlists := make(map[Playlist]bool, len(p.PreferredPlaylists))
	for pl := range p.PreferredPlaylists {
		playlists[pl] = true
	}
	platforms := make(map[Platform]int, len(p.Platforms))
	for k, v := range p.Platforms {
		platforms[k] = v
	}
	inputs := make(map[InputDevice]int, len(p.InputDevices))
	for k, v := range p.InputDevices {
		inputs[k] = v
	}

	return &SearchObject{
		ID:                  searchID,
		PlayerIDs:           playerIDs,
		AvgSkillPercentile:  p.AvgSkillPercentile,
		SkillDisparity:      p.SkillPercentileDisparity,
		AvgLocation:         p.AvgLocation,
		Platforms:           platforms,
		InputDevices:        inputs,
		AcceptablePlaylists: playlists,
		SearchStartTick:     startTick,
		AcceptableDCs:       acceptable,
	}
}

// SortedMemberIDs returns the member ids in ascending order.
func (p *Party) SortedMemberIDs() []int {
	ids := make([]int, len(p.PlayerIDs))
	copy(ids, p.PlayerIDs)
	sort.Ints(ids)
	return ids
}
