package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePartyMember(id int, skill, percentile float64) *Player {
	p := NewPlayer(id, Location{Lat: float64(id), Lon: float64(id)}, skill)
	p.SkillPercentile = percentile
	return p
}

func TestNewPartyFromPlayers_Aggregates(t *testing.T) {
	members := []*Player{
		makePartyMember(1, 0.5, 0.6),
		makePartyMember(2, 0.3, 0.4),
		makePartyMember(3, 0.7, 0.8),
	}

	party, err := NewPartyFromPlayers(7, members)
	require.NoError(t, err)

	assert.Equal(t, 7, party.ID)
	assert.Equal(t, []int{1, 2, 3}, party.PlayerIDs)
	assert.Equal(t, 1, party.LeaderID)
	assert.InDelta(t, 0.5, party.AvgSkill, 1e-9)
	assert.InDelta(t, 0.4, party.SkillDisparity, 1e-9)
	assert.InDelta(t, 0.6, party.AvgSkillPercentile, 1e-9)
	assert.InDelta(t, 0.4, party.SkillPercentileDisparity, 1e-9)
	assert.InDelta(t, 2.0, party.AvgLocation.Lat, 1e-9)
}

func TestNewPartyFromPlayers_EmptyFails(t *testing.T) {
	_, err := NewPartyFromPlayers(1, nil)
	assert.Error(t, err)
}

func TestPartyPlaylists_Intersection(t *testing.T) {
	a := makePartyMember(1, 0.0, 0.5)
	a.PreferredPlaylists = map[Playlist]bool{
		PlaylistTeamDeathmatch: true,
		PlaylistDomination:     true,
	}
	b := makePartyMember(2, 0.0, 0.5)
	b.PreferredPlaylists = map[Playlist]bool{
		PlaylistTeamDeathmatch: true,
		PlaylistGroundWar:      true,
	}

	party, err := NewPartyFromPlayers(1, []*Player{a, b})
	require.NoError(t, err)

	assert.Equal(t, map[Playlist]bool{PlaylistTeamDeathmatch: true}, party.PreferredPlaylists)
}

func TestUpdateAggregates_TracksMembershipChange(t *testing.T) {
	players := map[int]*Player{
		1: makePartyMember(1, 0.2, 0.3),
		2: makePartyMember(2, 0.8, 0.9),
		3: makePartyMember(3, 0.5, 0.6),
	}

	party, err := NewPartyFromPlayers(1, []*Player{players[1], players[2]})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, party.AvgSkill, 1e-9)

	party.PlayerIDs = append(party.PlayerIDs, 3)
	party.UpdateAggregates(players)

	assert.InDelta(t, 0.5, party.AvgSkill, 1e-9)
	assert.InDelta(t, 0.6, party.SkillDisparity, 1e-9)
	assert.Equal(t, map[Platform]int{PlatformPC: 3}, party.Platforms)
}

func TestToSearchObject_IntersectsMemberDCs(t *testing.T) {
	cfg := DefaultConfig()

	dcs := []*DataCenter{
		NewDataCenter(0, "US-East", Location{Lat: 39.0, Lon: -77.0}, RegionNorthAmerica),
		NewDataCenter(1, "US-West", Location{Lat: 37.0, Lon: -122.0}, RegionNorthAmerica),
	}

	a := makePartyMember(1, 0.0, 0.5)
	a.Region = RegionNorthAmerica
	a.DCPings = map[int]float64{0: 30.0, 1: 35.0}
	a.RefreshBestDC()

	// Second member only accepts DC 0: DC 1 is far past their delta budget.
	b := makePartyMember(2, 0.0, 0.5)
	b.Region = RegionNorthAmerica
	b.DCPings = map[int]float64{0: 30.0, 1: 90.0}
	b.RefreshBestDC()

	players := map[int]*Player{1: a, 2: b}
	party, err := NewPartyFromPlayers(1, []*Player{a, b})
	require.NoError(t, err)

	search := party.ToSearchObject(11, 3, players, cfg, dcs)

	assert.Equal(t, 11, search.ID)
	assert.Equal(t, uint64(3), search.SearchStartTick)
	assert.Equal(t, []int{1, 2}, search.PlayerIDs)
	assert.Equal(t, map[int]bool{0: true}, search.AcceptableDCs)
	assert.Equal(t, 2, search.Size())
}
