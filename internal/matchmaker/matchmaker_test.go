package matchmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admiralorbiter/okqueue/internal/types"
)

func soloSearch(id int, playerID int, percentile float64, loc types.Location, dcs ...int) *types.SearchObject {
	acceptable := map[int]bool{}
	for _, dc := range dcs {
		acceptable[dc] = true
	}
	return &types.SearchObject{
		ID:                 id,
		PlayerIDs:          []int{playerID},
		AvgSkillPercentile: percentile,
		AvgLocation:        loc,
		Platforms:          map[types.Platform]int{types.PlatformPC: 1},
		InputDevices:       map[types.InputDevice]int{types.InputController: 1},
		AcceptablePlaylists: map[types.Playlist]bool{
			types.PlaylistTeamDeathmatch: true,
		},
		SearchStartTick: 0,
		AcceptableDCs:   acceptable,
	}
}

func testPlayer(id int, skill float64, region types.Region, pings map[int]float64) *types.Player {
	p := types.NewPlayer(id, types.Location{}, skill)
	p.Region = region
	p.DCPings = pings
	p.RefreshBestDC()
	return p
}

func TestDistance_ZeroForIdenticalSearches(t *testing.T) {
	m := New(types.DefaultConfig())
	s := soloSearch(1, 1, 0.5, types.Location{Lat: 10.0, Lon: 20.0}, 0)

	assert.Equal(t, 0.0, m.Distance(s, s))
}

func TestDistance_SymmetricAndNonNegative(t *testing.T) {
	m := New(types.DefaultConfig())
	a := soloSearch(1, 1, 0.3, types.Location{Lat: 40.0, Lon: -95.0}, 0)
	b := soloSearch(2, 2, 0.7, types.Location{Lat: 50.0, Lon: 10.0}, 0)
	b.InputDevices = map[types.InputDevice]int{types.InputMouseKeyboard: 1}
	b.Platforms = map[types.Platform]int{types.PlatformXbox: 1}

	dist := m.Distance(a, b)
	assert.Greater(t, dist, 0.0)
	assert.InDelta(t, dist, m.Distance(b, a), 1e-12)
}

func TestDistance_InputAndPlatformPenalties(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.WeightGeo = 0.0
	cfg.WeightSkill = 0.0
	m := New(cfg)

	loc := types.Location{}
	a := soloSearch(1, 1, 0.5, loc, 0)
	b := soloSearch(2, 2, 0.5, loc, 0)

	// Same platform and input: no penalty.
	assert.Equal(t, 0.0, m.Distance(a, b))

	// Mixed input devices cost 0.5, disjoint platforms 0.3.
	b.InputDevices = map[types.InputDevice]int{types.InputMouseKeyboard: 1}
	b.Platforms = map[types.Platform]int{types.PlatformPlayStation: 1}
	expected := cfg.WeightInput*0.5 + cfg.WeightPlatform*0.3
	assert.InDelta(t, expected, m.Distance(a, b), 1e-12)
}

func TestCheckFeasibility_SkillContainmentFails(t *testing.T) {
	// Two solo searchers at percentiles 0.4 and 0.6 with zero wait: the
	// default 0.05 half-width cannot contain the [0.4, 0.6] range.
	m := New(types.DefaultConfig())

	a := soloSearch(1, 1, 0.4, types.Location{}, 0)
	b := soloSearch(2, 2, 0.6, types.Location{}, 0)

	players := map[int]*types.Player{
		1: testPlayer(1, -0.2, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
		2: testPlayer(2, 0.2, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
	}
	dcs := []*types.DataCenter{
		types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica),
	}

	_, ok := m.CheckFeasibility([]*types.SearchObject{a, b}, types.PlaylistTeamDeathmatch, 0, dcs, players)
	assert.False(t, ok)
}

func TestCheckFeasibility_TightSkillSucceeds(t *testing.T) {
	m := New(types.DefaultConfig())

	a := soloSearch(1, 1, 0.50, types.Location{}, 0)
	b := soloSearch(2, 2, 0.52, types.Location{}, 0)

	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
		2: testPlayer(2, 0.05, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
	}
	dcs := []*types.DataCenter{
		types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica),
	}

	result, ok := m.CheckFeasibility([]*types.SearchObject{a, b}, types.PlaylistTeamDeathmatch, 0, dcs, players)
	require.True(t, ok)
	assert.Equal(t, 0, result.DataCenterID)
	assert.InDelta(t, 0.02, result.SkillDisparity, 1e-9)
}

func TestCheckFeasibility_RejectsWrongPlaylist(t *testing.T) {
	m := New(types.DefaultConfig())
	a := soloSearch(1, 1, 0.5, types.Location{}, 0)

	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
	}
	dcs := []*types.DataCenter{
		types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica),
	}

	_, ok := m.CheckFeasibility([]*types.SearchObject{a}, types.PlaylistDomination, 0, dcs, players)
	assert.False(t, ok)
}

func TestCheckFeasibility_NoCommonDCFails(t *testing.T) {
	m := New(types.DefaultConfig())

	a := soloSearch(1, 1, 0.5, types.Location{}, 0)
	b := soloSearch(2, 2, 0.5, types.Location{}, 1)

	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
		2: testPlayer(2, 0.0, types.RegionNorthAmerica, map[int]float64{1: 30.0}),
	}
	dcs := []*types.DataCenter{
		types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica),
		types.NewDataCenter(1, "US-West", types.Location{}, types.RegionNorthAmerica),
	}

	_, ok := m.CheckFeasibility([]*types.SearchObject{a, b}, types.PlaylistTeamDeathmatch, 0, dcs, players)
	assert.False(t, ok)
}

func TestCheckFeasibility_SaturatedCapacityFails(t *testing.T) {
	m := New(types.DefaultConfig())
	a := soloSearch(1, 1, 0.5, types.Location{}, 0)

	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
	}
	dc := types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica)
	dc.ServerCapacity[types.PlaylistTeamDeathmatch] = 1
	dc.BusyServers[types.PlaylistTeamDeathmatch] = 1

	_, ok := m.CheckFeasibility([]*types.SearchObject{a}, types.PlaylistTeamDeathmatch, 0, []*types.DataCenter{dc}, players)
	assert.False(t, ok)
}

func TestPickDataCenter_PrefersPrimaryRegion(t *testing.T) {
	m := New(types.DefaultConfig())

	a := soloSearch(1, 1, 0.5, types.Location{}, 0, 1, 2)

	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionEurope, map[int]float64{0: 30.0, 1: 35.0, 2: 40.0}),
	}
	dcs := []*types.DataCenter{
		types.NewDataCenter(0, "US-East", types.Location{}, types.RegionNorthAmerica),
		types.NewDataCenter(1, "EU-West", types.Location{}, types.RegionEurope),
		types.NewDataCenter(2, "Asia-East", types.Location{}, types.RegionAsiaPacific),
	}

	result, ok := m.CheckFeasibility([]*types.SearchObject{a}, types.PlaylistTeamDeathmatch, 0, dcs, players)
	require.True(t, ok)
	assert.Equal(t, 1, result.DataCenterID, "EU DC should win for an EU lobby")

	// With the EU DC saturated, an adjacent region (NA for EU) comes next.
	dcs[1].BusyServers[types.PlaylistTeamDeathmatch] = dcs[1].ServerCapacity[types.PlaylistTeamDeathmatch]
	result, ok = m.CheckFeasibility([]*types.SearchObject{a}, types.PlaylistTeamDeathmatch, 0, dcs, players)
	require.True(t, ok)
	assert.Equal(t, 0, result.DataCenterID)
}

func TestQuality_InUnitRange(t *testing.T) {
	m := New(types.DefaultConfig())

	searches := []*types.SearchObject{
		soloSearch(1, 1, 0.2, types.Location{}, 0),
		soloSearch(2, 2, 0.9, types.Location{}, 0),
	}
	players := map[int]*types.Player{
		1: testPlayer(1, 0.0, types.RegionNorthAmerica, map[int]float64{0: 30.0}),
		2: testPlayer(2, 0.0, types.RegionNorthAmerica, map[int]float64{0: 180.0}),
	}

	for _, tick := range []uint64{0, 10, 100, 1000} {
		q := m.Quality(searches, players, 0, tick)
		assert.GreaterOrEqual(t, q, 0.0)
		assert.LessOrEqual(t, q, 1.0)
	}
}
