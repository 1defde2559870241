// Package matchmaker implements the per-tick lobby assembly: the pairwise
// distance metric, the feasibility predicate under wait-time backoff, quality
// scoring, and team balancing.
package matchmaker

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// Matchmaker assembles lobbies from the search queue under a fixed
// configuration snapshot.
type Matchmaker struct {
	cfg types.MatchmakingConfig
}

// New creates a matchmaker for the given configuration.
func New(cfg types.MatchmakingConfig) *Matchmaker {
	return &Matchmaker{cfg: cfg}
}

// FeasibilityResult is the successful outcome of a feasibility check: the
// chosen data center and the realized percentile spread.
type FeasibilityResult struct {
	DataCenterID   int
	SkillDisparity float64
}

// MatchResult describes one committed lobby.
type MatchResult struct {
	SearchIDs      []int
	PlayerIDs      []int
	Teams          [][]int
	Playlist       types.Playlist
	DataCenterID   int
	QualityScore   float64
	SkillDisparity float64
	AvgDeltaPing   float64
	SearchTimes    []float64
	IsCrossRegion  bool
}

// Distance is the scalar matchmaking distance between two search objects:
// a weighted sum of normalized geographic distance, percentile difference,
// and input-device / platform mixing penalties. Symmetric and non-negative.
func (m *Matchmaker) Distance(a, b *types.SearchObject) float64 {
	geoDist := a.AvgLocation.DistanceKm(b.AvgLocation) / 20000.0
	skillDist := math.Abs(a.AvgSkillPercentile - b.AvgSkillPercentile)
	inputDist := inputDeviceDistance(a, b)
	platformDist := platformDistance(a, b)

	return m.cfg.WeightGeo*geoDist +
		m.cfg.WeightSkill*skillDist +
		m.cfg.WeightInput*inputDist +
		m.cfg.WeightPlatform*platformDist
}

func inputDeviceDistance(a, b *types.SearchObject) float64 {
	aMkb := a.InputDevices[types.InputMouseKeyboard]
	bMkb := b.InputDevices[types.InputMouseKeyboard]
	aCtrl := a.InputDevices[types.InputController]
	bCtrl := b.InputDevices[types.InputController]

	if (aMkb > 0 && bCtrl > 0) || (aCtrl > 0 && bMkb > 0) {
		return 0.5
	}
	return 0.0
}

func platformDistance(a, b *types.SearchObject) float64 {
	for platform := range a.Platforms {
		if b.Platforms[platform] > 0 {
			return 0.0
		}
	}
	return 0.3
}

// CheckFeasibility decides whether the candidate lobby can be committed for
// the playlist: playlist compatibility, size, skill containment, skill
// spread, a non-empty common DC set, and an available server. On success it
// returns the chosen DC and the realized percentile spread.
func (m *Matchmaker) CheckFeasibility(
	searches []*types.SearchObject,
	playlist types.Playlist,
	currentTick uint64,
	dataCenters []*types.DataCenter,
	players map[int]*types.Player,
) (FeasibilityResult, bool) {
	for _, search := range searches {
		if !search.AcceptablePlaylists[playlist] {
			return FeasibilityResult{}, false
		}
	}

	totalSize := lo.SumBy(searches, func(s *types.SearchObject) int { return s.Size() })
	if totalSize > playlist.RequiredPlayers() {
		return FeasibilityResult{}, false
	}

	// Skill containment: [pi_min, pi_max] must sit inside every searcher's
	// backed-off window.
	piMin, piMax := searches[0].AvgSkillPercentile, searches[0].AvgSkillPercentile
	for _, search := range searches[1:] {
		piMin = math.Min(piMin, search.AvgSkillPercentile)
		piMax = math.Max(piMax, search.AvgSkillPercentile)
	}

	for _, search := range searches {
		waitTime := search.WaitTime(currentTick, m.cfg.TickInterval)
		fSkill := m.cfg.SkillSimilarityBackoff(waitTime)
		if piMin < search.AvgSkillPercentile-fSkill || piMax > search.AvgSkillPercentile+fSkill {
			return FeasibilityResult{}, false
		}
	}

	// Skill spread: bounded by the tightest searcher.
	spread := piMax - piMin
	maxSpreadAllowed := math.MaxFloat64
	for _, search := range searches {
		waitTime := search.WaitTime(currentTick, m.cfg.TickInterval)
		maxSpreadAllowed = math.Min(maxSpreadAllowed, m.cfg.SkillDisparityBackoff(waitTime))
	}
	if spread > maxSpreadAllowed {
		return FeasibilityResult{}, false
	}

	commonDCs := commonAcceptableDCs(searches)
	if len(commonDCs) == 0 {
		return FeasibilityResult{}, false
	}

	dcID, ok := m.pickDataCenter(commonDCs, searches, playlist, dataCenters, players)
	if !ok {
		return FeasibilityResult{}, false
	}

	return FeasibilityResult{DataCenterID: dcID, SkillDisparity: spread}, true
}

func commonAcceptableDCs(searches []*types.SearchObject) []int {
	common := map[int]bool{}
	for dcID := range searches[0].AcceptableDCs {
		common[dcID] = true
	}
	for _, search := range searches[1:] {
		for dcID := range common {
			if !search.AcceptableDCs[dcID] {
				delete(common, dcID)
			}
		}
	}
	ids := lo.Keys(common)
	sort.Ints(ids)
	return ids
}

// pickDataCenter selects an available server among the common DCs, trying
// the lobby's primary region first, then regions adjacent to it, then the
// rest. Within a tier DCs are visited in id order.
func (m *Matchmaker) pickDataCenter(
	commonDCs []int,
	searches []*types.SearchObject,
	playlist types.Playlist,
	dataCenters []*types.DataCenter,
	players map[int]*types.Player,
) (int, bool) {
	dcByID := make(map[int]*types.DataCenter, len(dataCenters))
	for _, dc := range dataCenters {
		dcByID[dc.ID] = dc
	}

	primary := primaryRegion(searches, players)
	adjacent := map[types.Region]bool{}
	for _, r := range primary.AdjacentRegions() {
		adjacent[r] = true
	}

	tiers := [3][]int{}
	for _, dcID := range commonDCs {
		dc, ok := dcByID[dcID]
		if !ok {
			continue
		}
		switch {
		case dc.Region == primary:
			tiers[0] = append(tiers[0], dcID)
		case adjacent[dc.Region]:
			tiers[1] = append(tiers[1], dcID)
		default:
			tiers[2] = append(tiers[2], dcID)
		}
	}

	for _, tier := range tiers {
		for _, dcID := range tier {
			if dcByID[dcID].AvailableServers(playlist) > 0 {
				return dcID, true
			}
		}
	}
	return 0, false
}

// primaryRegion is the plurality region over the member players, ties broken
// by the fixed region order.
func primaryRegion(searches []*types.SearchObject, players map[int]*types.Player) types.Region {
	counts := map[types.Region]int{}
	for _, search := range searches {
		for _, pid := range search.PlayerIDs {
			if p, ok := players[pid]; ok {
				counts[p.Region]++
			}
		}
	}

	best := types.RegionOther
	bestCount := -1
	for _, region := range types.AllRegions {
		if counts[region] > bestCount {
			best = region
			bestCount = counts[region]
		}
	}
	return best
}

// Quality scores a committed lobby in [0, 1]: a weighted sum of ping quality,
// skill balance, and a wait-fairness bonus, each clipped to [0, 1].
func (m *Matchmaker) Quality(
	searches []*types.SearchObject,
	players map[int]*types.Player,
	dcID int,
	currentTick uint64,
) float64 {
	var totalDeltaPing float64
	var playerCount int
	for _, search := range searches {
		for _, pid := range search.PlayerIDs {
			player, ok := players[pid]
			if !ok {
				continue
			}
			if ping, ok := player.DCPings[dcID]; ok {
				totalDeltaPing += ping - player.BestPing
				playerCount++
			}
		}
	}
	avgDeltaPing := 0.0
	if playerCount > 0 {
		avgDeltaPing = totalDeltaPing / float64(playerCount)
	}
	pingQuality := 1.0 - math.Min(avgDeltaPing/m.cfg.MaxPing, 1.0)

	var mean float64
	for _, search := range searches {
		mean += search.AvgSkillPercentile
	}
	mean /= float64(len(searches))
	var variance float64
	if len(searches) > 1 {
		for _, search := range searches {
			d := search.AvgSkillPercentile - mean
			variance += d * d
		}
		variance /= float64(len(searches))
	}
	skillBalanceQuality := 1.0 - math.Min(variance*4.0, 1.0)

	var avgWait float64
	for _, search := range searches {
		avgWait += search.WaitTime(currentTick, m.cfg.TickInterval)
	}
	avgWait /= float64(len(searches))
	waitQuality := math.Min(avgWait/60.0, 1.0)

	return m.cfg.QualityWeightPing*pingQuality +
		m.cfg.QualityWeightSkillBalance*skillBalanceQuality +
		m.cfg.QualityWeightWaitTime*waitQuality
}
