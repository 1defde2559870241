package simulation

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// percentileIndex returns the sort-and-index percentile of the samples.
// Samples are copied and sorted; empty input yields zero.
func percentileIndex(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	sorted := append([]float64{}, samples...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * p)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanOrZero(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	return stat.Mean(samples, nil)
}

// updateStats recomputes the rolling statistics block at the end of a tick.
func (s *Simulation) updateStats() {
	s.Stats.TimeElapsed = float64(s.CurrentTick) * s.Config.TickInterval
	s.Stats.Ticks = s.CurrentTick
	s.Stats.SkillEvolutionEnabled = s.Config.EnableSkillEvolution

	s.Stats.PlayersOffline = 0
	s.Stats.PlayersInLobby = 0
	s.Stats.PlayersSearching = 0
	s.Stats.PlayersInMatch = 0
	for _, player := range s.Players {
		switch player.State {
		case types.StateOffline:
			s.Stats.PlayersOffline++
		case types.StateInLobby:
			s.Stats.PlayersInLobby++
		case types.StateSearching:
			s.Stats.PlayersSearching++
		case types.StateInMatch:
			s.Stats.PlayersInMatch++
		}
	}

	s.Stats.ActiveMatches = len(s.Matches)

	s.Stats.AvgSearchTime = meanOrZero(s.Stats.SearchTimeSamples)
	s.Stats.SearchTimeP50 = percentileIndex(s.Stats.SearchTimeSamples, 0.5)
	s.Stats.SearchTimeP90 = percentileIndex(s.Stats.SearchTimeSamples, 0.9)
	s.Stats.SearchTimeP99 = percentileIndex(s.Stats.SearchTimeSamples, 0.99)

	s.Stats.AvgDeltaPing = meanOrZero(s.Stats.DeltaPingSamples)
	s.Stats.DeltaPingP50 = percentileIndex(s.Stats.DeltaPingSamples, 0.5)
	s.Stats.DeltaPingP90 = percentileIndex(s.Stats.DeltaPingSamples, 0.9)

	s.Stats.AvgSkillDisparity = meanOrZero(s.Stats.SkillDisparitySamples)

	if s.Stats.TotalMatches > 0 {
		s.Stats.BlowoutRate = float64(s.Stats.BlowoutCount) / float64(s.Stats.TotalMatches)
		s.Stats.AvgMatchQuality = s.qualityScoreSum / float64(s.Stats.TotalMatches)
	}

	s.Stats.PerPlaylistBlowoutRate = map[types.Playlist]float64{}
	for _, playlist := range types.AllPlaylists {
		matchCount := s.Stats.PerPlaylistMatchCounts[playlist]
		if matchCount > 0 {
			blowouts := s.Stats.PerPlaylistBlowoutCounts[playlist]
			s.Stats.PerPlaylistBlowoutRate[playlist] = float64(blowouts) / float64(matchCount)
		}
	}

	s.updateBucketStats()
	s.updateRegionStats()
	s.updateRetentionStats()
	s.updateReturnStats()
	s.updateChurnStats()
	s.updateLeavingRate()
	s.updatePopulationChangeRate()

	// Sample effective population every 10 ticks to bound memory.
	if s.CurrentTick%10 == 0 {
		effective := s.Stats.PlayersInLobby + s.Stats.PlayersSearching + s.Stats.PlayersInMatch
		s.Stats.EffectivePopulationOverTime = append(s.Stats.EffectivePopulationOverTime, types.PopulationSample{
			Tick:       s.CurrentTick,
			Population: effective,
		})
	}

	s.Stats.PartyCount = len(s.Parties)
	if len(s.Parties) > 0 {
		totalSize := 0
		for _, party := range s.Parties {
			totalSize += party.Size()
		}
		s.Stats.AvgPartySize = float64(totalSize) / float64(len(s.Parties))
	} else {
		s.Stats.AvgPartySize = 0.0
	}
}

func (s *Simulation) updateBucketStats() {
	s.Stats.BucketStats = map[int]types.BucketStats{}

	for bucket := 1; bucket <= s.Config.NumSkillBuckets; bucket++ {
		var bucketPlayers []*types.Player
		for _, pid := range s.sortedPlayerIDs() {
			if s.Players[pid].SkillBucket == bucket {
				bucketPlayers = append(bucketPlayers, s.Players[pid])
			}
		}
		if len(bucketPlayers) == 0 {
			continue
		}

		playerCount := float64(len(bucketPlayers))

		var avgSearchTime, avgDeltaPing float64
		for _, p := range bucketPlayers {
			avgSearchTime += meanOrZero(p.RecentSearchTimes)
			avgDeltaPing += meanOrZero(p.RecentDeltaPings)
		}
		avgSearchTime /= playerCount
		avgDeltaPing /= playerCount

		totalWins := lo.SumBy(bucketPlayers, func(p *types.Player) int { return p.Wins })
		totalMatches := lo.SumBy(bucketPlayers, func(p *types.Player) int { return p.MatchesPlayed })
		winRate := 0.0
		if totalMatches > 0 {
			winRate = float64(totalWins) / float64(totalMatches)
		}

		s.Stats.BucketStats[bucket] = types.BucketStats{
			BucketID:      bucket,
			PlayerCount:   len(bucketPlayers),
			AvgSearchTime: avgSearchTime,
			AvgDeltaPing:  avgDeltaPing,
			WinRate:       winRate,
			MatchesPlayed: totalMatches,
		}
	}
}

func (s *Simulation) updateRegionStats() {
	s.Stats.RegionStats = map[types.Region]types.RegionStats{}

	crossRegionRate := 0.0
	if len(s.Stats.CrossRegionMatchSamples) > 0 {
		crossCount := lo.CountBy(s.Stats.CrossRegionMatchSamples, func(b bool) bool { return b })
		crossRegionRate = float64(crossCount) / float64(len(s.Stats.CrossRegionMatchSamples))
	}

	for _, region := range types.AllRegions {
		var regionPlayers []*types.Player
		for _, pid := range s.sortedPlayerIDs() {
			if s.Players[pid].Region == region {
				regionPlayers = append(regionPlayers, s.Players[pid])
			}
		}
		if len(regionPlayers) == 0 {
			continue
		}

		var searchTimes, deltaPings []float64
		for _, p := range regionPlayers {
			searchTimes = append(searchTimes, p.RecentSearchTimes...)
			deltaPings = append(deltaPings, p.RecentDeltaPings...)
		}

		activeMatches := 0
		for _, match := range s.Matches {
			for _, pid := range match.AllPlayerIDs() {
				if player, ok := s.Players[pid]; ok && player.Region == region {
					activeMatches++
					break
				}
			}
		}

		s.Stats.RegionStats[region] = types.RegionStats{
			PlayerCount:          len(regionPlayers),
			AvgSearchTime:        meanOrZero(searchTimes),
			AvgDeltaPing:         meanOrZero(deltaPings),
			BlowoutRate:          s.Stats.BlowoutRate,
			ActiveMatches:        activeMatches,
			CrossRegionMatchRate: crossRegionRate,
		}
	}
}

func (s *Simulation) updateRetentionStats() {
	s.Stats.PerBucketContinueRate = map[int]float64{}
	for bucket, continues := range s.continuesByBucket {
		total := continues + s.quitsByBucket[bucket]
		if total > 0 {
			s.Stats.PerBucketContinueRate[bucket] = float64(continues) / float64(total)
		}
	}
	for bucket, quits := range s.quitsByBucket {
		if _, seen := s.continuesByBucket[bucket]; !seen && quits > 0 {
			s.Stats.PerBucketContinueRate[bucket] = 0.0
		}
	}

	if s.Stats.TotalSessionsCompleted > 0 {
		s.Stats.AvgMatchesPerSession = float64(s.totalMatchesInSessions) / float64(s.Stats.TotalSessionsCompleted)
	} else {
		s.Stats.AvgMatchesPerSession = 0.0
	}

	s.Stats.ActiveSessions = 0
	for _, player := range s.Players {
		if player.State != types.StateOffline {
			s.Stats.ActiveSessions++
		}
	}

	s.Stats.AvgComputedContinueProb = meanOrZero(s.continueProbSamples)
	s.Stats.SampleLogits = append([]float64{}, s.logitSamples...)
	s.Stats.SampleExperiences = append([]types.ExperienceSample{}, s.experienceSamples...)
}

func (s *Simulation) updateReturnStats() {
	s.Stats.PerBucketReturnRate = map[int]float64{}
	for bucket, attempts := range s.returnAttemptsByBucket {
		if attempts > 0 {
			returns := s.returnsByBucket[bucket]
			s.Stats.PerBucketReturnRate[bucket] = float64(returns) / float64(attempts)
		}
	}
}

// updateChurnStats counts players who have been offline past the churn
// threshold as a fraction of the whole population.
func (s *Simulation) updateChurnStats() {
	threshold := s.Stats.ChurnThresholdTicks
	churned := 0
	for _, player := range s.Players {
		if player.State != types.StateOffline || player.LastSessionEndTick == nil {
			continue
		}
		if s.CurrentTick-*player.LastSessionEndTick > threshold {
			churned++
		}
	}
	if len(s.Players) > 0 {
		s.Stats.ChurnRate = float64(churned) / float64(len(s.Players))
	} else {
		s.Stats.ChurnRate = 0.0
	}
}

// updateLeavingRate computes quits per second over the last 100 ticks.
func (s *Simulation) updateLeavingRate() {
	cutoff := uint64(0)
	if s.CurrentTick > 100 {
		cutoff = s.CurrentTick - 100
	}
	recent := s.Stats.RecentQuits[:0]
	for _, quit := range s.Stats.RecentQuits {
		if quit.Tick >= cutoff {
			recent = append(recent, quit)
		}
	}
	s.Stats.RecentQuits = recent

	totalQuits := lo.SumBy(s.Stats.RecentQuits, func(q types.QuitSample) int { return q.Count })
	windowSeconds := 100.0 * s.Config.TickInterval
	s.Stats.PlayersLeavingRate = float64(totalQuits) / windowSeconds
}

// updatePopulationChangeRate estimates the first difference of the effective
// population, smoothed over the most recent records.
func (s *Simulation) updatePopulationChangeRate() {
	effective := s.Stats.PlayersInLobby + s.Stats.PlayersSearching + s.Stats.PlayersInMatch

	s.Stats.PopulationHistory = append(s.Stats.PopulationHistory, types.PopulationSample{
		Tick:       s.CurrentTick,
		Population: effective,
	})
	if len(s.Stats.PopulationHistory) > 200 {
		s.Stats.PopulationHistory = s.Stats.PopulationHistory[1:]
	}

	if len(s.Stats.PopulationHistory) < 2 {
		s.Stats.PopulationChangeRate = 0.0
		return
	}

	historyLen := len(s.Stats.PopulationHistory)
	windowSize := historyLen
	if windowSize > 50 {
		windowSize = 50
	}
	if windowSize < 10 {
		windowSize = historyLen
	}
	recent := s.Stats.PopulationHistory[historyLen-windowSize:]

	first := recent[0]
	last := recent[len(recent)-1]
	tickDiff := last.Tick - first.Tick
	if tickDiff == 0 {
		s.Stats.PopulationChangeRate = 0.0
		return
	}

	seconds := float64(tickDiff) * s.Config.TickInterval
	s.Stats.PopulationChangeRate = (float64(last.Population) - float64(first.Population)) / seconds
}
