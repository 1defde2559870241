package simulation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/admiralorbiter/okqueue/internal/matchmaker"
	"github.com/admiralorbiter/okqueue/internal/types"
)

// createMatches registers each committed lobby as an active match and moves
// its players to the in-match state.
func (s *Simulation) createMatches(results []matchmaker.MatchResult, rng *rand.Rand) {
	for _, result := range results {
		matchID := s.nextMatchID
		s.nextMatchID++

		teamSkills := make([]float64, 0, len(result.Teams))
		for _, team := range result.Teams {
			var sum float64
			for _, pid := range team {
				if player, ok := s.Players[pid]; ok {
					sum += player.Skill
				}
			}
			teamSkills = append(teamSkills, sum/float64(len(team)))
		}

		teamSkillDiff := 0.0
		if len(teamSkills) >= 2 {
			teamSkillDiff = teamSkills[0] - teamSkills[1]
		}
		s.Stats.TeamSkillDifferenceSamples = append(s.Stats.TeamSkillDifferenceSamples, math.Abs(teamSkillDiff))

		winProbTeam0 := 0.5
		if len(teamSkills) >= 2 {
			winProbTeam0 = logistic(s.Config.Gamma * teamSkillDiff)
		}
		if !isFiniteProb(winProbTeam0) {
			winProbTeam0 = 0.5
		}
		imbalance := math.Abs(winProbTeam0-0.5) * 2.0

		durationVariance := 0.8 + rng.Float64()*0.4
		durationTicks := uint64(result.Playlist.AvgMatchDurationSeconds() * durationVariance / s.Config.TickInterval)

		match := &types.Match{
			ID:                        matchID,
			Playlist:                  result.Playlist,
			DataCenterID:              result.DataCenterID,
			Teams:                     result.Teams,
			StartTick:                 s.CurrentTick,
			ExpectedDuration:          durationTicks,
			TeamSkills:                teamSkills,
			QualityScore:              result.QualityScore,
			SkillDisparity:            result.SkillDisparity,
			AvgDeltaPing:              result.AvgDeltaPing,
			ExpectedScoreDifferential: teamSkillDiff * result.Playlist.ScoreDifferentialScale(),
			WinProbabilityImbalance:   imbalance,
			PlayerPerformances:        map[int]float64{},
		}

		hasParty := false
		for _, pid := range result.PlayerIDs {
			if player, ok := s.Players[pid]; ok && player.PartyID != nil {
				hasParty = true
				break
			}
		}
		if hasParty {
			s.Stats.PartyMatchCount++
		} else {
			s.Stats.SoloMatchCount++
		}
		s.Stats.CrossRegionMatchSamples = append(s.Stats.CrossRegionMatchSamples, result.IsCrossRegion)

		for _, pid := range result.PlayerIDs {
			player, ok := s.Players[pid]
			if !ok {
				continue
			}

			if player.SearchStartTick != nil {
				searchTime := float64(s.CurrentTick-*player.SearchStartTick) * s.Config.TickInterval
				player.PushRecentSearchTime(searchTime)
				s.Stats.SearchTimeSamples = append(s.Stats.SearchTimeSamples, searchTime)
				if player.PartyID != nil {
					s.Stats.PartySearchTimes = append(s.Stats.PartySearchTimes, searchTime)
				} else {
					s.Stats.SoloSearchTimes = append(s.Stats.SoloSearchTimes, searchTime)
				}
			}

			if ping, ok := player.DCPings[result.DataCenterID]; ok {
				deltaPing := ping - player.BestPing
				player.PushRecentDeltaPing(deltaPing)
				s.Stats.DeltaPingSamples = append(s.Stats.DeltaPingSamples, deltaPing)
			}

			player.State = types.StateInMatch
			id := matchID
			player.CurrentMatch = &id
			player.SearchStartTick = nil
		}

		s.Stats.SkillDisparitySamples = append(s.Stats.SkillDisparitySamples, result.SkillDisparity)
		s.Matches[matchID] = match
		s.Stats.TotalMatches++
		s.qualityScoreSum += result.QualityScore

		if s.log != nil {
			s.log.WithFields(logrus.Fields{
				"match_id":    matchID,
				"playlist":    result.Playlist,
				"data_center": result.DataCenterID,
				"quality":     result.QualityScore,
				"players":     len(result.PlayerIDs),
			}).Debug("Match committed")
		}
	}
}

// processMatchCompletions finishes every match whose duration has elapsed:
// frees the server, samples the outcome, generates performance indices,
// applies the skill update, and runs the continue/quit decision for every
// participant.
func (s *Simulation) processMatchCompletions(rng *rand.Rand) {
	var completed []int
	for id, match := range s.Matches {
		if s.CurrentTick >= match.StartTick+match.ExpectedDuration {
			completed = append(completed, id)
		}
	}
	sort.Ints(completed)

	for _, matchID := range completed {
		match := s.Matches[matchID]
		delete(s.Matches, matchID)

		if dc := s.dataCenterByID(match.DataCenterID); dc != nil {
			dc.Release(match.Playlist)
		}

		s.Stats.PerPlaylistMatchCounts[match.Playlist]++

		winningTeam, isBlowout := s.determineOutcome(match, rng)
		if isBlowout {
			s.Stats.BlowoutCount++
			s.Stats.PerPlaylistBlowoutCounts[match.Playlist]++
		}
		if match.BlowoutSeverity != nil {
			s.Stats.BlowoutSeverityCounts[*match.BlowoutSeverity]++
		}

		allPlayerIDs := match.AllPlayerIDs()
		var lobbyAvgSkill float64
		if len(allPlayerIDs) > 0 {
			for _, pid := range allPlayerIDs {
				if player, ok := s.Players[pid]; ok {
					lobbyAvgSkill += player.Skill
				}
			}
			lobbyAvgSkill /= float64(len(allPlayerIDs))
		}

		for _, pid := range allPlayerIDs {
			player, ok := s.Players[pid]
			if !ok {
				continue
			}

			performance := s.generatePerformance(player, lobbyAvgSkill, rng)
			match.PlayerPerformances[pid] = performance

			s.Stats.PerformanceSamples = append(s.Stats.PerformanceSamples, performance)
			if len(s.Stats.PerformanceSamples) > 1000 {
				s.Stats.PerformanceSamples = s.Stats.PerformanceSamples[1:]
			}

			if s.Config.EnableSkillEvolution {
				expected := expectedPerformance(player, lobbyAvgSkill)
				update := s.Config.SkillLearningRate * (performance - expected)
				player.Skill = math.Max(-1.0, math.Min(1.0, player.Skill+update))
				player.PushRecentPerformance(performance)
				s.Stats.TotalSkillUpdates++
			}
		}

		if s.Config.EnableSkillEvolution {
			s.matchesSinceRerank++
			if s.matchesSinceRerank >= s.Config.SkillUpdateBatchSize {
				s.UpdateSkillPercentiles()
				s.recordSkillSnapshot()
				s.matchesSinceRerank = 0
			}
		}

		for teamIdx, team := range match.Teams {
			won := teamIdx == winningTeam
			for _, pid := range team {
				s.applyRetentionDecision(pid, match, won, isBlowout, rng)
			}
		}
	}
}

// determineOutcome samples the winner from the logistic win probability and
// classifies blowouts. Non-finite probabilities recover to documented
// defaults so the simulation never stalls on NaN.
func (s *Simulation) determineOutcome(match *types.Match, rng *rand.Rand) (winningTeam int, isBlowout bool) {
	if len(match.TeamSkills) < 2 {
		return 0, false
	}

	skillDiff := match.TeamSkills[0] - match.TeamSkills[1]

	pTeam0 := logistic(s.Config.Gamma * skillDiff)
	if !isFiniteProb(pTeam0) {
		pTeam0 = 0.5
	}
	winningTeam = 1
	if rng.Float64() < pTeam0 {
		winningTeam = 0
	}

	normalizedSkillDiff := math.Min(math.Abs(skillDiff)/2.0, 1.0)
	blowoutProb := s.Config.BlowoutSkillCoefficient*normalizedSkillDiff +
		s.Config.BlowoutImbalanceCoefficient*match.WinProbabilityImbalance
	blowoutProb = math.Max(0.0, math.Min(1.0, blowoutProb))
	if !isFiniteProb(blowoutProb) {
		blowoutProb = 0.0
	}

	isBlowout = rng.Float64() < blowoutProb

	if isBlowout && blowoutProb >= s.Config.BlowoutMildThreshold {
		var severity types.BlowoutSeverity
		switch {
		case blowoutProb < s.Config.BlowoutModerateThreshold:
			severity = types.BlowoutMild
		case blowoutProb < s.Config.BlowoutSevereThreshold:
			severity = types.BlowoutModerate
		default:
			severity = types.BlowoutSevere
		}
		match.BlowoutSeverity = &severity
	}

	return winningTeam, isBlowout
}

// generatePerformance draws the performance index for a player in a
// completed match: a base term in skill and skill advantage over the lobby,
// plus uniform noise approximating centered Gaussian, clamped to [0, 1].
func (s *Simulation) generatePerformance(player *types.Player, lobbyAvgSkill float64, rng *rand.Rand) float64 {
	noiseRange := s.Config.PerformanceNoiseStd * 3.0
	noise := uniformRange(rng, -noiseRange, noiseRange)
	base := performanceBase(player.Skill, lobbyAvgSkill)
	return math.Max(0.0, math.Min(1.0, base+noise))
}

// expectedPerformance is the deterministic part of the performance model,
// used as the reference in the skill update.
func expectedPerformance(player *types.Player, lobbyAvgSkill float64) float64 {
	return math.Max(0.0, math.Min(1.0, performanceBase(player.Skill, lobbyAvgSkill)))
}

func performanceBase(skill, lobbyAvgSkill float64) float64 {
	skillAdvantage := skill - lobbyAvgSkill
	return 0.3 + (skill+1.0)/2.0*0.4 + skillAdvantage*0.2
}

// UpdateSkillPercentiles re-ranks the whole population: percentiles become
// (rank + 0.5) / n over raw skill, and buckets are rederived.
func (s *Simulation) UpdateSkillPercentiles() {
	type ranked struct {
		id    int
		skill float64
	}
	rankings := make([]ranked, 0, len(s.Players))
	for _, pid := range s.sortedPlayerIDs() {
		rankings = append(rankings, ranked{id: pid, skill: s.Players[pid].Skill})
	}
	sort.SliceStable(rankings, func(a, b int) bool {
		return rankings[a].skill < rankings[b].skill
	})

	n := float64(len(rankings))
	for rank, r := range rankings {
		player := s.Players[r.id]
		player.SkillPercentile = (float64(rank) + 0.5) / n
		player.UpdateSkillBucket(s.Config.NumSkillBuckets)
	}
}

// recordSkillSnapshot appends the per-bucket mean skill to the bounded
// distribution history.
func (s *Simulation) recordSkillSnapshot() {
	if !s.Config.EnableSkillEvolution {
		return
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for _, pid := range s.sortedPlayerIDs() {
		player := s.Players[pid]
		sums[player.SkillBucket] += player.Skill
		counts[player.SkillBucket]++
	}

	means := make(map[int]float64, len(sums))
	for bucket, sum := range sums {
		means[bucket] = sum / float64(counts[bucket])
	}

	s.Stats.SkillDistributionOverTime = append(s.Stats.SkillDistributionOverTime, types.SkillSnapshot{
		Tick:        s.CurrentTick,
		BucketMeans: means,
	})
	if len(s.Stats.SkillDistributionOverTime) > 1000 {
		s.Stats.SkillDistributionOverTime = s.Stats.SkillDistributionOverTime[1:]
	}
}

func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func isFiniteProb(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}
