package simulation

import (
	"math"
	"math/rand"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// aggregateExperience averages the last windowSize experience vectors into
// the z vector of the retention logistic.
func aggregateExperience(experience []types.ExperienceVector, windowSize int) types.ExperienceSample {
	if windowSize > len(experience) {
		windowSize = len(experience)
	}
	recent := experience[len(experience)-windowSize:]

	var sample types.ExperienceSample
	for _, e := range recent {
		sample.AvgDeltaPing += e.AvgDeltaPing
		sample.AvgSearchTime += e.AvgSearchTime
		if e.WasBlowout {
			sample.BlowoutRate++
		}
		if e.Won {
			sample.WinRate++
		}
		sample.AvgPerformance += e.Performance
	}
	n := float64(len(recent))
	sample.AvgDeltaPing /= n
	sample.AvgSearchTime /= n
	sample.BlowoutRate /= n
	sample.WinRate /= n
	sample.AvgPerformance /= n
	return sample
}

func (s *Simulation) retentionLogit(sample types.ExperienceSample) float64 {
	cfg := s.Config.Retention
	return cfg.BaseContinueLogit +
		cfg.ThetaPing*sample.AvgDeltaPing +
		cfg.ThetaSearchTime*sample.AvgSearchTime +
		cfg.ThetaBlowout*sample.BlowoutRate +
		cfg.ThetaWinRate*sample.WinRate +
		cfg.ThetaPerformance*sample.AvgPerformance
}

func clampProb(p float64) float64 {
	if !isFiniteProb(p) {
		return 0.5
	}
	return math.Max(0.0, math.Min(1.0, p))
}

// continueProbability evaluates the continue-or-quit logistic over the
// player's current-session experience window. Players with no history fall
// back to the base logit.
func (s *Simulation) continueProbability(player *types.Player) float64 {
	if len(player.RecentExperience) == 0 {
		return clampProb(logistic(s.Config.Retention.BaseContinueLogit))
	}

	sample := aggregateExperience(player.RecentExperience, s.Config.Retention.ExperienceWindowSize)
	logit := s.retentionLogit(sample)

	s.logitSamples = append(s.logitSamples, logit)
	if len(s.logitSamples) > 100 {
		s.logitSamples = s.logitSamples[1:]
	}
	s.experienceSamples = append(s.experienceSamples, sample)
	if len(s.experienceSamples) > 100 {
		s.experienceSamples = s.experienceSamples[1:]
	}

	return clampProb(logistic(logit))
}

// returnProbability evaluates the same logistic over the experience the
// player remembers from their last session, falling back to the current
// window and then to the base logit.
func (s *Simulation) returnProbability(player *types.Player) float64 {
	var source []types.ExperienceVector
	switch {
	case len(player.LastSessionExperience) > 0:
		source = player.LastSessionExperience
	case len(player.RecentExperience) > 0:
		source = player.RecentExperience
	default:
		return clampProb(logistic(s.Config.Retention.BaseContinueLogit))
	}

	sample := aggregateExperience(source, s.Config.Retention.ExperienceWindowSize)
	return clampProb(logistic(s.retentionLogit(sample)))
}

// applyRetentionDecision updates a player's counters for a completed match
// and rolls the continue/quit gate. A quit closes the session: the current
// experience window is preserved for the return model, the session length is
// recorded, and the player goes offline.
func (s *Simulation) applyRetentionDecision(playerID int, match *types.Match, won, isBlowout bool, rng *rand.Rand) {
	player, ok := s.Players[playerID]
	if !ok {
		return
	}

	matchDeltaPing := 0.0
	if len(player.RecentDeltaPings) > 0 {
		matchDeltaPing = player.RecentDeltaPings[len(player.RecentDeltaPings)-1]
	}
	matchSearchTime := 0.0
	if len(player.RecentSearchTimes) > 0 {
		matchSearchTime = player.RecentSearchTimes[len(player.RecentSearchTimes)-1]
	}
	matchPerformance := 0.5
	if perf, ok := match.PlayerPerformances[playerID]; ok {
		matchPerformance = perf
	}

	player.MatchesPlayed++
	if won {
		player.Wins++
	} else {
		player.Losses++
	}
	player.PushRecentBlowout(isBlowout)
	player.CurrentMatch = nil

	player.PushExperience(types.ExperienceVector{
		AvgDeltaPing:  matchDeltaPing,
		AvgSearchTime: matchSearchTime,
		WasBlowout:    isBlowout,
		Won:           won,
		Performance:   matchPerformance,
	}, s.Config.Retention.ExperienceWindowSize)

	continueProb := s.continueProbability(player)
	s.continueProbSamples = append(s.continueProbSamples, continueProb)
	if len(s.continueProbSamples) > 1000 {
		s.continueProbSamples = s.continueProbSamples[1:]
	}

	if rng.Float64() < continueProb {
		s.continuesByBucket[player.SkillBucket]++
		player.State = types.StateInLobby
		player.MatchesInSession++
		return
	}

	s.quitsByBucket[player.SkillBucket]++
	s.Stats.RecentQuits = append(s.Stats.RecentQuits, types.QuitSample{Tick: s.CurrentTick, Count: 1})

	player.LastSessionExperience = append([]types.ExperienceVector{}, player.RecentExperience...)
	tick := s.CurrentTick
	player.LastSessionEndTick = &tick
	player.RecentExperience = nil
	player.State = types.StateOffline

	if player.MatchesInSession > 0 {
		sessionLength := player.MatchesInSession
		s.totalMatchesInSessions += sessionLength
		s.Stats.TotalSessionsCompleted++

		for len(s.Stats.SessionLengthDistribution) <= sessionLength {
			s.Stats.SessionLengthDistribution = append(s.Stats.SessionLengthDistribution, 0)
		}
		s.Stats.SessionLengthDistribution[sessionLength]++

		player.SessionStartTick = nil
		player.MatchesInSession = 0
	}
}
