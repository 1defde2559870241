package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admiralorbiter/okqueue/internal/types"
)

func retentionSim(t *testing.T, retention types.RetentionConfig) *Simulation {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.Retention = retention
	return New(cfg, 42, nil)
}

func TestContinueProbability_RespondsToBlowouts(t *testing.T) {
	// With theta_blowout = -2 and base logit 2, five straight blowouts land
	// exactly at sigma(0) = 0.5 while a clean record stays at sigma(2).
	sim := retentionSim(t, types.RetentionConfig{
		ThetaBlowout:         -2.0,
		BaseContinueLogit:    2.0,
		ExperienceWindowSize: 5,
	})

	blownOut := types.NewPlayer(1, types.Location{}, 0.0)
	for i := 0; i < 5; i++ {
		blownOut.PushExperience(types.ExperienceVector{WasBlowout: true}, 5)
	}
	assert.InDelta(t, 0.5, sim.continueProbability(blownOut), 1e-9)

	clean := types.NewPlayer(2, types.Location{}, 0.0)
	for i := 0; i < 5; i++ {
		clean.PushExperience(types.ExperienceVector{WasBlowout: false}, 5)
	}
	expected := 1.0 / (1.0 + math.Exp(-2.0))
	assert.InDelta(t, expected, sim.continueProbability(clean), 1e-9)
	assert.InDelta(t, 0.88, expected, 0.01)
}

func TestContinueProbability_NoHistoryUsesBaseLogit(t *testing.T) {
	sim := retentionSim(t, types.RetentionConfig{
		BaseContinueLogit:    0.0,
		ExperienceWindowSize: 5,
	})

	player := types.NewPlayer(1, types.Location{}, 0.0)
	assert.InDelta(t, 0.5, sim.continueProbability(player), 1e-9)
}

func TestContinueProbability_AlwaysInUnitRange(t *testing.T) {
	sim := retentionSim(t, types.RetentionConfig{
		ThetaPing:            -5.0,
		ThetaSearchTime:      -5.0,
		ThetaBlowout:         -10.0,
		ThetaWinRate:         10.0,
		ThetaPerformance:     10.0,
		BaseContinueLogit:    50.0,
		ExperienceWindowSize: 5,
	})

	player := types.NewPlayer(1, types.Location{}, 0.0)
	player.PushExperience(types.ExperienceVector{
		AvgDeltaPing:  500.0,
		AvgSearchTime: 300.0,
		WasBlowout:    true,
		Won:           true,
		Performance:   1.0,
	}, 5)

	p := sim.continueProbability(player)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestReturnProbability_UsesLastSessionExperience(t *testing.T) {
	sim := retentionSim(t, types.RetentionConfig{
		ThetaWinRate:         1.0,
		BaseContinueLogit:    0.0,
		ExperienceWindowSize: 5,
	})

	player := types.NewPlayer(1, types.Location{}, 0.0)

	// No history at all: base logit.
	assert.InDelta(t, 0.5, sim.returnProbability(player), 1e-9)

	// A remembered winning session raises the return chance.
	player.LastSessionExperience = []types.ExperienceVector{
		{Won: true}, {Won: true}, {Won: true},
	}
	expected := 1.0 / (1.0 + math.Exp(-1.0))
	assert.InDelta(t, expected, sim.returnProbability(player), 1e-9)

	// Without a preserved session the current window is the fallback.
	player.LastSessionExperience = nil
	player.RecentExperience = []types.ExperienceVector{{Won: false}}
	assert.InDelta(t, 0.5, sim.returnProbability(player), 1e-9)
}

func TestQuitPreservesSessionExperience(t *testing.T) {
	// A retention config that always quits: base logit very negative.
	cfg := types.DefaultConfig()
	cfg.Retention = types.RetentionConfig{
		BaseContinueLogit:    -100.0,
		ExperienceWindowSize: 5,
	}
	sim := New(cfg, 42, nil)

	player := types.NewPlayer(1, types.Location{}, 0.0)
	player.State = types.StateInMatch
	player.MatchesInSession = 2
	sim.Players[1] = player

	match := &types.Match{
		ID:                 0,
		Playlist:           types.PlaylistTeamDeathmatch,
		Teams:              [][]int{{1}},
		PlayerPerformances: map[int]float64{1: 0.7},
	}

	rng := newTestRNG()
	sim.applyRetentionDecision(1, match, true, false, rng)

	assert.Equal(t, types.StateOffline, player.State)
	require.NotNil(t, player.LastSessionEndTick)
	assert.Len(t, player.LastSessionExperience, 1)
	assert.Empty(t, player.RecentExperience)
	assert.Equal(t, 0, player.MatchesInSession)
	assert.Equal(t, 1, sim.Stats.TotalSessionsCompleted)
	require.GreaterOrEqual(t, len(sim.Stats.SessionLengthDistribution), 3)
	assert.Equal(t, 1, sim.Stats.SessionLengthDistribution[2])
}

func TestAggregateExperience_AveragesWindow(t *testing.T) {
	experience := []types.ExperienceVector{
		{AvgDeltaPing: 10, AvgSearchTime: 20, WasBlowout: true, Won: true, Performance: 0.4},
		{AvgDeltaPing: 30, AvgSearchTime: 40, WasBlowout: false, Won: false, Performance: 0.8},
	}

	sample := aggregateExperience(experience, 5)
	assert.InDelta(t, 20.0, sample.AvgDeltaPing, 1e-9)
	assert.InDelta(t, 30.0, sample.AvgSearchTime, 1e-9)
	assert.InDelta(t, 0.5, sample.BlowoutRate, 1e-9)
	assert.InDelta(t, 0.5, sample.WinRate, 1e-9)
	assert.InDelta(t, 0.6, sample.AvgPerformance, 1e-9)

	// A window of one only sees the newest entry.
	sample = aggregateExperience(experience, 1)
	assert.InDelta(t, 30.0, sample.AvgDeltaPing, 1e-9)
}
