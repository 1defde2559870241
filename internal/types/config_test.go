package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffCurves_ZeroWaitReturnsInitial(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg.DeltaPingInitial, cfg.DeltaPingBackoff(0.0))
	assert.Equal(t, cfg.SkillSimilarityInitial, cfg.SkillSimilarityBackoff(0.0))
	assert.Equal(t, cfg.MaxSkillDisparityInitial, cfg.SkillDisparityBackoff(0.0))
}

func TestBackoffCurves_MonotoneAndBounded(t *testing.T) {
	cfg := DefaultConfig()

	waits := []float64{0, 1, 5, 10, 30, 60, 120, 600, 10000}
	curves := []struct {
		name string
		f    func(float64) float64
		max  float64
	}{
		{"delta_ping", cfg.DeltaPingBackoff, cfg.DeltaPingMax},
		{"skill_similarity", cfg.SkillSimilarityBackoff, cfg.SkillSimilarityMax},
		{"skill_disparity", cfg.SkillDisparityBackoff, cfg.MaxSkillDisparityMax},
	}

	for _, curve := range curves {
		prev := curve.f(waits[0])
		for _, wait := range waits[1:] {
			v := curve.f(wait)
			assert.GreaterOrEqual(t, v, prev, "%s must be non-decreasing", curve.name)
			assert.LessOrEqual(t, v, curve.max, "%s must stay under its max", curve.name)
			prev = v
		}
	}
}

func TestBackoff_UsesSecondsNotTicks(t *testing.T) {
	cfg := DefaultConfig()

	// Two ticks at a 5s interval is 10 seconds of wait.
	waitSeconds := 2.0 * cfg.TickInterval
	expected := cfg.DeltaPingInitial + cfg.DeltaPingRate*waitSeconds
	assert.Equal(t, expected, cfg.DeltaPingBackoff(waitSeconds))
}

func TestRegionOverrides_FallBackToGlobal(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg.MaxPing, cfg.RegionMaxPing(RegionEurope))
	assert.Equal(t, cfg.DeltaPingBackoff(20.0), cfg.RegionDeltaPingBackoff(RegionEurope, 20.0))

	override := 150.0
	initial := 5.0
	cfg.RegionConfigs[RegionEurope] = RegionConfig{
		MaxPing:          &override,
		DeltaPingInitial: &initial,
	}

	assert.Equal(t, 150.0, cfg.RegionMaxPing(RegionEurope))
	assert.Equal(t, initial+cfg.DeltaPingRate*20.0, cfg.RegionDeltaPingBackoff(RegionEurope, 20.0))
	// Other regions still use global values.
	assert.Equal(t, cfg.MaxPing, cfg.RegionMaxPing(RegionNorthAmerica))
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	maxPing := 120.0
	cfg.RegionConfigs[RegionAsiaPacific] = RegionConfig{MaxPing: &maxPing}
	cfg.Gamma = 3.5

	text, err := cfg.ToJSON()
	require.NoError(t, err)

	decoded, err := ParseConfig(text)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)

	// A second encode produces identical text.
	text2, err := decoded.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, text, text2)
}

func TestParseConfig_RejectsUnknownField(t *testing.T) {
	cfg := DefaultConfig()
	text, err := cfg.ToJSON()
	require.NoError(t, err)

	bad := text[:len(text)-1] + `,"no_such_field":1}`
	_, err = ParseConfig(bad)
	assert.Error(t, err)
}

func TestParseConfig_RejectsMalformedText(t *testing.T) {
	_, err := ParseConfig("{not json")
	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchmakingConfig)
	}{
		{"negative max_ping", func(c *MatchmakingConfig) { c.MaxPing = -1 }},
		{"zero tick_interval", func(c *MatchmakingConfig) { c.TickInterval = 0 }},
		{"zero buckets", func(c *MatchmakingConfig) { c.NumSkillBuckets = 0 }},
		{"zero top-k", func(c *MatchmakingConfig) { c.TopKCandidates = 0 }},
		{"party fraction above one", func(c *MatchmakingConfig) { c.PartyPlayerFraction = 1.5 }},
		{"search probability below zero", func(c *MatchmakingConfig) { c.SearchStartProbability = -0.1 }},
		{"zero batch size", func(c *MatchmakingConfig) { c.SkillUpdateBatchSize = 0 }},
		{"zero experience window", func(c *MatchmakingConfig) { c.Retention.ExperienceWindowSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
