package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// RetentionConfig holds the logistic retention model coefficients.
// P(continue) = sigma(theta_0 + theta^T z) over the experience vector z.
type RetentionConfig struct {
	ThetaPing            float64 `json:"theta_ping"`
	ThetaSearchTime      float64 `json:"theta_search_time"`
	ThetaBlowout         float64 `json:"theta_blowout"`
	ThetaWinRate         float64 `json:"theta_win_rate"`
	ThetaPerformance     float64 `json:"theta_performance"`
	BaseContinueLogit    float64 `json:"base_continue_logit"`
	ExperienceWindowSize int     `json:"experience_window_size"`
}

// RegionConfig carries optional per-region overrides. Nil fields fall back
// to the global configuration.
type RegionConfig struct {
	MaxPing               *float64 `json:"max_ping,omitempty"`
	DeltaPingInitial      *float64 `json:"delta_ping_initial,omitempty"`
	DeltaPingRate         *float64 `json:"delta_ping_rate,omitempty"`
	SkillSimilarityInitial *float64 `json:"skill_similarity_initial,omitempty"`
	SkillSimilarityRate    *float64 `json:"skill_similarity_rate,omitempty"`
}

// MatchmakingConfig is the single structured record controlling the whole
// simulation: tolerance curves, distance and quality weights, outcome model
// coefficients, and the retention model.
type MatchmakingConfig struct {
	MaxPing float64 `json:"max_ping"`

	// Delta ping backoff curve
	DeltaPingInitial float64 `json:"delta_ping_initial"`
	DeltaPingRate    float64 `json:"delta_ping_rate"`
	DeltaPingMax     float64 `json:"delta_ping_max"`

	// Skill similarity backoff curve
	SkillSimilarityInitial float64 `json:"skill_similarity_initial"`
	SkillSimilarityRate    float64 `json:"skill_similarity_rate"`
	SkillSimilarityMax     float64 `json:"skill_similarity_max"`

	// Max skill disparity backoff curve
	MaxSkillDisparityInitial float64 `json:"max_skill_disparity_initial"`
	MaxSkillDisparityRate    float64 `json:"max_skill_disparity_rate"`
	MaxSkillDisparityMax     float64 `json:"max_skill_disparity_max"`

	// Distance metric weights
	WeightGeo      float64 `json:"weight_geo"`
	WeightSkill    float64 `json:"weight_skill"`
	WeightInput    float64 `json:"weight_input"`
	WeightPlatform float64 `json:"weight_platform"`

	// Quality score weights
	QualityWeightPing         float64 `json:"quality_weight_ping"`
	QualityWeightSkillBalance float64 `json:"quality_weight_skill_balance"`
	QualityWeightWaitTime     float64 `json:"quality_weight_wait_time"`

	// Fraction of the population auto-assigned to parties of 2-4
	PartyPlayerFraction float64 `json:"party_player_fraction"`

	// Probability an in-lobby player (or party leader) starts a search
	// on a given tick
	SearchStartProbability float64 `json:"search_start_probability"`

	TickInterval    float64 `json:"tick_interval"`
	NumSkillBuckets int     `json:"num_skill_buckets"`
	TopKCandidates  int     `json:"top_k_candidates"`

	UseExactTeamBalancing bool `json:"use_exact_team_balancing"`

	// Outcome model
	Gamma                       float64 `json:"gamma"`
	BlowoutSkillCoefficient     float64 `json:"blowout_skill_coefficient"`
	BlowoutImbalanceCoefficient float64 `json:"blowout_imbalance_coefficient"`
	BlowoutMildThreshold        float64 `json:"blowout_mild_threshold"`
	BlowoutModerateThreshold    float64 `json:"blowout_moderate_threshold"`
	BlowoutSevereThreshold      float64 `json:"blowout_severe_threshold"`

	// Skill evolution
	SkillLearningRate    float64 `json:"skill_learning_rate"`
	PerformanceNoiseStd  float64 `json:"performance_noise_std"`
	EnableSkillEvolution bool    `json:"enable_skill_evolution"`
	SkillUpdateBatchSize int     `json:"skill_update_batch_size"`

	RegionConfigs map[Region]RegionConfig `json:"region_configs"`

	Retention RetentionConfig `json:"retention_config"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() MatchmakingConfig {
	return MatchmakingConfig{
		MaxPing:                  200.0,
		DeltaPingInitial:         10.0,
		DeltaPingRate:            2.0,
		DeltaPingMax:             100.0,
		SkillSimilarityInitial:   0.05,
		SkillSimilarityRate:      0.01,
		SkillSimilarityMax:       0.5,
		MaxSkillDisparityInitial: 0.1,
		MaxSkillDisparityRate:    0.02,
		MaxSkillDisparityMax:     0.8,
		WeightGeo:                0.3,
		WeightSkill:              0.4,
		WeightInput:              0.15,
		WeightPlatform:           0.15,
		QualityWeightPing:         0.4,
		QualityWeightSkillBalance: 0.4,
		QualityWeightWaitTime:     0.2,
		PartyPlayerFraction:       0.5,
		SearchStartProbability:    0.3,
		TickInterval:              5.0,
		NumSkillBuckets:           10,
		TopKCandidates:            50,
		UseExactTeamBalancing:     true,
		Gamma:                     2.0,
		BlowoutSkillCoefficient:     0.4,
		BlowoutImbalanceCoefficient: 0.3,
		BlowoutMildThreshold:        0.15,
		BlowoutModerateThreshold:    0.35,
		BlowoutSevereThreshold:      0.6,
		SkillLearningRate:    0.01,
		PerformanceNoiseStd:  0.15,
		EnableSkillEvolution: true,
		SkillUpdateBatchSize: 10,
		RegionConfigs:        map[Region]RegionConfig{},
		Retention: RetentionConfig{
			ThetaPing:            -0.02,
			ThetaSearchTime:      -0.015,
			ThetaBlowout:         -0.5,
			ThetaWinRate:         0.8,
			ThetaPerformance:     0.6,
			BaseContinueLogit:    0.0,
			ExperienceWindowSize: 5,
		},
	}
}

// ParseConfig decodes the canonical JSON text form of a configuration.
// Unknown fields and out-of-range values are rejected without modifying
// any engine state.
func ParseConfig(text string) (MatchmakingConfig, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var cfg MatchmakingConfig
	if err := dec.Decode(&cfg); err != nil {
		return MatchmakingConfig{}, fmt.Errorf("config parse error: %w", err)
	}
	if cfg.RegionConfigs == nil {
		cfg.RegionConfigs = map[Region]RegionConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return MatchmakingConfig{}, err
	}
	return cfg, nil
}

// ToJSON returns the canonical text form of the configuration. The encoding
// round-trips without loss through ParseConfig.
func (c MatchmakingConfig) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("config encode error: %w", err)
	}
	return string(data), nil
}

// Validate checks value ranges. It reports the first violation found.
func (c MatchmakingConfig) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"max_ping", c.MaxPing},
		{"delta_ping_initial", c.DeltaPingInitial},
		{"delta_ping_rate", c.DeltaPingRate},
		{"delta_ping_max", c.DeltaPingMax},
		{"skill_similarity_initial", c.SkillSimilarityInitial},
		{"skill_similarity_rate", c.SkillSimilarityRate},
		{"skill_similarity_max", c.SkillSimilarityMax},
		{"max_skill_disparity_initial", c.MaxSkillDisparityInitial},
		{"max_skill_disparity_rate", c.MaxSkillDisparityRate},
		{"max_skill_disparity_max", c.MaxSkillDisparityMax},
		{"weight_geo", c.WeightGeo},
		{"weight_skill", c.WeightSkill},
		{"weight_input", c.WeightInput},
		{"weight_platform", c.WeightPlatform},
		{"quality_weight_ping", c.QualityWeightPing},
		{"quality_weight_skill_balance", c.QualityWeightSkillBalance},
		{"quality_weight_wait_time", c.QualityWeightWaitTime},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.v) || math.IsInf(chk.v, 0) {
			return fmt.Errorf("config field %s is not finite", chk.name)
		}
		if chk.v < 0 {
			return fmt.Errorf("config field %s must be non-negative, got %v", chk.name, chk.v)
		}
	}
	if c.PartyPlayerFraction < 0 || c.PartyPlayerFraction > 1 || math.IsNaN(c.PartyPlayerFraction) {
		return fmt.Errorf("config field party_player_fraction must be in [0, 1], got %v", c.PartyPlayerFraction)
	}
	if c.SearchStartProbability < 0 || c.SearchStartProbability > 1 || math.IsNaN(c.SearchStartProbability) {
		return fmt.Errorf("config field search_start_probability must be in [0, 1], got %v", c.SearchStartProbability)
	}
	if c.TickInterval <= 0 || math.IsNaN(c.TickInterval) {
		return fmt.Errorf("config field tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.NumSkillBuckets < 1 {
		return fmt.Errorf("config field num_skill_buckets must be at least 1, got %d", c.NumSkillBuckets)
	}
	if c.TopKCandidates < 1 {
		return fmt.Errorf("config field top_k_candidates must be at least 1, got %d", c.TopKCandidates)
	}
	if c.SkillUpdateBatchSize < 1 {
		return fmt.Errorf("config field skill_update_batch_size must be at least 1, got %d", c.SkillUpdateBatchSize)
	}
	if c.Retention.ExperienceWindowSize < 1 {
		return fmt.Errorf("config field experience_window_size must be at least 1, got %d", c.Retention.ExperienceWindowSize)
	}
	for region := range c.RegionConfigs {
		found := false
		for _, r := range AllRegions {
			if region == r {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("config field region_configs has unknown region %q", region)
		}
	}
	return nil
}

func backoff(initial, rate, max, waitTime float64) float64 {
	return math.Min(initial+rate*waitTime, max)
}

// DeltaPingBackoff returns the additive ping tolerance at the given wait time.
func (c MatchmakingConfig) DeltaPingBackoff(waitTime float64) float64 {
	return backoff(c.DeltaPingInitial, c.DeltaPingRate, c.DeltaPingMax, waitTime)
}

// SkillSimilarityBackoff returns the percentile window half-width at the
// given wait time.
func (c MatchmakingConfig) SkillSimilarityBackoff(waitTime float64) float64 {
	return backoff(c.SkillSimilarityInitial, c.SkillSimilarityRate, c.SkillSimilarityMax, waitTime)
}

// SkillDisparityBackoff returns the maximum intra-lobby percentile spread at
// the given wait time.
func (c MatchmakingConfig) SkillDisparityBackoff(waitTime float64) float64 {
	return backoff(c.MaxSkillDisparityInitial, c.MaxSkillDisparityRate, c.MaxSkillDisparityMax, waitTime)
}

// RegionMaxPing returns the per-region max ping, falling back to the global
// value when no override is configured.
func (c MatchmakingConfig) RegionMaxPing(region Region) float64 {
	if rc, ok := c.RegionConfigs[region]; ok && rc.MaxPing != nil {
		return *rc.MaxPing
	}
	return c.MaxPing
}

// RegionDeltaPingBackoff returns the ping tolerance curve with per-region
// overrides applied to the initial value and rate.
func (c MatchmakingConfig) RegionDeltaPingBackoff(region Region, waitTime float64) float64 {
	initial := c.DeltaPingInitial
	rate := c.DeltaPingRate
	if rc, ok := c.RegionConfigs[region]; ok {
		if rc.DeltaPingInitial != nil {
			initial = *rc.DeltaPingInitial
		}
		if rc.DeltaPingRate != nil {
			rate = *rc.DeltaPingRate
		}
	}
	return backoff(initial, rate, c.DeltaPingMax, waitTime)
}

// RegionSkillSimilarityBackoff returns the skill window curve with per-region
// overrides applied to the initial value and rate.
func (c MatchmakingConfig) RegionSkillSimilarityBackoff(region Region, waitTime float64) float64 {
	initial := c.SkillSimilarityInitial
	rate := c.SkillSimilarityRate
	if rc, ok := c.RegionConfigs[region]; ok {
		if rc.SkillSimilarityInitial != nil {
			initial = *rc.SkillSimilarityInitial
		}
		if rc.SkillSimilarityRate != nil {
			rate = *rc.SkillSimilarityRate
		}
	}
	return backoff(initial, rate, c.SkillSimilarityMax, waitTime)
}
