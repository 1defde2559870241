package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/admiralorbiter/okqueue/internal/simulation"
	"github.com/admiralorbiter/okqueue/internal/types"
)

// SweepResult is the rollup of one parameter value in a sweep.
type SweepResult struct {
	RunID             string  `json:"run_id"`
	ParameterValue    float64 `json:"parameter_value"`
	AvgSearchTime     float64 `json:"avg_search_time"`
	SearchTimeP90     float64 `json:"search_time_p90"`
	AvgDeltaPing      float64 `json:"avg_delta_ping"`
	DeltaPingP90      float64 `json:"delta_ping_p90"`
	AvgSkillDisparity float64 `json:"avg_skill_disparity"`
	BlowoutRate       float64 `json:"blowout_rate"`
	TotalMatches      int     `json:"total_matches"`
}

// applySweepParameter sets a named configuration field. Unknown names are an
// error, reported before any run starts.
func applySweepParameter(cfg *types.MatchmakingConfig, parameter string, value float64) error {
	switch parameter {
	case "skill_similarity_initial":
		cfg.SkillSimilarityInitial = value
	case "skill_similarity_rate":
		cfg.SkillSimilarityRate = value
	case "skill_similarity_max":
		cfg.SkillSimilarityMax = value
	case "max_skill_disparity_initial":
		cfg.MaxSkillDisparityInitial = value
	case "max_skill_disparity_rate":
		cfg.MaxSkillDisparityRate = value
	case "delta_ping_initial":
		cfg.DeltaPingInitial = value
	case "delta_ping_rate":
		cfg.DeltaPingRate = value
	case "weight_skill":
		cfg.WeightSkill = value
	case "weight_geo":
		cfg.WeightGeo = value
	default:
		return fmt.Errorf("unknown sweep parameter: %s", parameter)
	}
	return nil
}

// RunExperiment performs a single-parameter linear sweep: for each value it
// runs an independent simulation (seed offset by the value index) and
// collects a result rollup. An unknown parameter name fails before any
// partial results are produced.
func RunExperiment(
	baseConfigJSON string,
	parameter string,
	values []float64,
	population int,
	ticksPerRun uint64,
	seed uint64,
) ([]SweepResult, error) {
	baseConfig, err := types.ParseConfig(baseConfigJSON)
	if err != nil {
		return nil, err
	}

	// Validate the parameter name up front so a bad sweep emits nothing.
	probe := baseConfig
	if err := applySweepParameter(&probe, parameter, 0); err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(values))
	for i, value := range values {
		cfg := baseConfig
		if err := applySweepParameter(&cfg, parameter, value); err != nil {
			return nil, err
		}

		sim := simulation.New(cfg, seed+uint64(i), nil)
		sim.InitDefaultDataCenters()
		sim.GeneratePopulation(population)
		sim.Run(ticksPerRun)

		results = append(results, SweepResult{
			RunID:             uuid.NewString(),
			ParameterValue:    value,
			AvgSearchTime:     sim.Stats.AvgSearchTime,
			SearchTimeP90:     sim.Stats.SearchTimeP90,
			AvgDeltaPing:      sim.Stats.AvgDeltaPing,
			DeltaPingP90:      sim.Stats.DeltaPingP90,
			AvgSkillDisparity: sim.Stats.AvgSkillDisparity,
			BlowoutRate:       sim.Stats.BlowoutRate,
			TotalMatches:      sim.Stats.TotalMatches,
		})
	}
	return results, nil
}

// ConfigRunResult is one side of a config comparison.
type ConfigRunResult struct {
	Stats types.SimulationStats `json:"stats"`
}

// ComparisonResult pairs the stats of two configs run at a matched seed.
type ComparisonResult struct {
	RunID   string          `json:"run_id"`
	ConfigA ConfigRunResult `json:"config_a"`
	ConfigB ConfigRunResult `json:"config_b"`
}

// CompareConfigs runs two configurations against identically seeded
// populations and returns both stats blocks.
func CompareConfigs(
	configAJSON, configBJSON string,
	population int,
	ticks uint64,
	seed uint64,
) (*ComparisonResult, error) {
	configA, err := types.ParseConfig(configAJSON)
	if err != nil {
		return nil, fmt.Errorf("config A: %w", err)
	}
	configB, err := types.ParseConfig(configBJSON)
	if err != nil {
		return nil, fmt.Errorf("config B: %w", err)
	}

	simA := simulation.New(configA, seed, nil)
	simA.InitDefaultDataCenters()
	simA.GeneratePopulation(population)
	simA.Run(ticks)

	simB := simulation.New(configB, seed, nil)
	simB.InitDefaultDataCenters()
	simB.GeneratePopulation(population)
	simB.Run(ticks)

	return &ComparisonResult{
		RunID:   uuid.NewString(),
		ConfigA: ConfigRunResult{Stats: simA.Stats},
		ConfigB: ConfigRunResult{Stats: simB.Stats},
	}, nil
}
