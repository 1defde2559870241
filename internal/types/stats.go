package types

// BucketStats rolls up per-player averages for one skill bucket.
type BucketStats struct {
	BucketID      int     `json:"bucket_id"`
	PlayerCount   int     `json:"player_count"`
	AvgSearchTime float64 `json:"avg_search_time"`
	AvgDeltaPing  float64 `json:"avg_delta_ping"`
	WinRate       float64 `json:"win_rate"`
	MatchesPlayed int     `json:"matches_played"`
}

// RegionStats aggregates players grouped by region.
type RegionStats struct {
	PlayerCount          int     `json:"player_count"`
	AvgSearchTime        float64 `json:"avg_search_time"`
	AvgDeltaPing         float64 `json:"avg_delta_ping"`
	BlowoutRate          float64 `json:"blowout_rate"`
	ActiveMatches        int     `json:"active_matches"`
	CrossRegionMatchRate float64 `json:"cross_region_match_rate"`
}

// SkillSnapshot is a point-in-time view of mean raw skill per bucket,
// recorded at each batch re-rank.
type SkillSnapshot struct {
	Tick        uint64          `json:"tick"`
	BucketMeans map[int]float64 `json:"bucket_means"`
}

// PopulationSample records the effective (non-offline) population at a tick.
type PopulationSample struct {
	Tick       uint64 `json:"tick"`
	Population int    `json:"population"`
}

// QuitSample records quits observed at a tick, for the leaving-rate window.
type QuitSample struct {
	Tick  uint64 `json:"tick"`
	Count int    `json:"count"`
}

// ExperienceSample is a diagnostic record of the averaged experience vector
// fed into one retention decision.
type ExperienceSample struct {
	AvgDeltaPing   float64 `json:"avg_delta_ping"`
	AvgSearchTime  float64 `json:"avg_search_time"`
	BlowoutRate    float64 `json:"blowout_rate"`
	WinRate        float64 `json:"win_rate"`
	AvgPerformance float64 `json:"avg_performance"`
}

// HistogramBin is one bin of a display histogram.
type HistogramBin struct {
	BinStart float64 `json:"bin_start"`
	BinEnd   float64 `json:"bin_end"`
	Count    int     `json:"count"`
}

// SimulationStats is the running statistics block recomputed every tick.
type SimulationStats struct {
	TimeElapsed float64 `json:"time_elapsed"`
	Ticks       uint64  `json:"ticks"`

	TotalMatches  int `json:"total_matches"`
	ActiveMatches int `json:"active_matches"`

	PlayersOffline   int `json:"players_offline"`
	PlayersInLobby   int `json:"players_in_lobby"`
	PlayersSearching int `json:"players_searching"`
	PlayersInMatch   int `json:"players_in_match"`

	AvgSearchTime     float64   `json:"avg_search_time"`
	SearchTimeP50     float64   `json:"search_time_p50"`
	SearchTimeP90     float64   `json:"search_time_p90"`
	SearchTimeP99     float64   `json:"search_time_p99"`
	SearchTimeSamples []float64 `json:"search_time_samples"`

	AvgDeltaPing     float64   `json:"avg_delta_ping"`
	DeltaPingP50     float64   `json:"delta_ping_p50"`
	DeltaPingP90     float64   `json:"delta_ping_p90"`
	DeltaPingSamples []float64 `json:"delta_ping_samples"`

	AvgSkillDisparity    float64   `json:"avg_skill_disparity"`
	SkillDisparitySamples []float64 `json:"skill_disparity_samples"`

	AvgMatchQuality float64 `json:"avg_match_quality"`

	BlowoutRate           float64                  `json:"blowout_rate"`
	BlowoutCount          int                      `json:"blowout_count"`
	BlowoutSeverityCounts map[BlowoutSeverity]int  `json:"blowout_severity_counts"`
	PerPlaylistBlowoutRate map[Playlist]float64    `json:"per_playlist_blowout_rate"`
	PerPlaylistBlowoutCounts map[Playlist]int      `json:"per_playlist_blowout_counts"`
	PerPlaylistMatchCounts   map[Playlist]int      `json:"per_playlist_match_counts"`
	TeamSkillDifferenceSamples []float64           `json:"team_skill_difference_samples"`

	BucketStats map[int]BucketStats `json:"bucket_stats"`

	PartyCount       int       `json:"party_count"`
	AvgPartySize     float64   `json:"avg_party_size"`
	PartyMatchCount  int       `json:"party_match_count"`
	SoloMatchCount   int       `json:"solo_match_count"`
	PartySearchTimes []float64 `json:"party_search_times"`
	SoloSearchTimes  []float64 `json:"solo_search_times"`

	SkillDistributionOverTime []SkillSnapshot `json:"skill_distribution_over_time"`
	SkillEvolutionEnabled     bool            `json:"skill_evolution_enabled"`
	TotalSkillUpdates         int             `json:"total_skill_updates"`
	PerformanceSamples        []float64       `json:"performance_samples"`

	PerBucketContinueRate   map[int]float64    `json:"per_bucket_continue_rate"`
	AvgComputedContinueProb float64            `json:"avg_computed_continue_prob"`
	SampleLogits            []float64          `json:"sample_logits"`
	SampleExperiences       []ExperienceSample `json:"sample_experiences"`
	AvgMatchesPerSession    float64            `json:"avg_matches_per_session"`
	SessionLengthDistribution []int            `json:"session_length_distribution"`
	ActiveSessions          int                `json:"active_sessions"`
	TotalSessionsCompleted  int                `json:"total_sessions_completed"`

	ChurnRate                     float64            `json:"churn_rate"`
	EffectivePopulationOverTime   []PopulationSample `json:"effective_population_over_time"`
	PerBucketReturnRate           map[int]float64    `json:"per_bucket_return_rate"`
	TotalReturnAttempts           int                `json:"total_return_attempts"`
	TotalReturns                  int                `json:"total_returns"`
	ChurnThresholdTicks           uint64             `json:"churn_threshold_ticks"`
	PlayersLeavingRate            float64            `json:"players_leaving_rate"`
	RecentQuits                   []QuitSample       `json:"recent_quits"`
	PopulationChangeRate          float64            `json:"population_change_rate"`
	PopulationHistory             []PopulationSample `json:"population_history"`

	RegionStats             map[Region]RegionStats `json:"region_stats"`
	CrossRegionMatchSamples []bool                 `json:"cross_region_match_samples"`
}

// NewSimulationStats returns an empty stats block with maps allocated and
// the default churn threshold applied.
func NewSimulationStats() SimulationStats {
	return SimulationStats{
		BlowoutSeverityCounts:    map[BlowoutSeverity]int{},
		PerPlaylistBlowoutRate:   map[Playlist]float64{},
		PerPlaylistBlowoutCounts: map[Playlist]int{},
		PerPlaylistMatchCounts:   map[Playlist]int{},
		BucketStats:              map[int]BucketStats{},
		PerBucketContinueRate:    map[int]float64{},
		PerBucketReturnRate:      map[int]float64{},
		RegionStats:              map[Region]RegionStats{},
		ChurnThresholdTicks:      100,
	}
}
