package types

import (
	"math"
	"sort"
)

// rollingWindowCap bounds the per-player rolling metric windows.
const rollingWindowCap = 10

// ExperienceVector captures what one completed match felt like to a player.
// It is the input row of the retention logistic.
type ExperienceVector struct {
	AvgDeltaPing  float64 `json:"avg_delta_ping"`
	AvgSearchTime float64 `json:"avg_search_time"`
	WasBlowout    bool    `json:"was_blowout"`
	Won           bool    `json:"won"`
	Performance   float64 `json:"performance"`
}

// Player is the population unit of the simulation. Players are created once
// during population generation and never destroyed; only their state changes.
type Player struct {
	ID          int         `json:"id"`
	Location    Location    `json:"location"`
	Region      Region      `json:"region"`
	Platform    Platform    `json:"platform"`
	InputDevice InputDevice `json:"input_device"`

	VoiceChatEnabled bool `json:"voice_chat_enabled"`

	// Skill in [-1, 1], with the rank-based representations derived from it
	Skill           float64 `json:"skill"`
	SkillPercentile float64 `json:"skill_percentile"`
	SkillBucket     int     `json:"skill_bucket"`

	State        PlayerState `json:"state"`
	CurrentMatch *int        `json:"current_match,omitempty"`
	PartyID      *int        `json:"party_id,omitempty"`

	PreferredPlaylists map[Playlist]bool `json:"preferred_playlists"`

	DCPings  map[int]float64 `json:"dc_pings"`
	BestDC   *int            `json:"best_dc,omitempty"`
	BestPing float64         `json:"best_ping"`

	SearchStartTick *uint64 `json:"search_start_tick,omitempty"`

	MatchesPlayed int `json:"matches_played"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`

	// Rolling windows over the last matches
	RecentDeltaPings  []float64 `json:"recent_delta_pings"`
	RecentSearchTimes []float64 `json:"recent_search_times"`
	RecentBlowouts    []bool    `json:"recent_blowouts"`
	RecentPerformance []float64 `json:"recent_performance"`

	// Retention model state
	RecentExperience      []ExperienceVector `json:"recent_experience"`
	LastSessionExperience []ExperienceVector `json:"last_session_experience"`

	SessionStartTick    *uint64 `json:"session_start_tick,omitempty"`
	MatchesInSession    int     `json:"matches_in_session"`
	LastSessionEndTick  *uint64 `json:"last_session_end_tick,omitempty"`
}

// NewPlayer creates an offline player at the given location with the given
// raw skill. Region, platform, pings and playlists are filled in by
// population generation.
func NewPlayer(id int, loc Location, skill float64) *Player {
	return &Player{
		ID:                 id,
		Location:           loc,
		Region:             RegionOther,
		Platform:           PlatformPC,
		InputDevice:        InputController,
		VoiceChatEnabled:   true,
		Skill:              skill,
		SkillPercentile:    0.5,
		SkillBucket:        5,
		State:              StateOffline,
		PreferredPlaylists: map[Playlist]bool{PlaylistTeamDeathmatch: true},
		DCPings:            map[int]float64{},
		BestPing:           1000.0,
	}
}

// UpdateSkillBucket derives the bucket from the percentile:
// clamp(floor(percentile * B), 1, B).
func (p *Player) UpdateSkillBucket(numBuckets int) {
	bucket := int(math.Floor(p.SkillPercentile * float64(numBuckets)))
	if bucket < 1 {
		bucket = 1
	}
	if bucket > numBuckets {
		bucket = numBuckets
	}
	p.SkillBucket = bucket
}

// RefreshBestDC recomputes the cached (best_dc, best_ping) pair from the
// ping map.
func (p *Player) RefreshBestDC() {
	ids := make([]int, 0, len(p.DCPings))
	for id := range p.DCPings {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	p.BestDC = nil
	p.BestPing = 1000.0
	for _, id := range ids {
		if p.BestDC == nil || p.DCPings[id] < p.BestPing {
			dcID := id
			p.BestDC = &dcID
			p.BestPing = p.DCPings[id]
		}
	}
}

// AcceptableDCs returns the data centers this player would accept at the
// given wait time. Regions open up in three tiers (own region, plus adjacent
// after 10s, all after 30s); within the allowed regions a DC qualifies when
// its ping is within the backed-off delta above best_ping and below the
// regional max ping. The result is sorted by DC id.
func (p *Player) AcceptableDCs(waitTime float64, cfg MatchmakingConfig, dataCenters []*DataCenter) []int {
	deltaAllowed := cfg.RegionDeltaPingBackoff(p.Region, waitTime)
	maxPing := cfg.RegionMaxPing(p.Region)

	allowedRegions := map[Region]bool{p.Region: true}
	if waitTime >= 10.0 {
		for _, r := range p.Region.AdjacentRegions() {
			allowedRegions[r] = true
		}
	}
	if waitTime >= 30.0 {
		for _, r := range AllRegions {
			allowedRegions[r] = true
		}
	}

	regionByDC := make(map[int]Region, len(dataCenters))
	for _, dc := range dataCenters {
		regionByDC[dc.ID] = dc.Region
	}

	var acceptable []int
	for dcID, ping := range p.DCPings {
		region, ok := regionByDC[dcID]
		if !ok || !allowedRegions[region] {
			continue
		}
		if ping <= p.BestPing+deltaAllowed && ping <= maxPing {
			acceptable = append(acceptable, dcID)
		}
	}
	sort.Ints(acceptable)
	return acceptable
}

// PushRecentDeltaPing appends to the delta-ping window, dropping the oldest
// entry past the cap.
func (p *Player) PushRecentDeltaPing(v float64) {
	p.RecentDeltaPings = pushFloatWindow(p.RecentDeltaPings, v)
}

// PushRecentSearchTime appends to the search-time window.
func (p *Player) PushRecentSearchTime(v float64) {
	p.RecentSearchTimes = pushFloatWindow(p.RecentSearchTimes, v)
}

// PushRecentBlowout appends to the blowout window.
func (p *Player) PushRecentBlowout(v bool) {
	p.RecentBlowouts = append(p.RecentBlowouts, v)
	if len(p.RecentBlowouts) > rollingWindowCap {
		p.RecentBlowouts = p.RecentBlowouts[1:]
	}
}

// PushRecentPerformance appends to the performance window.
func (p *Player) PushRecentPerformance(v float64) {
	p.RecentPerformance = pushFloatWindow(p.RecentPerformance, v)
}

// PushExperience appends a match experience, keeping at most windowSize
// entries.
func (p *Player) PushExperience(e ExperienceVector, windowSize int) {
	p.RecentExperience = append(p.RecentExperience, e)
	if len(p.RecentExperience) > windowSize {
		p.RecentExperience = p.RecentExperience[1:]
	}
}

func pushFloatWindow(window []float64, v float64) []float64 {
	window = append(window, v)
	if len(window) > rollingWindowCap {
		window = window[1:]
	}
	return window
}
