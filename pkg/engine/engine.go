// Package engine exposes the simulator as a stateful handle: construction
// with an optional configuration text, population generation, tick
// advancement, state queries, and mutations. The handle performs no I/O; the
// host serializes calls.
package engine

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/admiralorbiter/okqueue/internal/simulation"
	"github.com/admiralorbiter/okqueue/internal/types"
)

// Engine is the stateful simulation handle.
type Engine struct {
	sim *simulation.Simulation
}

// New creates an engine with the default configuration and the default
// ten-data-center roster.
func New(seed uint64) *Engine {
	sim := simulation.New(types.DefaultConfig(), seed, nil)
	sim.InitDefaultDataCenters()
	return &Engine{sim: sim}
}

// NewWithConfig creates an engine from the JSON text form of a
// configuration. A malformed or out-of-range configuration is rejected
// before any state exists.
func NewWithConfig(seed uint64, configJSON string) (*Engine, error) {
	cfg, err := types.ParseConfig(configJSON)
	if err != nil {
		return nil, err
	}
	sim := simulation.New(cfg, seed, nil)
	sim.InitDefaultDataCenters()
	return &Engine{sim: sim}, nil
}

// SetLogger attaches a logger to the underlying simulation. A nil logger
// disables logging.
func (e *Engine) SetLogger(log *logrus.Logger) {
	e.sim.SetLogger(log)
}

// GeneratePopulation creates count offline players with clustered locations
// and auto-generated parties.
func (e *Engine) GeneratePopulation(count int) {
	e.sim.GeneratePopulation(count)
}

// Tick advances the simulation one step.
func (e *Engine) Tick() {
	e.sim.Tick()
}

// Run advances the simulation by the given number of ticks.
func (e *Engine) Run(ticks uint64) {
	e.sim.Run(ticks)
}

// CurrentTick returns the simulation clock.
func (e *Engine) CurrentTick() uint64 {
	return e.sim.CurrentTick
}

// TotalPlayers returns the population size.
func (e *Engine) TotalPlayers() int {
	return len(e.sim.Players)
}

// StateCounts is the per-state population breakdown.
type StateCounts struct {
	Offline   int `json:"offline"`
	InLobby   int `json:"in_lobby"`
	Searching int `json:"searching"`
	InMatch   int `json:"in_match"`
}

// PlayerCounts returns the per-state population breakdown.
func (e *Engine) PlayerCounts() StateCounts {
	return StateCounts{
		Offline:   e.sim.Stats.PlayersOffline,
		InLobby:   e.sim.Stats.PlayersInLobby,
		Searching: e.sim.Stats.PlayersSearching,
		InMatch:   e.sim.Stats.PlayersInMatch,
	}
}

// SimulationState is the full state snapshot handed to hosts.
type SimulationState struct {
	CurrentTick  uint64                   `json:"current_tick"`
	TickInterval float64                  `json:"tick_interval"`
	TotalPlayers int                      `json:"total_players"`
	Stats        types.SimulationStats    `json:"stats"`
	Config       types.MatchmakingConfig  `json:"config"`
}

// State returns the full state snapshot.
func (e *Engine) State() SimulationState {
	return SimulationState{
		CurrentTick:  e.sim.CurrentTick,
		TickInterval: e.sim.Config.TickInterval,
		TotalPlayers: len(e.sim.Players),
		Stats:        e.sim.Stats,
		Config:       e.sim.Config,
	}
}

// Stats returns the running statistics block.
func (e *Engine) Stats() types.SimulationStats {
	return e.sim.Stats
}

// ConfigJSON returns the canonical text form of the active configuration.
func (e *Engine) ConfigJSON() (string, error) {
	return e.sim.Config.ToJSON()
}

// DefaultConfigJSON returns the canonical text form of the default
// configuration.
func DefaultConfigJSON() (string, error) {
	return types.DefaultConfig().ToJSON()
}

// SkillBin is one bin of the raw-skill distribution histogram.
type SkillBin struct {
	Skill float64 `json:"skill"`
	Count int     `json:"count"`
}

// SkillDistribution buckets raw skill in [-1, 1] into 20 bins.
func (e *Engine) SkillDistribution() []SkillBin {
	const numBins = 20
	counts := make([]int, numBins)
	for _, player := range e.sim.Players {
		bin := int(math.Floor((player.Skill + 1.0) / 2.0 * float64(numBins-1)))
		if bin > numBins-1 {
			bin = numBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	bins := make([]SkillBin, 0, numBins)
	for i, count := range counts {
		bins = append(bins, SkillBin{
			Skill: float64(i)/float64(numBins-1)*2.0 - 1.0,
			Count: count,
		})
	}
	return bins
}

func histogram(samples []float64, numBins int) []types.HistogramBin {
	if len(samples) == 0 || numBins < 1 {
		return []types.HistogramBin{}
	}

	maxSample := samples[0]
	for _, sample := range samples[1:] {
		if sample > maxSample {
			maxSample = sample
		}
	}
	binWidth := math.Max(maxSample/float64(numBins), 1.0)

	counts := make([]int, numBins)
	for _, sample := range samples {
		bin := int(sample / binWidth)
		if bin > numBins-1 {
			bin = numBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	bins := make([]types.HistogramBin, 0, numBins)
	for i, count := range counts {
		bins = append(bins, types.HistogramBin{
			BinStart: float64(i) * binWidth,
			BinEnd:   float64(i+1) * binWidth,
			Count:    count,
		})
	}
	return bins
}

// SearchTimeHistogram bins the retained search-time samples.
func (e *Engine) SearchTimeHistogram(numBins int) []types.HistogramBin {
	return histogram(e.sim.Stats.SearchTimeSamples, numBins)
}

// DeltaPingHistogram bins the retained delta-ping samples.
func (e *Engine) DeltaPingHistogram(numBins int) []types.HistogramBin {
	return histogram(e.sim.Stats.DeltaPingSamples, numBins)
}

// BucketStats returns the per-bucket rollups.
func (e *Engine) BucketStats() map[int]types.BucketStats {
	return e.sim.Stats.BucketStats
}

// RegionStats returns the per-region rollups.
func (e *Engine) RegionStats() map[types.Region]types.RegionStats {
	return e.sim.Stats.RegionStats
}

// DataCenterSummary is the host-facing view of a data center.
type DataCenterSummary struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	Region      types.Region           `json:"region"`
	Lat         float64                `json:"lat"`
	Lon         float64                `json:"lon"`
	BusyServers map[types.Playlist]int `json:"busy_servers"`
}

// DataCenters summarizes the installed data centers in id order.
func (e *Engine) DataCenters() []DataCenterSummary {
	summaries := make([]DataCenterSummary, 0, len(e.sim.DataCenters))
	for _, dc := range e.sim.DataCenters {
		busy := make(map[types.Playlist]int, len(dc.BusyServers))
		for playlist, count := range dc.BusyServers {
			busy[playlist] = count
		}
		summaries = append(summaries, DataCenterSummary{
			ID:          dc.ID,
			Name:        dc.Name,
			Region:      dc.Region,
			Lat:         dc.Location.Lat,
			Lon:         dc.Location.Lon,
			BusyServers: busy,
		})
	}
	return summaries
}

// PartySummary is the host-facing view of a party.
type PartySummary struct {
	ID                 int     `json:"id"`
	PlayerIDs          []int   `json:"player_ids"`
	LeaderID           int     `json:"leader_id"`
	Size               int     `json:"size"`
	AvgSkill           float64 `json:"avg_skill"`
	AvgSkillPercentile float64 `json:"avg_skill_percentile"`
	SkillDisparity     float64 `json:"skill_disparity"`
}

// Parties lists all live parties in id order.
func (e *Engine) Parties() []PartySummary {
	ids := make([]int, 0, len(e.sim.Parties))
	for id := range e.sim.Parties {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make([]PartySummary, 0, len(ids))
	for _, id := range ids {
		party := e.sim.Parties[id]
		summaries = append(summaries, PartySummary{
			ID:                 party.ID,
			PlayerIDs:          append([]int{}, party.PlayerIDs...),
			LeaderID:           party.LeaderID,
			Size:               party.Size(),
			AvgSkill:           party.AvgSkill,
			AvgSkillPercentile: party.AvgSkillPercentile,
			SkillDisparity:     party.SkillDisparity,
		})
	}
	return summaries
}

// PartyMembers returns a party's member ids, or nil for an unknown party.
func (e *Engine) PartyMembers(partyID int) []int {
	return e.sim.PartyMembers(partyID)
}

// LobbyPlayer is the host-facing view of an in-lobby player.
type LobbyPlayer struct {
	ID              int     `json:"id"`
	Skill           float64 `json:"skill"`
	SkillPercentile float64 `json:"skill_percentile"`
	PartyID         *int    `json:"party_id,omitempty"`
}

// LobbyPlayers lists players currently in the lobby, in id order.
func (e *Engine) LobbyPlayers() []LobbyPlayer {
	ids := make([]int, 0, len(e.sim.Players))
	for id, player := range e.sim.Players {
		if player.State == types.StateInLobby {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	players := make([]LobbyPlayer, 0, len(ids))
	for _, id := range ids {
		player := e.sim.Players[id]
		players = append(players, LobbyPlayer{
			ID:              player.ID,
			Skill:           player.Skill,
			SkillPercentile: player.SkillPercentile,
			PartyID:         player.PartyID,
		})
	}
	return players
}

// SearchQueueEntry is the host-facing view of one queued search.
type SearchQueueEntry struct {
	ID                 int     `json:"id"`
	PlayerIDs          []int   `json:"player_ids"`
	Size               int     `json:"size"`
	IsParty            bool    `json:"is_party"`
	AvgSkillPercentile float64 `json:"avg_skill_percentile"`
	WaitTime           float64 `json:"wait_time"`
}

// SearchQueue snapshots the queue; wait times are reported in seconds.
func (e *Engine) SearchQueue() []SearchQueueEntry {
	entries := make([]SearchQueueEntry, 0, len(e.sim.Searches))
	for _, search := range e.sim.Searches {
		isParty := false
		for _, pid := range search.PlayerIDs {
			if player, ok := e.sim.Players[pid]; ok && player.PartyID != nil {
				isParty = true
				break
			}
		}
		entries = append(entries, SearchQueueEntry{
			ID:                 search.ID,
			PlayerIDs:          append([]int{}, search.PlayerIDs...),
			Size:               search.Size(),
			IsParty:            isParty,
			AvgSkillPercentile: search.AvgSkillPercentile,
			WaitTime:           search.WaitTime(e.sim.CurrentTick, e.sim.Config.TickInterval),
		})
	}
	return entries
}

// SetArrivalRate sets the Poisson arrival-rate cap (players per tick).
func (e *Engine) SetArrivalRate(rate float64) {
	e.sim.SetArrivalRate(rate)
}

// UpdateConfig replaces the configuration from its JSON text form. On error
// the active configuration is untouched.
func (e *Engine) UpdateConfig(configJSON string) error {
	cfg, err := types.ParseConfig(configJSON)
	if err != nil {
		return err
	}
	e.sim.UpdateConfig(cfg)
	return nil
}

// ResetStats clears running statistics while keeping the population.
func (e *Engine) ResetStats() {
	e.sim.ResetStats()
}

// CreateParty forms a party from the given player ids.
func (e *Engine) CreateParty(playerIDs []int) (int, error) {
	return e.sim.CreateParty(playerIDs)
}

// JoinParty adds a player to a party.
func (e *Engine) JoinParty(partyID, playerID int) error {
	return e.sim.JoinParty(partyID, playerID)
}

// LeaveParty removes a player from a party.
func (e *Engine) LeaveParty(partyID, playerID int) error {
	return e.sim.LeaveParty(partyID, playerID)
}

// DisbandParty dissolves a party.
func (e *Engine) DisbandParty(partyID int) error {
	return e.sim.DisbandParty(partyID)
}
