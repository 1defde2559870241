// Package simulation owns the closed control loop of the matchmaking
// simulator: arrivals, search starts, lobby assembly, match completions,
// skill evolution, retention decisions, and running statistics.
package simulation

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/admiralorbiter/okqueue/internal/matchmaker"
	"github.com/admiralorbiter/okqueue/internal/types"
)

// Simulation is the full mutable state of one simulated population. It is
// strictly single-threaded; all randomness flows through a per-tick
// generator seeded with seed XOR current tick so that runs are reproducible
// byte for byte.
type Simulation struct {
	CurrentTick uint64
	Players     map[int]*types.Player
	DataCenters []*types.DataCenter
	Searches    []*types.SearchObject
	Matches     map[int]*types.Match
	Parties     map[int]*types.Party
	Config      types.MatchmakingConfig
	Stats       types.SimulationStats

	nextPlayerID int
	nextSearchID int
	nextMatchID  int
	nextPartyID  int

	seed        uint64
	arrivalRate float64

	matchesSinceRerank     int
	totalMatchesInSessions int
	qualityScoreSum        float64
	continuesByBucket      map[int]int
	quitsByBucket          map[int]int
	returnAttemptsByBucket map[int]int
	returnsByBucket        map[int]int

	continueProbSamples []float64
	logitSamples        []float64
	experienceSamples   []types.ExperienceSample

	log *logrus.Logger
}

// New creates an empty simulation. The logger may be nil to disable logging.
func New(cfg types.MatchmakingConfig, seed uint64, log *logrus.Logger) *Simulation {
	return &Simulation{
		Players:                map[int]*types.Player{},
		Matches:                map[int]*types.Match{},
		Parties:                map[int]*types.Party{},
		Config:                 cfg,
		Stats:                  types.NewSimulationStats(),
		seed:                   seed,
		arrivalRate:            10.0,
		continuesByBucket:      map[int]int{},
		quitsByBucket:          map[int]int{},
		returnAttemptsByBucket: map[int]int{},
		returnsByBucket:        map[int]int{},
		log:                    log,
	}
}

// SetLogger attaches a logger; nil disables logging.
func (s *Simulation) SetLogger(log *logrus.Logger) {
	s.log = log
}

// InitDefaultDataCenters installs the default roster of ten data centers
// across NA, EU, APAC and SA.
func (s *Simulation) InitDefaultDataCenters() {
	roster := []struct {
		name   string
		loc    types.Location
		region types.Region
	}{
		{"US-East", types.Location{Lat: 39.0, Lon: -77.0}, types.RegionNorthAmerica},
		{"US-West", types.Location{Lat: 37.0, Lon: -122.0}, types.RegionNorthAmerica},
		{"US-Central", types.Location{Lat: 41.0, Lon: -96.0}, types.RegionNorthAmerica},
		{"EU-West", types.Location{Lat: 51.0, Lon: 0.0}, types.RegionEurope},
		{"EU-Central", types.Location{Lat: 50.0, Lon: 8.0}, types.RegionEurope},
		{"EU-North", types.Location{Lat: 59.0, Lon: 18.0}, types.RegionEurope},
		{"Asia-East", types.Location{Lat: 35.0, Lon: 139.0}, types.RegionAsiaPacific},
		{"Asia-SE", types.Location{Lat: 1.0, Lon: 103.0}, types.RegionAsiaPacific},
		{"Australia", types.Location{Lat: -33.0, Lon: 151.0}, types.RegionAsiaPacific},
		{"South-America", types.Location{Lat: -23.0, Lon: -46.0}, types.RegionSouthAmerica},
	}
	for i, dc := range roster {
		s.DataCenters = append(s.DataCenters, types.NewDataCenter(i, dc.name, dc.loc, dc.region))
	}
}

// Tick advances the simulation by one step: arrivals, search starts,
// matchmaking, match registration, completions, statistics.
func (s *Simulation) Tick() {
	rng := rand.New(rand.NewSource(int64(s.seed ^ s.CurrentTick)))

	s.processArrivals(rng)
	s.processSearchStarts(rng)

	mm := matchmaker.New(s.Config)
	results, matched := mm.RunTick(s.Searches, s.Players, s.DataCenters, s.Parties, s.CurrentTick)
	if len(matched) > 0 {
		remaining := s.Searches[:0]
		for _, search := range s.Searches {
			if !matched[search.ID] {
				remaining = append(remaining, search)
			}
		}
		s.Searches = remaining
	}

	s.createMatches(results, rng)
	s.processMatchCompletions(rng)
	s.updateStats()

	s.CurrentTick++
}

// Run advances the simulation by the given number of ticks.
func (s *Simulation) Run(ticks uint64) {
	for i := uint64(0); i < ticks; i++ {
		s.Tick()
	}
}

// SetArrivalRate sets the Poisson arrival-rate cap (players per tick).
func (s *Simulation) SetArrivalRate(rate float64) {
	s.arrivalRate = rate
}

// ArrivalRate returns the current arrival-rate cap.
func (s *Simulation) ArrivalRate() float64 {
	return s.arrivalRate
}

// Seed returns the simulation seed.
func (s *Simulation) Seed() uint64 {
	return s.seed
}

// UpdateConfig replaces the matchmaking configuration.
func (s *Simulation) UpdateConfig(cfg types.MatchmakingConfig) {
	s.Config = cfg
}

// ResetStats clears the running statistics while keeping the population.
func (s *Simulation) ResetStats() {
	s.Stats = types.NewSimulationStats()
	s.continuesByBucket = map[int]int{}
	s.quitsByBucket = map[int]int{}
	s.returnAttemptsByBucket = map[int]int{}
	s.returnsByBucket = map[int]int{}
	s.continueProbSamples = nil
	s.logitSamples = nil
	s.experienceSamples = nil
	s.totalMatchesInSessions = 0
	s.qualityScoreSum = 0.0
}

// sortedPlayerIDs returns all player ids ascending. Every loop that feeds a
// stochastic or truncating step iterates in this order so map iteration can
// never desynchronize a run.
func (s *Simulation) sortedPlayerIDs() []int {
	ids := make([]int, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Simulation) dataCenterByID(id int) *types.DataCenter {
	for _, dc := range s.DataCenters {
		if dc.ID == id {
			return dc
		}
	}
	return nil
}

// CreateParty forms a party from the given players. Players must exist, be
// partyless, and be Offline or InLobby. The party graph is untouched on error.
func (s *Simulation) CreateParty(playerIDs []int) (int, error) {
	if len(playerIDs) == 0 {
		return 0, fmt.Errorf("cannot create party with no players")
	}
	if len(playerIDs) > types.MaxPartySize {
		return 0, fmt.Errorf("party size cannot exceed %d players", types.MaxPartySize)
	}

	members := make([]*types.Player, 0, len(playerIDs))
	for _, pid := range playerIDs {
		player, ok := s.Players[pid]
		if !ok {
			return 0, fmt.Errorf("player %d does not exist", pid)
		}
		if player.PartyID != nil {
			return 0, fmt.Errorf("player %d is already in a party", pid)
		}
		if player.State != types.StateInLobby && player.State != types.StateOffline {
			return 0, fmt.Errorf("player %d is not in a valid state to join a party", pid)
		}
		members = append(members, player)
	}

	partyID := s.nextPartyID
	s.nextPartyID++

	party, err := types.NewPartyFromPlayers(partyID, members)
	if err != nil {
		return 0, err
	}

	for _, member := range members {
		id := partyID
		member.PartyID = &id
	}
	s.Parties[partyID] = party
	return partyID, nil
}

// JoinParty adds a player to an existing party.
func (s *Simulation) JoinParty(partyID, playerID int) error {
	party, ok := s.Parties[partyID]
	if !ok {
		return fmt.Errorf("party %d does not exist", partyID)
	}
	if party.Size() >= types.MaxPartySize {
		return fmt.Errorf("party %d is at maximum capacity", partyID)
	}
	player, ok := s.Players[playerID]
	if !ok {
		return fmt.Errorf("player %d does not exist", playerID)
	}
	if player.PartyID != nil {
		return fmt.Errorf("player %d is already in a party", playerID)
	}
	if player.State != types.StateInLobby && player.State != types.StateOffline {
		return fmt.Errorf("player %d is not in a valid state to join a party", playerID)
	}

	party.PlayerIDs = append(party.PlayerIDs, playerID)
	id := partyID
	player.PartyID = &id
	party.UpdateAggregates(s.Players)
	return nil
}

// LeaveParty removes a player from a party. The leadership passes to the
// next member; an emptied party disbands.
func (s *Simulation) LeaveParty(partyID, playerID int) error {
	party, ok := s.Parties[partyID]
	if !ok {
		return fmt.Errorf("party %d does not exist", partyID)
	}
	memberIdx := -1
	for i, id := range party.PlayerIDs {
		if id == playerID {
			memberIdx = i
			break
		}
	}
	if memberIdx < 0 {
		return fmt.Errorf("player %d is not a member of party %d", playerID, partyID)
	}

	party.PlayerIDs = append(party.PlayerIDs[:memberIdx], party.PlayerIDs[memberIdx+1:]...)
	if player, ok := s.Players[playerID]; ok {
		player.PartyID = nil
	}

	if len(party.PlayerIDs) == 0 {
		delete(s.Parties, partyID)
		return nil
	}
	if party.LeaderID == playerID {
		party.LeaderID = party.PlayerIDs[0]
	}
	party.UpdateAggregates(s.Players)
	return nil
}

// DisbandParty dissolves a party entirely. Members who were mid-search drop
// back to the lobby and their search object is withdrawn.
func (s *Simulation) DisbandParty(partyID int) error {
	party, ok := s.Parties[partyID]
	if !ok {
		return fmt.Errorf("party %d does not exist", partyID)
	}
	delete(s.Parties, partyID)

	for _, pid := range party.PlayerIDs {
		player, ok := s.Players[pid]
		if !ok {
			continue
		}
		player.PartyID = nil
		if player.State == types.StateSearching {
			player.State = types.StateInLobby
			player.SearchStartTick = nil
			remaining := s.Searches[:0]
			for _, search := range s.Searches {
				if !containsInt(search.PlayerIDs, pid) {
					remaining = append(remaining, search)
				}
			}
			s.Searches = remaining
		}
	}
	return nil
}

// PartyMembers returns the member ids of a party, or nil if it does not
// exist.
func (s *Simulation) PartyMembers(partyID int) []int {
	party, ok := s.Parties[partyID]
	if !ok {
		return nil
	}
	members := make([]int, len(party.PlayerIDs))
	copy(members, party.PlayerIDs)
	return members
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
