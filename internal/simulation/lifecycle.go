package simulation

import (
	"math"
	"math/rand"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// processArrivals gives every offline player an independent return roll,
// then caps the accepted set with a Poisson draw at the configured arrival
// rate (shuffle and truncate). Selected players enter the lobby and begin a
// new session.
func (s *Simulation) processArrivals(rng *rand.Rand) {
	var arrivals []int
	for _, pid := range s.sortedPlayerIDs() {
		player := s.Players[pid]
		if player.State != types.StateOffline {
			continue
		}

		returnProb := s.returnProbability(player)
		s.returnAttemptsByBucket[player.SkillBucket]++
		s.Stats.TotalReturnAttempts++

		if rng.Float64() < returnProb {
			arrivals = append(arrivals, pid)
			s.returnsByBucket[player.SkillBucket]++
			s.Stats.TotalReturns++
		}
	}

	if len(arrivals) == 0 {
		return
	}

	numArrivals := poissonSample(s.arrivalRate, rng)
	if len(arrivals) > numArrivals {
		rng.Shuffle(len(arrivals), func(i, j int) {
			arrivals[i], arrivals[j] = arrivals[j], arrivals[i]
		})
		arrivals = arrivals[:numArrivals]
	}

	for _, pid := range arrivals {
		player := s.Players[pid]
		if player.State != types.StateOffline {
			continue
		}
		tick := s.CurrentTick
		player.SessionStartTick = &tick
		player.MatchesInSession = 0
		// The last-session experience stays put: it still informs future
		// return rolls if this session ends without a completed match.
		player.LastSessionEndTick = nil
		player.State = types.StateInLobby
	}
}

// processSearchStarts rolls the search-start gate for every lobby player.
// Party members only enter the queue through their leader's roll, and only
// when the whole party is in the lobby.
func (s *Simulation) processSearchStarts(rng *rand.Rand) {
	for _, pid := range s.sortedPlayerIDs() {
		player := s.Players[pid]
		if player.State != types.StateInLobby {
			continue
		}
		if rng.Float64() < s.Config.SearchStartProbability {
			s.startSearch(pid)
		}
	}
}

func (s *Simulation) startSearch(playerID int) {
	player, ok := s.Players[playerID]
	if !ok {
		return
	}

	if player.PartyID != nil {
		party, ok := s.Parties[*player.PartyID]
		if !ok {
			return
		}
		if party.LeaderID != playerID {
			return
		}
		for _, pid := range party.PlayerIDs {
			member, ok := s.Players[pid]
			if !ok || member.State != types.StateInLobby {
				return
			}
		}

		for _, pid := range party.PlayerIDs {
			member := s.Players[pid]
			member.State = types.StateSearching
			tick := s.CurrentTick
			member.SearchStartTick = &tick
		}

		search := party.ToSearchObject(s.nextSearchID, s.CurrentTick, s.Players, s.Config, s.DataCenters)
		s.nextSearchID++
		s.Searches = append(s.Searches, search)
		return
	}

	player.State = types.StateSearching
	tick := s.CurrentTick
	player.SearchStartTick = &tick

	acceptable := map[int]bool{}
	for _, dcID := range player.AcceptableDCs(0.0, s.Config, s.DataCenters) {
		acceptable[dcID] = true
	}

	search := &types.SearchObject{
		ID:                 s.nextSearchID,
		PlayerIDs:          []int{playerID},
		AvgSkillPercentile: player.SkillPercentile,
		SkillDisparity:     0.0,
		AvgLocation:        player.Location,
		Platforms:          map[types.Platform]int{player.Platform: 1},
		InputDevices:       map[types.InputDevice]int{player.InputDevice: 1},
		AcceptablePlaylists: copyPlaylistSet(player.PreferredPlaylists),
		SearchStartTick:    s.CurrentTick,
		AcceptableDCs:      acceptable,
	}
	s.nextSearchID++
	s.Searches = append(s.Searches, search)
}

func copyPlaylistSet(src map[types.Playlist]bool) map[types.Playlist]bool {
	dst := make(map[types.Playlist]bool, len(src))
	for pl := range src {
		dst[pl] = true
	}
	return dst
}

// poissonSample draws from Poisson(lambda) via Knuth's method.
func poissonSample(lambda float64, rng *rand.Rand) int {
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			break
		}
	}
	return k - 1
}
