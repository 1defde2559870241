package simulation

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/admiralorbiter/okqueue/internal/types"
)

// regionCluster is a weighted population center used to sample player
// locations.
type regionCluster struct {
	center types.Location
	weight float64
}

var defaultRegionClusters = []regionCluster{
	{types.Location{Lat: 39.0, Lon: -95.0}, 0.35},
	{types.Location{Lat: 50.0, Lon: 10.0}, 0.30},
	{types.Location{Lat: 35.0, Lon: 105.0}, 0.20},
	{types.Location{Lat: -25.0, Lon: 135.0}, 0.08},
	{types.Location{Lat: -15.0, Lon: -55.0}, 0.07},
}

// GeneratePopulation creates count offline players with clustered locations,
// approximately normal skill, distance-derived pings, and sampled playlist
// preferences, then ranks the population and auto-generates parties toward
// the configured party fraction.
func (s *Simulation) GeneratePopulation(count int) {
	rng := rand.New(rand.NewSource(int64(s.seed)))

	for i := 0; i < count; i++ {
		cluster := sampleCluster(rng)
		loc := types.Location{
			Lat: cluster.center.Lat + uniformRange(rng, -10.0, 10.0),
			Lon: cluster.center.Lon + uniformRange(rng, -15.0, 15.0),
		}

		player := types.NewPlayer(s.nextPlayerID, loc, generateSkill(rng))
		s.nextPlayerID++
		player.Region = types.RegionFromLocation(loc)

		switch rng.Intn(3) {
		case 0:
			player.Platform = types.PlatformPC
		case 1:
			player.Platform = types.PlatformPlayStation
		default:
			player.Platform = types.PlatformXbox
		}

		if player.Platform == types.PlatformPC {
			if rng.Float64() < 0.7 {
				player.InputDevice = types.InputMouseKeyboard
			} else {
				player.InputDevice = types.InputController
			}
		} else {
			if rng.Float64() < 0.9 {
				player.InputDevice = types.InputController
			} else {
				player.InputDevice = types.InputMouseKeyboard
			}
		}

		// Ping model: ~1ms per 100km plus base latency and jitter.
		for _, dc := range s.DataCenters {
			basePing := loc.DistanceKm(dc.Location)/100.0 + 15.0
			ping := math.Max(basePing+uniformRange(rng, -5.0, 10.0), 10.0)
			player.DCPings[dc.ID] = ping
		}
		player.RefreshBestDC()

		player.PreferredPlaylists = map[types.Playlist]bool{
			types.PlaylistTeamDeathmatch: true,
		}
		if rng.Float64() < 0.4 {
			player.PreferredPlaylists[types.PlaylistDomination] = true
		}
		if rng.Float64() < 0.2 {
			player.PreferredPlaylists[types.PlaylistSearchAndDestroy] = true
		}
		if rng.Float64() < 0.15 {
			player.PreferredPlaylists[types.PlaylistGroundWar] = true
		}
		if rng.Float64() < 0.1 {
			player.PreferredPlaylists[types.PlaylistFreeForAll] = true
		}

		s.Players[player.ID] = player
	}

	s.UpdateSkillPercentiles()
	s.autoGenerateParties()

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"players": count,
			"parties": len(s.Parties),
			"seed":    s.seed,
		}).Info("Population generated")
	}
}

// autoGenerateParties groups a shuffled slice of the population into parties
// of 2-4 until roughly party_player_fraction of all players are partied.
func (s *Simulation) autoGenerateParties() {
	fraction := math.Min(math.Max(s.Config.PartyPlayerFraction, 0.0), 1.0)
	if fraction <= 0 || len(s.Players) < 2 {
		return
	}

	// Separate stream so party generation stays stable for a given seed.
	rng := rand.New(rand.NewSource(int64(s.seed + 1)))

	playerIDs := s.sortedPlayerIDs()
	rng.Shuffle(len(playerIDs), func(i, j int) {
		playerIDs[i], playerIDs[j] = playerIDs[j], playerIDs[i]
	})

	totalPlayers := len(playerIDs)
	targetPartyPlayers := int(math.Round(float64(totalPlayers) * fraction))

	assigned := 0
	idx := 0
	for idx+1 < totalPlayers && assigned < targetPartyPlayers {
		remaining := totalPlayers - idx
		maxSize := remaining
		if maxSize > 4 {
			maxSize = 4
		}
		if maxSize < 2 {
			break
		}

		var size int
		switch maxSize {
		case 2:
			size = 2
		case 3:
			if rng.Float64() < 0.6 {
				size = 3
			} else {
				size = 2
			}
		default:
			// Bias toward 2-3 person parties.
			r := rng.Float64()
			switch {
			case r < 0.5:
				size = 2
			case r < 0.85:
				size = 3
			default:
				size = 4
			}
		}

		if idx+size > totalPlayers {
			break
		}

		memberIDs := append([]int{}, playerIDs[idx:idx+size]...)
		if _, err := s.CreateParty(memberIDs); err == nil {
			assigned += size
		}
		idx += size
	}
}

func sampleCluster(rng *rand.Rand) regionCluster {
	r := rng.Float64()
	cumulative := 0.0
	for _, cluster := range defaultRegionClusters {
		cumulative += cluster.weight
		if r < cumulative {
			return cluster
		}
	}
	return defaultRegionClusters[0]
}

// generateSkill approximates N(0, 1) with a 12-sum of uniforms, clamped to
// [-1, 1].
func generateSkill(rng *rand.Rand) float64 {
	var sum float64
	for i := 0; i < 12; i++ {
		sum += rng.Float64()
	}
	normalized := (sum - 6.0) / 3.0
	return math.Max(-1.0, math.Min(1.0, normalized))
}

func uniformRange(rng *rand.Rand, low, high float64) float64 {
	return low + rng.Float64()*(high-low)
}
