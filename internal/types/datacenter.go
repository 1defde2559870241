package types

// DataCenter is a server location with per-playlist capacity. Busy counts
// are incremented when a lobby commits and decremented (saturating at zero)
// when a match completes.
type DataCenter struct {
	ID             int              `json:"id"`
	Name           string           `json:"name"`
	Location       Location         `json:"location"`
	Region         Region           `json:"region"`
	ServerCapacity map[Playlist]int `json:"server_capacity"`
	BusyServers    map[Playlist]int `json:"busy_servers"`
}

// NewDataCenter creates a data center with default capacities: 50 Ground War
// servers, 200 for everything else.
func NewDataCenter(id int, name string, loc Location, region Region) *DataCenter {
	capacity := make(map[Playlist]int, len(AllPlaylists))
	busy := make(map[Playlist]int, len(AllPlaylists))
	for _, playlist := range AllPlaylists {
		if playlist == PlaylistGroundWar {
			capacity[playlist] = 50
		} else {
			capacity[playlist] = 200
		}
		busy[playlist] = 0
	}
	return &DataCenter{
		ID:             id,
		Name:           name,
		Location:       loc,
		Region:         region,
		ServerCapacity: capacity,
		BusyServers:    busy,
	}
}

// AvailableServers returns capacity minus busy for the playlist, never
// negative.
func (dc *DataCenter) AvailableServers(playlist Playlist) int {
	available := dc.ServerCapacity[playlist] - dc.BusyServers[playlist]
	if available < 0 {
		return 0
	}
	return available
}

// Reserve marks one server busy for the playlist.
func (dc *DataCenter) Reserve(playlist Playlist) {
	dc.BusyServers[playlist]++
}

// Release frees one server for the playlist, saturating at zero to tolerate
// duplicate completions.
func (dc *DataCenter) Release(playlist Playlist) {
	if dc.BusyServers[playlist] > 0 {
		dc.BusyServers[playlist]--
	}
}
