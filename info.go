package ketama

import "time"

// Info is a diagnostic snapshot of the ring.
type Info struct {
	Version     int          `json:"version"`
	ModTime     time.Time    `json:"mod_time"`
	NumServers  int          `json:"num_servers"`
	TotalWeight int          `json:"total_weight"`
	NumPoints   int          `json:"num_points"`
	Servers     []ServerInfo `json:"server_list"`
}

// ServerInfo describes a server within Info.
type ServerInfo struct {
	Server string `json:"server"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Points int    `json:"points"`
}

// Info returns diagnostic information about the ring.
// Servers are ordered by name, host and port.
func (r *Ring) Info() Info {
	r.ringMu.RLock()
	var (
		cont    = r.cont
		members = r.members
		info    = Info{
			Version:    r.version,
			ModTime:    r.modified,
			NumServers: len(r.members),
			NumPoints:  r.cont.Len(),
		}
	)
	r.ringMu.RUnlock()

	// Members map and continuum are never changed after publication, so it's
	// safe to read them without the lock.
	points := make(map[Server]int, len(members))
	cont.Ascend(func(_ uint32, s Server) bool {
		points[s]++
		return true
	})
	servers := make([]Server, 0, len(members))
	for s, w := range members {
		info.TotalWeight += w
		servers = append(servers, s)
	}
	sortServers(servers)
	info.Servers = make([]ServerInfo, len(servers))
	for i, s := range servers {
		info.Servers[i] = ServerInfo{
			Server: s.Addr(),
			Name:   s.Name(),
			Weight: members[s],
			Points: points[s],
		}
	}
	return info
}
