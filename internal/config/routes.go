package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// CandidateVendor is one entry in a client's configured vendor list. Priority
// matters only under the priority strategy; lower values are preferred.
type CandidateVendor struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

// ClientRoute is the static routing configuration for one client.
type ClientRoute struct {
	ClientID        string            `json:"id"`
	RoutingStrategy string            `json:"routingStrategy"`
	Vendors         []CandidateVendor `json:"vendors"`
}

// Routes maps client id to its routing configuration. Clients and vendors
// are pre-provisioned; the file is read once at startup.
type Routes struct {
	Clients map[string]ClientRoute `json:"clients"`
}

// LoadRoutes reads and parses the routes file.
func LoadRoutes(path string) (*Routes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routes file %s: %w", path, err)
	}

	var routes Routes
	if err := json.Unmarshal(raw, &routes); err != nil {
		return nil, fmt.Errorf("parsing routes file %s: %w", path, err)
	}

	for clientID, route := range routes.Clients {
		if route.ClientID == "" {
			route.ClientID = clientID
			routes.Clients[clientID] = route
		}
		if len(route.Vendors) == 0 {
			return nil, fmt.Errorf("client %s has no candidate vendors", clientID)
		}
	}
	return &routes, nil
}

// ClientRoute returns the routing configuration for a client, if present.
func (r *Routes) ClientRoute(clientID string) (ClientRoute, bool) {
	route, ok := r.Clients[clientID]
	return route, ok
}

// VendorIDs returns the distinct vendor ids referenced by any client route,
// which is the set of vendors the connection manager must dial at startup.
func (r *Routes) VendorIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, route := range r.Clients {
		for _, v := range route.Vendors {
			if !seen[v.ID] {
				seen[v.ID] = true
				ids = append(ids, v.ID)
			}
		}
	}
	return ids
}
