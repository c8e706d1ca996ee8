package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached ViCare response.
type Key struct {
	// Endpoint is the API endpoint path
	// (e.g., "/installations/123/devices/0/features").
	Endpoint string

	// Params are the query parameters of the request.
	Params url.Values
}

// String generates a deterministic cache key string. Query parameters are
// sorted lexicographically so the same call with reordered parameters maps
// to the same entry.
//
// Format: vicare:endpoint:param1=val1:param2=val2
func (k Key) String() string {
	parts := []string{"vicare"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
