package domain

import (
	"encoding/json"
	"strconv"
)

// unknownMarker is what an unavailable count serializes to in the cache file.
// The rendering step displays it verbatim.
const unknownMarker = "N/A"

// Count is a profile statistic that is either a non-negative integer or
// explicitly unavailable. The zero value is the unavailable state, so a
// user stub that never got enriched still serializes every count field.
type Count struct {
	n     int
	known bool
}

func KnownCount(n int) Count { return Count{n: n, known: true} }

func UnknownCount() Count { return Count{} }

// Value returns the count and whether it is actually known.
func (c Count) Value() (int, bool) { return c.n, c.known }

func (c Count) Known() bool { return c.known }

func (c Count) String() string {
	if !c.known {
		return unknownMarker
	}
	return strconv.Itoa(c.n)
}

// MarshalJSON writes a plain number for known counts and the "N/A" marker
// otherwise, matching the cache format the renderer consumes.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.known {
		return json.Marshal(unknownMarker)
	}
	return json.Marshal(c.n)
}

func (c *Count) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = KnownCount(n)
		return nil
	}
	// anything that is not a number ("N/A", null, malformed upstream value)
	// reads back as unavailable
	*c = UnknownCount()
	return nil
}

// User is a GitHub user as collected by the pipeline. Discovery fills
// Login, AvatarURL and Type; enrichment adds the rest. Login is the stable
// key and, lowercased, the on-disk avatar filename stem.
type User struct {
	Login           string  `json:"login"`
	AvatarURL       string  `json:"avatar_url"`
	Type            string  `json:"type"`
	Name            *string `json:"name"`
	Location        string  `json:"location"`
	Followers       Count   `json:"followers"`
	Following       Count   `json:"following"`
	PublicRepos     Count   `json:"public_repos"`
	PublicGists     Count   `json:"public_gists"`
	SponsorsCount   Count   `json:"sponsors_count"`
	SponsoringCount Count   `json:"sponsoring_count"`
	AvatarUpdatedAt string  `json:"avatar_updated_at"`
}
