package venues

import (
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/larpkeep/characterhub/pkg/httputil"
)

// Venue is one campaign namespace. Many permissions are qualified per venue
// by suffixing the venue id to the permission base.
type Venue struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Default returns the built-in venue fixture.
func Default() []Venue {
	return []Venue{
		{ID: "cam-anarch", Name: "Camarilla/Anarch"},
		{ID: "sabbat", Name: "Sabbat"},
		{ID: "requiem", Name: "Requiem"},
		{ID: "lost", Name: "Lost"},
		{ID: "awakening", Name: "Awakening"},
		{ID: "accord", Name: "Accord"},
		{ID: "apocalypse", Name: "Apocalypse"},
		{ID: "space", Name: "Space"},
	}
}

// LoadFile reads a venue fixture from a YAML file.
func LoadFile(path string) ([]Venue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading venue fixture: %w", err)
	}
	var list []Venue
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parsing venue fixture: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("venue fixture %s is empty", path)
	}
	for i, v := range list {
		if v.ID == "" {
			return nil, fmt.Errorf("venue fixture %s: entry %d has no id", path, i)
		}
	}
	return list, nil
}

// IDs extracts the venue ids in fixture order.
func IDs(list []Venue) []string {
	ids := make([]string, len(list))
	for i, v := range list {
		ids[i] = v.ID
	}
	return ids
}

// Handler serves the venue list.
func Handler(list []Venue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteSuccess(w, list)
	}
}
