// Package roster loads the static list of tracked creators.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"jigdule/internal/model"
)

// Load reads the roster JSON document: an ordered array of creators.
// Order is preserved; it is part of the document's meaning (display order
// for the rendering collaborator).
func Load(path string) ([]model.Creator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}

	var creators []model.Creator
	if err := json.Unmarshal(data, &creators); err != nil {
		return nil, fmt.Errorf("roster: parse %s: %w", path, err)
	}

	out := make([]model.Creator, 0, len(creators))
	for i, c := range creators {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("roster: entry %d has no id", i)
		}
		if c.TwitchUserLogin == "" && c.YouTubeChannel == "" {
			// An entry with no platform identity can never produce events.
			return nil, fmt.Errorf("roster: entry %q has no platform identifiers", c.ID)
		}
		out = append(out, c)
	}
	return out, nil
}
