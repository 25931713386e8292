package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/prepdeck/interviewchat/internal/types"
)

// LoadProfile reads the user's interview profile from a YAML file.
// The profile supplies the fields sent when starting a new session
// (user name, target position/field, résumé summary).
func LoadProfile(path string) (types.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p types.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if p.UserName == "" {
		return types.Profile{}, fmt.Errorf("profile %s: userName is required", path)
	}
	return p, nil
}
