package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AchievementDef describes one achievement and the condition that awards it.
// The condition is evaluated against a user's aggregate stats mapping.
type AchievementDef struct {
	Key           string `json:"key" yaml:"key"`
	Name          string `json:"name" yaml:"name"`
	NameLocalized string `json:"name_localized" yaml:"name_localized"`
	Condition     string `json:"condition" yaml:"condition"`
	Icon          string `json:"icon" yaml:"icon"`
	Points        int    `json:"points" yaml:"points"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
}

// Validate checks achievement invariants
func (d *AchievementDef) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("achievement: empty key")
	}
	if d.Condition == "" {
		return fmt.Errorf("achievement %q: empty condition", d.Key)
	}
	if d.Points < 0 {
		return fmt.Errorf("achievement %q: points must be >= 0", d.Key)
	}
	return nil
}

// AchievementAward is one newly qualified achievement for a user
type AchievementAward struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Points    int       `json:"points"`
	AwardedAt time.Time `json:"awarded_at"`
}

// ParseAchievementDef decodes and validates an achievement document payload
func ParseAchievementDef(data []byte) (*AchievementDef, error) {
	var d AchievementDef
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode achievement: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
