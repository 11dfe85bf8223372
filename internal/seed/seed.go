// Package seed loads default exercise, rule and achievement definitions
// from a YAML file and writes any missing ones to the configuration store
// on first boot. Existing documents are never overwritten: admin edits in
// the store always win over the seed file.
package seed

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"fitpoints/internal/condition"
	"fitpoints/internal/models"
)

// File is the parsed seed file
type File struct {
	Exercises    []models.ExerciseConfig `yaml:"exercises"`
	Rules        []models.Rule           `yaml:"rules"`
	Achievements []models.AchievementDef `yaml:"achievements"`
}

// ConfigWriter is the slice of the configuration store seeding needs
type ConfigWriter interface {
	GetConfig(entityType, entityKey string, activeOnly bool) (*models.ConfigDocument, error)
	WriteConfig(entityType, entityKey string, data json.RawMessage) (int, error)
}

// Load reads and validates a seed file. Every entry is validated here so a
// malformed seed fails fast at boot instead of producing silent zero-point
// calculations later.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i := range f.Exercises {
		warnings, err := f.Exercises[i].Validate()
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		for _, w := range warnings {
			log.Printf("Seed: %s", w)
		}
	}
	for i := range f.Rules {
		if err := f.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if err := condition.ValidateSyntax(f.Rules[i].Condition); err != nil {
			return nil, fmt.Errorf("seed rule %q: %w", f.Rules[i].ID, err)
		}
	}
	for i := range f.Achievements {
		if err := f.Achievements[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		if err := condition.ValidateSyntax(f.Achievements[i].Condition); err != nil {
			return nil, fmt.Errorf("seed achievement %q: %w", f.Achievements[i].Key, err)
		}
	}
	return &f, nil
}

// Apply writes every seed entry that does not yet exist in the store.
// Returns the number of documents written.
func Apply(f *File, store ConfigWriter) (int, error) {
	written := 0

	for _, ex := range f.Exercises {
		n, err := writeIfMissing(store, models.EntityExercise, ex.Key, ex)
		if err != nil {
			return written, err
		}
		written += n
	}
	for _, rule := range f.Rules {
		n, err := writeIfMissing(store, models.EntityRule, rule.ID, rule)
		if err != nil {
			return written, err
		}
		written += n
	}
	for _, def := range f.Achievements {
		n, err := writeIfMissing(store, models.EntityAchievement, def.Key, def)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func writeIfMissing(store ConfigWriter, entityType, entityKey string, value any) (int, error) {
	doc, err := store.GetConfig(entityType, entityKey, false)
	if err != nil {
		return 0, fmt.Errorf("seed %s/%s: %w", entityType, entityKey, err)
	}
	if doc != nil {
		return 0, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("seed %s/%s: %w", entityType, entityKey, err)
	}
	if _, err := store.WriteConfig(entityType, entityKey, data); err != nil {
		return 0, fmt.Errorf("seed %s/%s: %w", entityType, entityKey, err)
	}
	return 1, nil
}
