package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category groups exercise types for display and analytics
type Category string

const (
	CategoryStrength Category = "strength"
	CategoryCardio   Category = "cardio"
	CategoryCore     Category = "core"
)

// Recognized multiplier factor names in ExerciseConfig.Multipliers.
// Unknown factor names are ignored during calculation (forward compatibility)
// but reported as warnings when the config is validated.
const (
	FactorReps        = "reps"
	FactorSets        = "sets"
	FactorWeight      = "weight"
	FactorDistanceKm  = "distance_km"
	FactorDurationMin = "duration_min"
	FactorDurationSec = "duration_sec"
)

var knownFactors = map[string]bool{
	FactorReps:        true,
	FactorSets:        true,
	FactorWeight:      true,
	FactorDistanceKm:  true,
	FactorDurationMin: true,
	FactorDurationSec: true,
}

// ExerciseConfig describes how one exercise type earns points
type ExerciseConfig struct {
	Key                  string             `json:"key" yaml:"key"`
	DisplayName          string             `json:"display_name" yaml:"display_name"`
	DisplayNameLocalized string             `json:"display_name_localized" yaml:"display_name_localized"`
	Category             Category           `json:"category" yaml:"category"`
	BasePoints           int                `json:"base_points" yaml:"base_points"`
	Multipliers          map[string]float64 `json:"multipliers" yaml:"multipliers"`
	Enabled              bool               `json:"enabled" yaml:"enabled"`
	Version              int                `json:"version" yaml:"version,omitempty"`
}

// Validate checks the config invariants. Unknown multiplier factors are
// returned as warnings, not errors, so old documents keep loading.
func (c *ExerciseConfig) Validate() ([]string, error) {
	if c.Key == "" {
		return nil, fmt.Errorf("exercise config: empty key")
	}
	if c.BasePoints < 0 {
		return nil, fmt.Errorf("exercise config %q: base_points must be >= 0", c.Key)
	}
	switch c.Category {
	case CategoryStrength, CategoryCardio, CategoryCore:
	default:
		return nil, fmt.Errorf("exercise config %q: unknown category %q", c.Key, c.Category)
	}
	var warnings []string
	for factor := range c.Multipliers {
		if !knownFactors[factor] {
			warnings = append(warnings, fmt.Sprintf("exercise %q: unrecognized multiplier factor %q ignored", c.Key, factor))
		}
	}
	return warnings, nil
}

// RuleType distinguishes how a rule modifies the running total
type RuleType string

const (
	RuleBonus      RuleType = "bonus"      // adds a fixed point amount
	RuleMultiplier RuleType = "multiplier" // scales the running total
)

// Rule is a named, orderable modifier applied during a calculation.
// Rules evaluate in ascending Priority order; all eligible bonus rules
// apply before any multiplier rule.
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Type        RuleType `json:"rule_type" yaml:"rule_type"`
	Condition   string   `json:"condition" yaml:"condition"`
	Value       float64  `json:"value" yaml:"value"`
	Priority    int      `json:"priority" yaml:"priority"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// Validate checks rule invariants. Condition syntax is checked separately
// by the condition package.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule: empty id")
	}
	switch r.Type {
	case RuleBonus, RuleMultiplier:
	default:
		return fmt.Errorf("rule %q: unknown rule_type %q", r.ID, r.Type)
	}
	if r.Type == RuleMultiplier && r.Value < 0 {
		return fmt.Errorf("rule %q: multiplier value must be >= 0", r.ID)
	}
	return nil
}

// AppliedRule records one rule that fired during a calculation
type AppliedRule struct {
	RuleID string  `json:"rule_id"`
	Value  float64 `json:"value"`
}

// PointsBreakdown is the itemized contribution record for one calculation.
// Immutable once returned; persisted by the caller as an audit record.
type PointsBreakdown struct {
	BasePoints            int           `json:"base_points"`
	RepsPoints            int           `json:"reps_points"`
	SetsPoints            int           `json:"sets_points"`
	WeightPoints          int           `json:"weight_points"`
	DistancePoints        int           `json:"distance_points"`
	DurationPoints        int           `json:"duration_points"`
	BonusPoints           float64       `json:"bonus_points"`
	MultiplierValue       float64       `json:"multiplier_value"`
	TotalBeforeMultiplier int           `json:"total_before_multiplier"`
	TotalPoints           int           `json:"total_points"`
	AppliedBonuses        []AppliedRule `json:"applied_bonuses"`
	AppliedMultipliers    []AppliedRule `json:"applied_multipliers"`
}

// CalculationStatus of a CalculationResult
type CalculationStatus string

const (
	StatusPending   CalculationStatus = "pending"
	StatusCompleted CalculationStatus = "completed"
	StatusFailed    CalculationStatus = "failed"
	StatusCached    CalculationStatus = "cached"
)

// CalculationResult is the envelope returned by the points engine
type CalculationResult struct {
	ID              string            `json:"id"`
	ExerciseKey     string            `json:"exercise_key"`
	Status          CalculationStatus `json:"status"`
	TotalPoints     int               `json:"total_points"`
	Breakdown       PointsBreakdown   `json:"breakdown"`
	AppliedRules    []string          `json:"applied_rules"`
	Errors          []string          `json:"errors,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	CalculationTime time.Duration     `json:"calculation_time"`
}

// Activity is one parsed exercise log entry, supplied by the upstream parser.
// The engine trusts this shape and does not re-validate semantic correctness.
type Activity struct {
	ExerciseKey      string  `json:"exercise_key"`
	Reps             int     `json:"reps"`
	Sets             int     `json:"sets"`
	WeightKg         float64 `json:"weight_kg"`
	DistanceKm       float64 `json:"distance_km"`
	DurationSeconds  int     `json:"duration_seconds"`
	IsPersonalRecord bool    `json:"is_personal_record"`
}

// Clamped returns a copy with negative measurements treated as zero
func (a Activity) Clamped() Activity {
	if a.Reps < 0 {
		a.Reps = 0
	}
	if a.Sets < 0 {
		a.Sets = 0
	}
	if a.WeightKg < 0 {
		a.WeightKg = 0
	}
	if a.DistanceKm < 0 {
		a.DistanceKm = 0
	}
	if a.DurationSeconds < 0 {
		a.DurationSeconds = 0
	}
	return a
}

// ConfigDocument is one versioned row in the configuration store.
// A new version supersedes but never mutates a prior one; at most one
// version per (entity_type, entity_key) is active at a time.
type ConfigDocument struct {
	EntityType string          `json:"entity_type"`
	EntityKey  string          `json:"entity_key"`
	Data       json.RawMessage `json:"data"`
	Version    int             `json:"version"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Entity types stored in the configuration store
const (
	EntityExercise    = "exercise"
	EntityRule        = "rule"
	EntityAchievement = "achievement"
)

// ParseExerciseConfig decodes and validates an exercise document payload
func ParseExerciseConfig(data []byte) (*ExerciseConfig, []string, error) {
	var cfg ExerciseConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("decode exercise config: %w", err)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	return &cfg, warnings, nil
}

// ParseRule decodes and validates a rule document payload
func ParseRule(data []byte) (*Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
