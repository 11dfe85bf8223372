// Package engine converts a logged activity into a point total with a full
// audit breakdown, driven by user-editable exercise configs and ordered
// bonus/multiplier rules.
package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fitpoints/internal/cache"
	"fitpoints/internal/condition"
	"fitpoints/internal/models"
)

// ConfigStore is the slice of the configuration store the engine reads
// through. A missing document is (nil, nil); an error means the store
// itself is unreachable.
type ConfigStore interface {
	GetConfig(entityType, entityKey string, activeOnly bool) (*models.ConfigDocument, error)
	ListConfigs(entityType string) ([]models.ConfigDocument, error)
}

// AuditSink records completed calculations. Fire-and-forget: a sink failure
// is logged and never fails the calculation.
type AuditSink interface {
	RecordCalculation(userID int64, exerciseKey string, breakdown []byte, totalPoints int, ts time.Time) error
}

// Cache keys for parsed configuration documents
const (
	exerciseKeyPrefix = "config:exercise:"
	rulesCacheKey     = "config:rules"
)

// Engine is stateless per call: each Calculate reads configuration
// snapshots and writes only its own result, so concurrent calculations
// need no locking. Construct one at startup and share it.
type Engine struct {
	store ConfigStore
	cache cache.Cache
	eval  *condition.Evaluator
	audit AuditSink
	ttl   time.Duration
}

// New creates an engine with injected dependencies. audit may be nil to
// disable audit recording (used in tests).
func New(store ConfigStore, c cache.Cache, eval *condition.Evaluator, audit AuditSink, ttl time.Duration) *Engine {
	if c == nil {
		c = cache.NewMemory()
	}
	if eval == nil {
		eval = condition.New()
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Engine{store: store, cache: c, eval: eval, audit: audit, ttl: ttl}
}

// Calculate scores one activity for a user. It never panics and never
// returns a nil result: configuration problems yield a failed result,
// rule problems yield warnings on a completed result.
func (e *Engine) Calculate(userID int64, act models.Activity, extra map[string]any) *models.CalculationResult {
	start := time.Now()
	res := &models.CalculationResult{
		ID:          uuid.NewString(),
		ExerciseKey: act.ExerciseKey,
		Status:      models.StatusPending,
	}

	act = act.Clamped()

	// Exercise config and rule set are independent reads; fetch them
	// concurrently.
	var (
		cfg      *models.ExerciseConfig
		cfgWarns []string
		cfgErr   error
		rules    []models.Rule
		rulesErr error
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cfg, cfgWarns, cfgErr = e.loadExercise(act.ExerciseKey)
	}()
	go func() {
		defer wg.Done()
		rules, rulesErr = e.loadRules()
	}()
	wg.Wait()

	if cfgErr != nil {
		res.Status = models.StatusFailed
		res.Errors = append(res.Errors, fmt.Sprintf("configuration store unavailable: %v", cfgErr))
		res.CalculationTime = time.Since(start)
		return res
	}
	if cfg == nil || !cfg.Enabled {
		res.Status = models.StatusFailed
		res.Errors = append(res.Errors, fmt.Sprintf("exercise %q not found or disabled", act.ExerciseKey))
		res.CalculationTime = time.Since(start)
		return res
	}
	res.Warnings = append(res.Warnings, cfgWarns...)
	if rulesErr != nil {
		// partial scoring beats blocking the workout log: base points
		// still count, rules just don't apply
		res.Warnings = append(res.Warnings, fmt.Sprintf("rules unavailable, scoring without rules: %v", rulesErr))
		rules = nil
	}

	bd := e.buildBreakdown(cfg, act)
	ctx := buildContext(act, extra)
	e.applyRules(rules, ctx, &bd, res)

	total := math.Floor((float64(bd.TotalBeforeMultiplier) + bd.BonusPoints) * bd.MultiplierValue)
	if total < 0 {
		total = 0
	}
	bd.TotalPoints = int(total)

	res.Breakdown = bd
	res.TotalPoints = bd.TotalPoints
	res.Status = models.StatusCompleted
	res.CalculationTime = time.Since(start)

	e.recordAudit(userID, res)
	return res
}

// buildBreakdown computes the per-factor component points.
// component = floor(base * measurement * factor); an unset factor
// contributes nothing. When both duration factors are configured,
// duration_sec wins.
func (e *Engine) buildBreakdown(cfg *models.ExerciseConfig, act models.Activity) models.PointsBreakdown {
	bd := models.PointsBreakdown{
		BasePoints:      cfg.BasePoints,
		MultiplierValue: 1.0,
	}
	base := float64(cfg.BasePoints)

	if act.Reps > 0 {
		bd.RepsPoints = component(base, float64(act.Reps), cfg.Multipliers[models.FactorReps])
	}
	if act.Sets > 1 {
		bd.SetsPoints = component(base, float64(act.Sets), cfg.Multipliers[models.FactorSets])
	}
	if act.WeightKg > 0 {
		bd.WeightPoints = component(base, act.WeightKg, cfg.Multipliers[models.FactorWeight])
	}
	if act.DistanceKm > 0 {
		bd.DistancePoints = component(base, act.DistanceKm, cfg.Multipliers[models.FactorDistanceKm])
	}
	if act.DurationSeconds > 0 {
		if factor, ok := cfg.Multipliers[models.FactorDurationSec]; ok {
			bd.DurationPoints = component(base, float64(act.DurationSeconds), factor)
		} else if factor, ok := cfg.Multipliers[models.FactorDurationMin]; ok {
			bd.DurationPoints = component(base, float64(act.DurationSeconds)/60, factor)
		}
	}

	bd.TotalBeforeMultiplier = bd.BasePoints + bd.RepsPoints + bd.SetsPoints +
		bd.WeightPoints + bd.DistancePoints + bd.DurationPoints
	return bd
}

func component(base, measurement, factor float64) int {
	return int(math.Floor(base * measurement * factor))
}

// buildContext assembles the mapping rule conditions are evaluated against:
// activity measurements plus caller-supplied situational signals.
func buildContext(act models.Activity, extra map[string]any) map[string]any {
	ctx := map[string]any{
		"reps":               act.Reps,
		"sets":               act.Sets,
		"weight_kg":          act.WeightKg,
		"distance_km":        act.DistanceKm,
		"duration_seconds":   act.DurationSeconds,
		"duration_minutes":   float64(act.DurationSeconds) / 60,
		"is_personal_record": act.IsPersonalRecord,
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// applyRules runs the two-phase rule application: every eligible bonus
// rule first, then every eligible multiplier rule, both in ascending
// priority order. A rule whose condition fails to evaluate is skipped
// with a warning; a single malformed rule never aborts the calculation.
func (e *Engine) applyRules(rules []models.Rule, ctx map[string]any, bd *models.PointsBreakdown, res *models.CalculationResult) {
	sorted := make([]models.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, r := range sorted {
		if !r.Enabled || r.Type != models.RuleBonus {
			continue
		}
		ok, err := e.eval.Evaluate(r.Condition, ctx)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rule %s skipped: %v", r.ID, err))
			continue
		}
		if !ok {
			continue
		}
		bd.BonusPoints += r.Value
		bd.AppliedBonuses = append(bd.AppliedBonuses, models.AppliedRule{RuleID: r.ID, Value: r.Value})
		res.AppliedRules = append(res.AppliedRules, r.ID)
	}

	for _, r := range sorted {
		if !r.Enabled || r.Type != models.RuleMultiplier {
			continue
		}
		ok, err := e.eval.Evaluate(r.Condition, ctx)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rule %s skipped: %v", r.ID, err))
			continue
		}
		if !ok {
			continue
		}
		bd.MultiplierValue *= r.Value
		bd.AppliedMultipliers = append(bd.AppliedMultipliers, models.AppliedRule{RuleID: r.ID, Value: r.Value})
		res.AppliedRules = append(res.AppliedRules, r.ID)
	}
}

func (e *Engine) recordAudit(userID int64, res *models.CalculationResult) {
	if e.audit == nil || userID == 0 {
		return
	}
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		log.Printf("Аудит: не удалось сериализовать breakdown: %v", err)
		return
	}
	if err := e.audit.RecordCalculation(userID, res.ExerciseKey, breakdown, res.TotalPoints, time.Now()); err != nil {
		log.Printf("Аудит: не удалось записать расчёт %s: %v", res.ID, err)
	}
}
