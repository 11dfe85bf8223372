package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fitpoints/internal/cache"
	"fitpoints/internal/condition"
	"fitpoints/internal/models"
)

// fakeStore serves documents from memory
type fakeStore struct {
	docs map[string]map[string]models.ConfigDocument
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]map[string]models.ConfigDocument)}
}

func (s *fakeStore) put(entityType, key string, value any) {
	data, _ := json.Marshal(value)
	if s.docs[entityType] == nil {
		s.docs[entityType] = make(map[string]models.ConfigDocument)
	}
	s.docs[entityType][key] = models.ConfigDocument{
		EntityType: entityType,
		EntityKey:  key,
		Data:       data,
		Version:    1,
		IsActive:   true,
	}
}

func (s *fakeStore) GetConfig(entityType, entityKey string, activeOnly bool) (*models.ConfigDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	doc, ok := s.docs[entityType][entityKey]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *fakeStore) ListConfigs(entityType string) ([]models.ConfigDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	var docs []models.ConfigDocument
	for _, doc := range s.docs[entityType] {
		docs = append(docs, doc)
	}
	return docs, nil
}

type recordedCalculation struct {
	userID      int64
	exerciseKey string
	totalPoints int
}

type fakeSink struct {
	records []recordedCalculation
	err     error
}

func (s *fakeSink) RecordCalculation(userID int64, exerciseKey string, breakdown []byte, totalPoints int, ts time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, recordedCalculation{userID, exerciseKey, totalPoints})
	return nil
}

func squatConfig() models.ExerciseConfig {
	return models.ExerciseConfig{
		Key:         "squat",
		DisplayName: "Squat",
		Category:    models.CategoryStrength,
		BasePoints:  10,
		Multipliers: map[string]float64{"reps": 1.0, "sets": 5.0},
		Enabled:     true,
	}
}

func newTestEngine(store ConfigStore) *Engine {
	return New(store, cache.NewMemory(), condition.New(), nil, time.Minute)
}

func TestCalculate_SquatScenario(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if res.Status != models.StatusCompleted {
		t.Fatalf("status = %v, want completed (errors: %v)", res.Status, res.Errors)
	}
	if res.Breakdown.RepsPoints != 100 {
		t.Errorf("reps_points = %d, want 100", res.Breakdown.RepsPoints)
	}
	if res.Breakdown.SetsPoints != 150 {
		t.Errorf("sets_points = %d, want 150", res.Breakdown.SetsPoints)
	}
	if res.Breakdown.TotalBeforeMultiplier != 260 {
		t.Errorf("total_before_multiplier = %d, want 260", res.Breakdown.TotalBeforeMultiplier)
	}
	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260", res.TotalPoints)
	}
}

func TestCalculate_BonusNotTriggered(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "high_reps", models.Rule{
		ID: "high_reps", Type: models.RuleBonus, Condition: "reps >= 20",
		Value: 50, Priority: 10, Enabled: true,
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260 (condition false, bonus must not apply)", res.TotalPoints)
	}
	if len(res.Breakdown.AppliedBonuses) != 0 {
		t.Errorf("applied_bonuses = %v, want empty", res.Breakdown.AppliedBonuses)
	}
}

func TestCalculate_BonusTriggered(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "high_reps", models.Rule{
		ID: "high_reps", Type: models.RuleBonus, Condition: "reps >= 20",
		Value: 50, Priority: 10, Enabled: true,
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 25, Sets: 3}, nil)

	// reps 10*25*1.0=250, sets 10*3*5.0=150, base 10 => 410, +50 bonus
	if res.Breakdown.TotalBeforeMultiplier != 410 {
		t.Errorf("total_before_multiplier = %d, want 410", res.Breakdown.TotalBeforeMultiplier)
	}
	if res.Breakdown.BonusPoints != 50 {
		t.Errorf("bonus_points = %v, want 50", res.Breakdown.BonusPoints)
	}
	if res.TotalPoints != 460 {
		t.Errorf("total_points = %d, want 460", res.TotalPoints)
	}
}

func TestCalculate_PersonalRecordMultiplier(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "pr", models.Rule{
		ID: "pr", Type: models.RuleMultiplier, Condition: "is_personal_record == true",
		Value: 2.0, Priority: 100, Enabled: true,
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3, IsPersonalRecord: true}, nil)

	if res.TotalPoints != 520 {
		t.Errorf("total_points = %d, want 520", res.TotalPoints)
	}
	if res.Breakdown.MultiplierValue != 2.0 {
		t.Errorf("multiplier_value = %v, want 2.0", res.Breakdown.MultiplierValue)
	}
}

func TestCalculate_BonusBeforeMultiplier(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "bonus", models.Rule{
		ID: "bonus", Type: models.RuleBonus, Condition: "reps >= 20",
		Value: 50, Priority: 10, Enabled: true,
	})
	store.put(models.EntityRule, "pr", models.Rule{
		ID: "pr", Type: models.RuleMultiplier, Condition: "is_personal_record == true",
		Value: 2.0, Priority: 5, Enabled: true, // lower priority than the bonus on purpose
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 25, Sets: 3, IsPersonalRecord: true}, nil)

	// multiplier must scale (base+components+bonus), never base alone:
	// (410 + 50) * 2.0 = 920
	if res.TotalPoints != 920 {
		t.Errorf("total_points = %d, want 920", res.TotalPoints)
	}
	bd := res.Breakdown
	want := int((float64(bd.TotalBeforeMultiplier) + bd.BonusPoints) * bd.MultiplierValue)
	if res.TotalPoints != want {
		t.Errorf("total_points = %d, violates floor((before+bonus)*multiplier) = %d", res.TotalPoints, want)
	}
}

func TestCalculate_RuleOrdering(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "second", models.Rule{
		ID: "second", Type: models.RuleBonus, Condition: "reps >= 1",
		Value: 10, Priority: 2, Enabled: true,
	})
	store.put(models.EntityRule, "first", models.Rule{
		ID: "first", Type: models.RuleBonus, Condition: "reps >= 1",
		Value: 20, Priority: 1, Enabled: true,
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 5}, nil)

	if len(res.AppliedRules) != 2 {
		t.Fatalf("applied_rules = %v, want 2 entries", res.AppliedRules)
	}
	if res.AppliedRules[0] != "first" || res.AppliedRules[1] != "second" {
		t.Errorf("applied_rules = %v, want [first second]", res.AppliedRules)
	}
}

func TestCalculate_Determinism(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "bonus", models.Rule{
		ID: "bonus", Type: models.RuleBonus, Condition: "reps >= 5 and sets >= 2",
		Value: 25, Priority: 1, Enabled: true,
	})

	eng := newTestEngine(store)
	act := models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}

	first := eng.Calculate(0, act, nil)
	for i := 0; i < 10; i++ {
		res := eng.Calculate(0, act, nil)
		if res.TotalPoints != first.TotalPoints {
			t.Fatalf("run %d: total_points = %d, want %d", i, res.TotalPoints, first.TotalPoints)
		}
	}
}

func TestCalculate_NegativeInputsClamped(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	eng := newTestEngine(store)

	zero := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 0, Sets: 0}, nil)
	negative := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: -10, Sets: -3, WeightKg: -60}, nil)

	if negative.TotalPoints != zero.TotalPoints {
		t.Errorf("negative inputs: total = %d, want same as zero inputs (%d)", negative.TotalPoints, zero.TotalPoints)
	}
	if negative.TotalPoints < 0 {
		t.Errorf("total_points = %d, must never be negative", negative.TotalPoints)
	}
}

func TestCalculate_UnknownExercise(t *testing.T) {
	eng := newTestEngine(newFakeStore())
	res := eng.Calculate(0, models.Activity{ExerciseKey: "burpee"}, nil)

	if res.Status != models.StatusFailed {
		t.Errorf("status = %v, want failed", res.Status)
	}
	if res.TotalPoints != 0 {
		t.Errorf("total_points = %d, want 0", res.TotalPoints)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want exactly one", res.Errors)
	}
}

func TestCalculate_DisabledExercise(t *testing.T) {
	store := newFakeStore()
	cfg := squatConfig()
	cfg.Enabled = false
	store.put(models.EntityExercise, "squat", cfg)

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10}, nil)

	if res.Status != models.StatusFailed {
		t.Errorf("status = %v, want failed", res.Status)
	}
	if res.TotalPoints != 0 {
		t.Errorf("total_points = %d, want 0", res.TotalPoints)
	}
}

func TestCalculate_StoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10}, nil)

	if res.Status != models.StatusFailed {
		t.Errorf("status = %v, want failed", res.Status)
	}
	if len(res.Errors) == 0 || res.Errors[0] == "" {
		t.Errorf("errors = %v, want a store-unavailable error", res.Errors)
	}
}

func TestCalculate_MalformedRuleTolerated(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "broken", models.Rule{
		ID: "broken", Type: models.RuleBonus, Condition: "reps >=> 20",
		Value: 50, Priority: 1, Enabled: true,
	})

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if res.Status != models.StatusCompleted {
		t.Fatalf("status = %v, want completed despite malformed rule", res.Status)
	}
	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260", res.TotalPoints)
	}
	if len(res.Warnings) == 0 {
		t.Errorf("warnings empty, want one for the skipped rule")
	}
}

func TestCalculate_MissingContextKeyTreatedAsFalse(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	store.put(models.EntityRule, "streak", models.Rule{
		ID: "streak", Type: models.RuleMultiplier, Condition: "streak_days >= 7",
		Value: 1.5, Priority: 1, Enabled: true,
	})

	eng := newTestEngine(store)

	// without the extra signal the rule must be treated as not met
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)
	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260 when streak_days is absent", res.TotalPoints)
	}

	// with the signal supplied it applies
	res = eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3},
		map[string]any{"streak_days": 8})
	if res.TotalPoints != 390 {
		t.Errorf("total_points = %d, want 390 with streak multiplier 1.5", res.TotalPoints)
	}
}

func TestCalculate_DurationSecPreferredOverMin(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "plank", models.ExerciseConfig{
		Key: "plank", Category: models.CategoryCore, BasePoints: 6,
		Multipliers: map[string]float64{"duration_sec": 0.2, "duration_min": 100},
		Enabled:     true,
	})
	store.put(models.EntityExercise, "row", models.ExerciseConfig{
		Key: "row", Category: models.CategoryCardio, BasePoints: 8,
		Multipliers: map[string]float64{"duration_min": 0.5},
		Enabled:     true,
	})

	eng := newTestEngine(store)

	// duration_sec wins: floor(6 * 90 * 0.2) = 108
	res := eng.Calculate(0, models.Activity{ExerciseKey: "plank", DurationSeconds: 90}, nil)
	if res.Breakdown.DurationPoints != 108 {
		t.Errorf("plank duration_points = %d, want 108", res.Breakdown.DurationPoints)
	}

	// only duration_min: floor(8 * 10 * 0.5) = 40
	res = eng.Calculate(0, models.Activity{ExerciseKey: "row", DurationSeconds: 600}, nil)
	if res.Breakdown.DurationPoints != 40 {
		t.Errorf("row duration_points = %d, want 40", res.Breakdown.DurationPoints)
	}
}

func TestCalculate_UnknownMultiplierFactorIgnored(t *testing.T) {
	store := newFakeStore()
	cfg := squatConfig()
	cfg.Multipliers["sprockets"] = 99.0
	store.put(models.EntityExercise, "squat", cfg)

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if res.Status != models.StatusCompleted {
		t.Fatalf("status = %v, want completed", res.Status)
	}
	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260 (unknown factor must not contribute)", res.TotalPoints)
	}
	if len(res.Warnings) == 0 {
		t.Errorf("warnings empty, want one about the unrecognized factor")
	}
}

func TestCalculate_AuditRecorded(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	sink := &fakeSink{}

	eng := New(store, cache.NewMemory(), condition.New(), sink, time.Minute)
	eng.Calculate(42, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	rec := sink.records[0]
	if rec.userID != 42 || rec.exerciseKey != "squat" || rec.totalPoints != 260 {
		t.Errorf("audit record = %+v, want user 42, squat, 260", rec)
	}
}

func TestCalculate_AuditFailureDoesNotFailCalculation(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())
	sink := &fakeSink{err: errors.New("sink down")}

	eng := New(store, cache.NewMemory(), condition.New(), sink, time.Minute)
	res := eng.Calculate(42, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)

	if res.Status != models.StatusCompleted {
		t.Errorf("status = %v, want completed despite audit failure", res.Status)
	}
	if res.TotalPoints != 260 {
		t.Errorf("total_points = %d, want 260", res.TotalPoints)
	}
}

func TestReloadConfiguration_PicksUpStoreEdits(t *testing.T) {
	store := newFakeStore()
	store.put(models.EntityExercise, "squat", squatConfig())

	eng := newTestEngine(store)
	res := eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)
	if res.TotalPoints != 260 {
		t.Fatalf("total_points = %d, want 260", res.TotalPoints)
	}

	// admin edit: base points doubled; cached value still serves until reload
	edited := squatConfig()
	edited.BasePoints = 20
	store.put(models.EntityExercise, "squat", edited)

	if err := eng.ReloadConfiguration(); err != nil {
		t.Fatalf("ReloadConfiguration: %v", err)
	}

	res = eng.Calculate(0, models.Activity{ExerciseKey: "squat", Reps: 10, Sets: 3}, nil)
	// base 20: reps 20*10=200, sets 20*3*5=300, total 520
	if res.TotalPoints != 520 {
		t.Errorf("total_points after reload = %d, want 520", res.TotalPoints)
	}
}
