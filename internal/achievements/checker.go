// Package achievements evaluates a user's aggregate stats against
// achievement definitions and returns newly qualified awards.
package achievements

import (
	"encoding/json"
	"log"
	"time"

	"fitpoints/internal/cache"
	"fitpoints/internal/condition"
	"fitpoints/internal/models"
)

const defsCacheKey = "config:achievements"

// DefStore lists achievement definition documents
type DefStore interface {
	ListConfigs(entityType string) ([]models.ConfigDocument, error)
}

// Checker is a pure function over supplied stats: it does not query
// persistence itself — the caller provides current aggregates and the
// already-awarded set.
type Checker struct {
	store DefStore
	cache cache.Cache
	eval  *condition.Evaluator
	ttl   time.Duration
}

// New creates a checker with injected dependencies
func New(store DefStore, c cache.Cache, eval *condition.Evaluator, ttl time.Duration) *Checker {
	if c == nil {
		c = cache.NewMemory()
	}
	if eval == nil {
		eval = condition.New()
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Checker{store: store, cache: c, eval: eval, ttl: ttl}
}

// Check returns every enabled achievement whose condition holds for stats
// and that is not in awarded. Idempotent: re-running with the updated
// awarded set never re-awards. A bad condition skips that definition only.
func (c *Checker) Check(stats map[string]any, awarded map[string]bool) ([]models.AchievementAward, error) {
	defs, err := c.loadDefs()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var awards []models.AchievementAward
	for _, def := range defs {
		if !def.Enabled || awarded[def.Key] {
			continue
		}
		ok, err := c.eval.Evaluate(def.Condition, stats)
		if err != nil {
			log.Printf("Достижение %s пропущено: %v", def.Key, err)
			continue
		}
		if !ok {
			continue
		}
		awards = append(awards, models.AchievementAward{
			Key:       def.Key,
			Name:      def.Name,
			Icon:      def.Icon,
			Points:    def.Points,
			AwardedAt: now,
		})
	}
	return awards, nil
}

func (c *Checker) loadDefs() ([]models.AchievementDef, error) {
	if data, ok, _ := c.cache.Get(defsCacheKey); ok {
		var defs []models.AchievementDef
		if err := json.Unmarshal(data, &defs); err == nil {
			return defs, nil
		}
	}

	docs, err := c.store.ListConfigs(models.EntityAchievement)
	if err != nil {
		return nil, err
	}

	defs := make([]models.AchievementDef, 0, len(docs))
	for _, doc := range docs {
		def, err := models.ParseAchievementDef(doc.Data)
		if err != nil {
			log.Printf("Достижение %s пропущено: %v", doc.EntityKey, err)
			continue
		}
		defs = append(defs, *def)
	}

	if data, err := json.Marshal(defs); err == nil {
		if err := c.cache.Set(defsCacheKey, data, c.ttl); err != nil {
			log.Printf("Кэш: не удалось сохранить %s: %v", defsCacheKey, err)
		}
	}
	return defs, nil
}
