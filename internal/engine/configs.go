package engine

import (
	"encoding/json"
	"fmt"
	"log"

	"fitpoints/internal/models"
)

// loadExercise resolves the active config for an exercise key through the
// cache. Returns (nil, nil, nil) when no active document exists.
func (e *Engine) loadExercise(key string) (*models.ExerciseConfig, []string, error) {
	cacheKey := exerciseKeyPrefix + key
	if data, ok, _ := e.cache.Get(cacheKey); ok {
		cfg, warnings, err := models.ParseExerciseConfig(data)
		if err == nil {
			return cfg, warnings, nil
		}
		// a corrupt cache entry falls through to the store
	}

	doc, err := e.store.GetConfig(models.EntityExercise, key, true)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, nil
	}

	cfg, warnings, err := models.ParseExerciseConfig(doc.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("exercise %q: %w", key, err)
	}
	cfg.Version = doc.Version

	if data, err := json.Marshal(cfg); err == nil {
		if err := e.cache.Set(cacheKey, data, e.ttl); err != nil {
			log.Printf("Кэш: не удалось сохранить %s: %v", cacheKey, err)
		}
	}
	return cfg, warnings, nil
}

// loadRules returns all enabled rules sorted by ascending priority,
// through the cache. Invalid rule documents are skipped with a log line
// so one bad admin edit never blocks scoring.
func (e *Engine) loadRules() ([]models.Rule, error) {
	if data, ok, _ := e.cache.Get(rulesCacheKey); ok {
		var rules []models.Rule
		if err := json.Unmarshal(data, &rules); err == nil {
			return rules, nil
		}
	}

	docs, err := e.store.ListConfigs(models.EntityRule)
	if err != nil {
		return nil, err
	}

	rules := make([]models.Rule, 0, len(docs))
	for _, doc := range docs {
		rule, err := models.ParseRule(doc.Data)
		if err != nil {
			log.Printf("Правило %s пропущено: %v", doc.EntityKey, err)
			continue
		}
		if !rule.Enabled {
			continue
		}
		rules = append(rules, *rule)
	}

	if data, err := json.Marshal(rules); err == nil {
		if err := e.cache.Set(rulesCacheKey, data, e.ttl); err != nil {
			log.Printf("Кэш: не удалось сохранить %s: %v", rulesCacheKey, err)
		}
	}
	return rules, nil
}

// ReloadConfiguration drops cached configuration and re-warms it from the
// store, bypassing TTL. Called after an admin edit and on the periodic
// refresh schedule.
func (e *Engine) ReloadConfiguration() error {
	if err := e.cache.Invalidate("config:"); err != nil {
		log.Printf("Кэш: ошибка инвалидации: %v", err)
	}

	if _, err := e.loadRules(); err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}

	docs, err := e.store.ListConfigs(models.EntityExercise)
	if err != nil {
		return fmt.Errorf("reload exercises: %w", err)
	}
	for _, doc := range docs {
		cfg, _, err := models.ParseExerciseConfig(doc.Data)
		if err != nil {
			log.Printf("Упражнение %s пропущено: %v", doc.EntityKey, err)
			continue
		}
		cfg.Version = doc.Version
		if data, err := json.Marshal(cfg); err == nil {
			if err := e.cache.Set(exerciseKeyPrefix+cfg.Key, data, e.ttl); err != nil {
				log.Printf("Кэш: не удалось сохранить %s: %v", exerciseKeyPrefix+cfg.Key, err)
			}
		}
	}
	return nil
}
