package repository

import (
	"database/sql"
	"fmt"
)

// Migrate создаёт таблицы, если их ещё нет
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS public.point_configs (
			id SERIAL PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_key TEXT NOT NULL,
			data JSONB NOT NULL,
			version INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (entity_type, entity_key, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_point_configs_active
			ON public.point_configs (entity_type, entity_key) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS public.calculation_audit (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			exercise_key TEXT NOT NULL,
			breakdown JSONB NOT NULL,
			total_points INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calculation_audit_user
			ON public.calculation_audit (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS public.achievement_awards (
			id SERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			achievement_key TEXT NOT NULL,
			points INT NOT NULL DEFAULT 0,
			awarded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, achievement_key)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
