package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// AuditRepository пишет журнал расчётов очков
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository создаёт репозиторий журнала расчётов
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordCalculation сохраняет итог расчёта. Записи не изменяются после вставки.
func (r *AuditRepository) RecordCalculation(userID int64, exerciseKey string, breakdown []byte, totalPoints int, ts time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO public.calculation_audit (id, user_id, exercise_key, breakdown, total_points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), userID, exerciseKey, breakdown, totalPoints, ts)
	return err
}

// GetUserStats возвращает агрегаты пользователя для проверки достижений
func (r *AuditRepository) GetUserStats(userID int64) (map[string]any, error) {
	var workouts int
	var totalPoints int64
	err := r.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(total_points), 0)
		FROM public.calculation_audit
		WHERE user_id = $1`, userID).Scan(&workouts, &totalPoints)
	if err != nil {
		return nil, err
	}

	var exercises int
	err = r.db.QueryRow(`
		SELECT COUNT(DISTINCT exercise_key)
		FROM public.calculation_audit
		WHERE user_id = $1`, userID).Scan(&exercises)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"total_workouts":  workouts,
		"total_points":    totalPoints,
		"total_exercises": exercises,
	}, nil
}
