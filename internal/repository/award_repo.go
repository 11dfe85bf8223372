package repository

import (
	"database/sql"
	"time"
)

// AwardRepository хранит выданные достижения
type AwardRepository struct {
	db *sql.DB
}

// NewAwardRepository создаёт репозиторий достижений
func NewAwardRepository(db *sql.DB) *AwardRepository {
	return &AwardRepository{db: db}
}

// GetAwardedKeys возвращает множество уже выданных пользователю достижений
func (r *AwardRepository) GetAwardedKeys(userID int64) (map[string]bool, error) {
	rows, err := r.db.Query(`
		SELECT achievement_key
		FROM public.achievement_awards
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	awarded := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		awarded[key] = true
	}
	return awarded, rows.Err()
}

// SaveAward сохраняет выданное достижение. Повторная выдача игнорируется.
func (r *AwardRepository) SaveAward(userID int64, achievementKey string, points int, awardedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO public.achievement_awards (user_id, achievement_key, points, awarded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_key) DO NOTHING`,
		userID, achievementKey, points, awardedAt)
	return err
}
