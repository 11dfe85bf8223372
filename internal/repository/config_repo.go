package repository

import (
	"database/sql"
	"encoding/json"

	"fitpoints/internal/models"
)

// ConfigRepository работает с версионированными конфигурациями движка очков
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository создаёт репозиторий конфигураций
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// GetConfig возвращает документ конфигурации или nil, если его нет.
// При activeOnly=true возвращается только активная версия.
func (r *ConfigRepository) GetConfig(entityType, entityKey string, activeOnly bool) (*models.ConfigDocument, error) {
	doc := &models.ConfigDocument{}
	err := r.db.QueryRow(`
		SELECT entity_type, entity_key, data, version, is_active, created_at
		FROM public.point_configs
		WHERE entity_type = $1 AND entity_key = $2 AND ($3 = false OR is_active)
		ORDER BY version DESC
		LIMIT 1`, entityType, entityKey, activeOnly).Scan(
		&doc.EntityType, &doc.EntityKey, &doc.Data, &doc.Version, &doc.IsActive, &doc.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListConfigs возвращает все активные документы указанного типа
func (r *ConfigRepository) ListConfigs(entityType string) ([]models.ConfigDocument, error) {
	rows, err := r.db.Query(`
		SELECT entity_type, entity_key, data, version, is_active, created_at
		FROM public.point_configs
		WHERE entity_type = $1 AND is_active
		ORDER BY entity_key`, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.ConfigDocument
	for rows.Next() {
		var doc models.ConfigDocument
		if err := rows.Scan(&doc.EntityType, &doc.EntityKey, &doc.Data,
			&doc.Version, &doc.IsActive, &doc.CreatedAt); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// WriteConfig записывает новую версию документа. История только дописывается:
// прошлая активная версия деактивируется, но никогда не изменяется.
func (r *ConfigRepository) WriteConfig(entityType, entityKey string, data json.RawMessage) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM public.point_configs
		WHERE entity_type = $1 AND entity_key = $2`, entityType, entityKey).Scan(&current)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(`
		UPDATE public.point_configs
		SET is_active = false
		WHERE entity_type = $1 AND entity_key = $2 AND is_active`, entityType, entityKey)
	if err != nil {
		return 0, err
	}

	version := current + 1
	_, err = tx.Exec(`
		INSERT INTO public.point_configs (entity_type, entity_key, data, version, is_active)
		VALUES ($1, $2, $3, $4, true)`, entityType, entityKey, data, version)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}
