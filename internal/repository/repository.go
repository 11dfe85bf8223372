package repository

import "database/sql"

// Repository содержит все репозитории
type Repository struct {
	Config *ConfigRepository
	Audit  *AuditRepository
	Award  *AwardRepository
}

// New создаёт новый экземпляр Repository
func New(db *sql.DB) *Repository {
	return &Repository{
		Config: NewConfigRepository(db),
		Audit:  NewAuditRepository(db),
		Award:  NewAwardRepository(db),
	}
}
