package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/integrity-service/internal/repositories"
)

type repository struct {
	attempt  repositories.AttemptRepository
	event    repositories.EventRepository
	analysis repositories.AnalysisRepository
	verdict  repositories.VerdictRepository
}

// NewRepository wires every gorm-backed store over one connection pool.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		attempt:  NewAttemptPostgreSQL(db),
		event:    NewEventPostgreSQL(db),
		analysis: NewAnalysisPostgreSQL(db),
		verdict:  NewVerdictPostgreSQL(db),
	}
}

func (r *repository) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *repository) Event() repositories.EventRepository       { return r.event }
func (r *repository) Analysis() repositories.AnalysisRepository { return r.analysis }
func (r *repository) Verdict() repositories.VerdictRepository   { return r.verdict }
