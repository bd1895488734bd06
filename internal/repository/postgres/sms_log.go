package postgres

import (
	"context"
	"database/sql"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/repository"
)

type smsLogRepository struct {
	db *sql.DB
}

// NewSMSLogRepository creates a new SMSLogRepository backed by Postgres.
func NewSMSLogRepository(db *sql.DB) repository.SMSLogRepository {
	return &smsLogRepository{db: db}
}

func (r *smsLogRepository) AppendSMSLog(ctx context.Context, l *entity.SMSLog) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sms_logs (id, phone_number, message_body, status, sent_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		l.ID, l.Phone, l.Body, l.Status, l.SentAt,
	)
	return wrap("insert sms log", err)
}
