package db

import (
	"context"

	"squares/internal/board"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLedger appends audit entries to the audit_logs table. Postgres
// assigns created_at and sequence at insert, so entries written by the
// server and by squaresctl share one clock and one order.
type AuditLedger struct {
	conn *gorm.DB
}

func NewAuditLedger(conn *gorm.DB) *AuditLedger {
	return &AuditLedger{conn: conn}
}

func (l *AuditLedger) Append(ctx context.Context, entry board.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	record, err := auditRecord(entry)
	if err != nil {
		return err
	}
	return l.conn.WithContext(ctx).Create(&record).Error
}

var _ board.Ledger = (*AuditLedger)(nil)
