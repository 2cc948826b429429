package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

const auditColumns = `id, user_id, action, resource_type, resource_id, request_id,
	details, status, error_message, created_at`

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry outside any transaction, for failures whose
// transaction was rolled back.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	return insertAudit(ctx, r.db, log)
}

// CreateTx inserts an audit entry in the caller's transaction.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	return insertAudit(ctx, pgxTx, log)
}

func insertAudit(ctx context.Context, q querier, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	var details any
	if log.Details != nil {
		details = map[string]any(log.Details)
	}

	_, err := q.Exec(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID,
		log.UserID,
		string(log.Action),
		log.ResourceType,
		log.ResourceID,
		log.RequestID,
		details,
		string(log.Status),
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List returns matching audit entries, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE 1=1`
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		query += clause + strconv.Itoa(len(args))
	}

	if filter.UserID != "" {
		add(` AND user_id = $`, filter.UserID)
	}
	if filter.Action != "" {
		add(` AND action = $`, filter.Action)
	}
	if filter.ResourceType != "" {
		add(` AND resource_type = $`, filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add(` AND resource_id = $`, filter.ResourceID)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		add(` LIMIT $`, filter.Limit)
	}
	if filter.Offset > 0 {
		add(` OFFSET $`, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*domain.AuditLog{}
	for rows.Next() {
		var (
			log            domain.AuditLog
			action, status string
			details        map[string]any
		)
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&action,
			&log.ResourceType,
			&log.ResourceID,
			&log.RequestID,
			&details,
			&status,
			&log.ErrorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Action = domain.AuditAction(action)
		log.Status = domain.AuditStatus(status)
		if details != nil {
			log.Details = domain.JSON(details)
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}
