package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	runColumnList = []string{
		"id", "title", "bank_name", "account_ref", "window_days", "cut_date", "date_basis", "status",
		"created_by", "extract_mapping", "system_mapping", "exclude_concepts", "enabled_category_ids",
		"version", "created_at", "updated_at",
	}
	runColumns = strings.Join(runColumnList, ", ")

	memberColumns  = []string{"run_id", "user_id", "role", "added_at"}
	extractColumns = []string{"run_id", "id", "position", "date", "concept", "amount", "category_id", "excluded"}
	systemColumns  = []string{"run_id", "id", "position", "issue_date", "due_date", "description", "amount"}
	matchColumns   = []string{"run_id", "system_line_id", "extract_line_ids", "delta_days", "manual"}
	pendingColumns = []string{"run_id", "id", "system_line_id", "area", "status", "note", "created_by", "created_at", "resolved_at"}
	messageColumns = []string{"run_id", "id", "body", "author_id", "created_at"}
)

// childTables are rewritten on every save, in dependency-free order.
var childTables = []string{"run_members", "extract_lines", "system_lines", "matches", "pending_items", "run_messages"}

// RunRepository implements usecase.RunRepository. A run is stored as a header
// row plus one table per collection.
type RunRepository struct {
	db DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run and all of its lines.
func (r *RunRepository) Create(ctx context.Context, tx usecase.Transaction, run *domain.Run) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		run.ID, run.Title, run.BankName, run.AccountRef, run.WindowDays, run.CutDate,
		string(run.DateBasis), string(run.Status), run.CreatedByID,
		run.ExtractMapping, run.SystemMapping, nonNil(run.ExcludeConcepts), nonNil(run.EnabledCategoryIDs),
		run.Version, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: run %s already exists", domain.ErrConflict, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return copyChildren(ctx, pgxTx, run)
}

// GetByID loads the whole aggregate.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	return loadRun(ctx, r.db, id, false)
}

// GetByIDForUpdate loads the aggregate and locks its header row until the
// transaction ends.
func (r *RunRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Run, error) {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	return loadRun(ctx, pgxTx, id, true)
}

// Update saves the aggregate when the stored version still matches
// run.Version, then bumps it. Child rows are rewritten in full.
func (r *RunRepository) Update(ctx context.Context, tx usecase.Transaction, run *domain.Run) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `
		UPDATE runs SET
			title = $2, bank_name = $3, account_ref = $4, window_days = $5, cut_date = $6,
			date_basis = $7, status = $8, extract_mapping = $9, system_mapping = $10,
			exclude_concepts = $11, enabled_category_ids = $12, updated_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $14`,
		run.ID, run.Title, run.BankName, run.AccountRef, run.WindowDays, run.CutDate,
		string(run.DateBasis), string(run.Status), run.ExtractMapping, run.SystemMapping,
		nonNil(run.ExcludeConcepts), nonNil(run.EnabledCategoryIDs), run.UpdatedAt,
		run.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := pgxTx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, run.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check run: %w", err)
		}
		if !exists {
			return domain.ErrRunNotFound
		}
		return domain.ErrRunModified
	}

	for _, table := range childTables {
		if _, err := pgxTx.Exec(ctx, `DELETE FROM `+table+` WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := copyChildren(ctx, pgxTx, run); err != nil {
		return err
	}

	run.Version++
	return nil
}

// Delete removes a run; its lines go with it.
func (r *RunRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	pgxTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// ListByMember returns run headers with their members, newest first.
func (r *RunRepository) ListByMember(ctx context.Context, userID string, limit, offset int) ([]*domain.Run, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+prefixed("r", runColumnList)+`
		FROM runs r
		JOIN run_members m ON m.run_id = r.id
		WHERE m.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2 OFFSET $3`,
		userID, limitArg(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := []*domain.Run{}
	byID := make(map[string]*domain.Run)
	ids := []string{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
		byID[run.ID] = run
		ids = append(ids, run.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(ids) == 0 {
		return runs, nil
	}

	members, err := r.db.Query(ctx, `
		SELECT run_id, user_id, role, added_at
		FROM run_members
		WHERE run_id = ANY($1)
		ORDER BY added_at, user_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list run members: %w", err)
	}
	defer members.Close()

	for members.Next() {
		var (
			runID string
			m     domain.Member
			role  string
		)
		if err := members.Scan(&runID, &m.UserID, &role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run member: %w", err)
		}
		m.Role = domain.MemberRole(role)
		if run, ok := byID[runID]; ok {
			run.Members = append(run.Members, m)
		}
	}
	if err := members.Err(); err != nil {
		return nil, fmt.Errorf("failed to list run members: %w", err)
	}

	return runs, nil
}

func loadRun(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}

	if run.Members, err = loadMembers(ctx, q, id); err != nil {
		return nil, err
	}
	if run.ExtractLines, err = loadExtractLines(ctx, q, id); err != nil {
		return nil, err
	}
	if run.SystemLines, err = loadSystemLines(ctx, q, id); err != nil {
		return nil, err
	}
	if run.Matches, err = loadMatches(ctx, q, id); err != nil {
		return nil, err
	}
	if run.PendingItems, err = loadPendingItems(ctx, q, id); err != nil {
		return nil, err
	}
	if run.Messages, err = loadMessages(ctx, q, id); err != nil {
		return nil, err
	}

	return run, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run       domain.Run
		dateBasis string
		status    string
	)
	err := row.Scan(
		&run.ID, &run.Title, &run.BankName, &run.AccountRef, &run.WindowDays, &run.CutDate,
		&dateBasis, &status, &run.CreatedByID, &run.ExtractMapping, &run.SystemMapping,
		&run.ExcludeConcepts, &run.EnabledCategoryIDs, &run.Version, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.DateBasis = domain.DateBasis(dateBasis)
	run.Status = domain.RunStatus(status)
	run.CutDate = domain.Day(run.CutDate)
	return &run, nil
}

func loadMembers(ctx context.Context, q querier, runID string) ([]domain.Member, error) {
	rows, err := q.Query(ctx, `
		SELECT user_id, role, added_at
		FROM run_members
		WHERE run_id = $1
		ORDER BY added_at, user_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run members: %w", err)
	}
	defer rows.Close()

	members := []domain.Member{}
	for rows.Next() {
		var (
			m    domain.Member
			role string
		)
		if err := rows.Scan(&m.UserID, &role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run member: %w", err)
		}
		m.Role = domain.MemberRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func loadExtractLines(ctx context.Context, q querier, runID string) ([]domain.ExtractLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, position, date, concept, amount, category_id, excluded
		FROM extract_lines
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extract lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.ExtractLine{}
	for rows.Next() {
		var (
			l      domain.ExtractLine
			amount pgtype.Numeric
		)
		if err := rows.Scan(&l.ID, &l.Position, &l.Date, &l.Concept, &amount, &l.CategoryID, &l.Excluded); err != nil {
			return nil, fmt.Errorf("failed to scan extract line: %w", err)
		}
		l.Amount = decimalFromNumeric(amount)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadSystemLines(ctx context.Context, q querier, runID string) ([]domain.SystemLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, position, issue_date, due_date, description, amount
		FROM system_lines
		WHERE run_id = $1
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load system lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.SystemLine{}
	for rows.Next() {
		var (
			l      domain.SystemLine
			amount pgtype.Numeric
		)
		if err := rows.Scan(&l.ID, &l.Position, &l.IssueDate, &l.DueDate, &l.Description, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan system line: %w", err)
		}
		l.Amount = decimalFromNumeric(amount)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func loadMatches(ctx context.Context, q querier, runID string) ([]domain.Match, error) {
	rows, err := q.Query(ctx, `
		SELECT m.system_line_id, m.extract_line_ids, m.delta_days, m.manual
		FROM matches m
		JOIN system_lines s ON s.run_id = m.run_id AND s.id = m.system_line_id
		WHERE m.run_id = $1
		ORDER BY s.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}
	defer rows.Close()

	matches := []domain.Match{}
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.SystemLineID, &m.ExtractLineIDs, &m.DeltaDays, &m.Manual); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func loadPendingItems(ctx context.Context, q querier, runID string) ([]domain.PendingItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, system_line_id, area, status, note, created_by, created_at, resolved_at
		FROM pending_items
		WHERE run_id = $1
		ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending items: %w", err)
	}
	defer rows.Close()

	items := []domain.PendingItem{}
	for rows.Next() {
		var (
			p            domain.PendingItem
			area, status string
		)
		if err := rows.Scan(&p.ID, &p.SystemLineID, &area, &status, &p.Note, &p.CreatedByID, &p.CreatedAt, &p.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending item: %w", err)
		}
		p.Area = domain.Area(area)
		p.Status = domain.PendingStatus(status)
		items = append(items, p)
	}
	return items, rows.Err()
}

func loadMessages(ctx context.Context, q querier, runID string) ([]domain.Message, error) {
	rows, err := q.Query(ctx, `
		SELECT id, body, author_id, created_at
		FROM run_messages
		WHERE run_id = $1
		ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Body, &m.AuthorID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// copyFrom is the CopyFrom method of pgx.Tx.
type copyFrom interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func copyChildren(ctx context.Context, tx copyFrom, run *domain.Run) error {
	copies := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"run_members", memberColumns, memberRows(run)},
		{"extract_lines", extractColumns, extractRows(run)},
		{"system_lines", systemColumns, systemRows(run)},
		{"matches", matchColumns, matchRows(run)},
		{"pending_items", pendingColumns, pendingRows(run)},
		{"run_messages", messageColumns, messageRows(run)},
	}

	for _, c := range copies {
		if len(c.rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{c.table}, c.columns, pgx.CopyFromRows(c.rows)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate row in %s", domain.ErrConflict, c.table)
			}
			return fmt.Errorf("failed to copy %s: %w", c.table, err)
		}
	}
	return nil
}

func memberRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.Members))
	for _, m := range run.Members {
		rows = append(rows, []any{run.ID, m.UserID, string(m.Role), m.AddedAt})
	}
	return rows
}

func extractRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.ExtractLines))
	for _, l := range run.ExtractLines {
		rows = append(rows, []any{run.ID, l.ID, l.Position, l.Date, l.Concept, numericFromDecimal(l.Amount), l.CategoryID, l.Excluded})
	}
	return rows
}

func systemRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.SystemLines))
	for _, l := range run.SystemLines {
		rows = append(rows, []any{run.ID, l.ID, l.Position, l.IssueDate, l.DueDate, l.Description, numericFromDecimal(l.Amount)})
	}
	return rows
}

func matchRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.Matches))
	for _, m := range run.Matches {
		rows = append(rows, []any{run.ID, m.SystemLineID, nonNil(m.ExtractLineIDs), m.DeltaDays, m.Manual})
	}
	return rows
}

func pendingRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.PendingItems))
	for _, p := range run.PendingItems {
		rows = append(rows, []any{run.ID, p.ID, p.SystemLineID, string(p.Area), string(p.Status), p.Note, p.CreatedByID, p.CreatedAt, p.ResolvedAt})
	}
	return rows
}

func messageRows(run *domain.Run) [][]any {
	rows := make([][]any, 0, len(run.Messages))
	for _, m := range run.Messages {
		rows = append(rows, []any{run.ID, m.ID, m.Body, m.AuthorID, m.CreatedAt})
	}
	return rows
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// limitArg maps a non-positive limit to NULL, which PostgreSQL reads as LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func prefixed(alias string, columns []string) string {
	return alias + "." + strings.Join(columns, ", "+alias+".")
}

const pgErrUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
