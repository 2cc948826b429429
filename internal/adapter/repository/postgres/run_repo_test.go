package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

var testNow = time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC)

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBegin()
	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return tx
}

func day(s string) *time.Time {
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func testRun() *domain.Run {
	return &domain.Run{
		ID:          "run-1",
		Title:       "Enero",
		BankName:    "Banco",
		AccountRef:  "0001",
		WindowDays:  3,
		CutDate:     *day("2024-02-01"),
		DateBasis:   domain.DateBasisDue,
		Status:      domain.RunOpen,
		CreatedByID: "alice",
		Members:     []domain.Member{{UserID: "alice", Role: domain.RoleOwner, AddedAt: testNow}},
		ExtractMapping: domain.ExtractMapping{
			DateCol: "Fecha", ConceptCol: "Concepto",
			Amount: domain.AmountColumns{Mode: domain.AmountModeSingle, AmountCol: "Importe"},
		},
		SystemMapping: domain.SystemMapping{
			DueDateCol: "Vencimiento", DescriptionCol: "Detalle",
			Amount: domain.AmountColumns{Mode: domain.AmountModeSingle, AmountCol: "Monto"},
		},
		ExtractLines: []domain.ExtractLine{
			{ID: "e1", Position: 0, Date: day("2024-01-10"), Concept: "Transferencia", Amount: decimal.RequireFromString("100.00")},
		},
		SystemLines: []domain.SystemLine{
			{ID: "s1", Position: 0, DueDate: day("2024-01-10"), Description: "Factura 1", Amount: decimal.RequireFromString("100.00")},
		},
		Matches:   []domain.Match{{SystemLineID: "s1", ExtractLineIDs: []string{"e1"}}},
		Version:   2,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func runHeaderRows(runs ...*domain.Run) *pgxmock.Rows {
	rows := pgxmock.NewRows(runColumnList)
	for _, r := range runs {
		rows.AddRow(
			r.ID, r.Title, r.BankName, r.AccountRef, r.WindowDays, r.CutDate,
			string(r.DateBasis), string(r.Status), r.CreatedByID, r.ExtractMapping, r.SystemMapping,
			[]string{}, []string{}, r.Version, r.CreatedAt, r.UpdatedAt,
		)
	}
	return rows
}

func expectChildLoads(pool pgxmock.PgxPoolIface, run *domain.Run) {
	members := pgxmock.NewRows([]string{"user_id", "role", "added_at"})
	for _, m := range run.Members {
		members.AddRow(m.UserID, string(m.Role), m.AddedAt)
	}
	pool.ExpectQuery("FROM run_members").WithArgs(run.ID).WillReturnRows(members)

	extract := pgxmock.NewRows([]string{"id", "position", "date", "concept", "amount", "category_id", "excluded"})
	for _, l := range run.ExtractLines {
		extract.AddRow(l.ID, l.Position, l.Date, l.Concept, numericFromDecimal(l.Amount), l.CategoryID, l.Excluded)
	}
	pool.ExpectQuery("FROM extract_lines").WithArgs(run.ID).WillReturnRows(extract)

	system := pgxmock.NewRows([]string{"id", "position", "issue_date", "due_date", "description", "amount"})
	for _, l := range run.SystemLines {
		system.AddRow(l.ID, l.Position, l.IssueDate, l.DueDate, l.Description, numericFromDecimal(l.Amount))
	}
	pool.ExpectQuery("FROM system_lines").WithArgs(run.ID).WillReturnRows(system)

	matches := pgxmock.NewRows([]string{"system_line_id", "extract_line_ids", "delta_days", "manual"})
	for _, m := range run.Matches {
		matches.AddRow(m.SystemLineID, m.ExtractLineIDs, m.DeltaDays, m.Manual)
	}
	pool.ExpectQuery("FROM matches").WithArgs(run.ID).WillReturnRows(matches)

	pending := pgxmock.NewRows([]string{"id", "system_line_id", "area", "status", "note", "created_by", "created_at", "resolved_at"})
	for _, p := range run.PendingItems {
		pending.AddRow(p.ID, p.SystemLineID, string(p.Area), string(p.Status), p.Note, p.CreatedByID, p.CreatedAt, p.ResolvedAt)
	}
	pool.ExpectQuery("FROM pending_items").WithArgs(run.ID).WillReturnRows(pending)

	messages := pgxmock.NewRows([]string{"id", "body", "author_id", "created_at"})
	for _, m := range run.Messages {
		messages.AddRow(m.ID, m.Body, m.AuthorID, m.CreatedAt)
	}
	pool.ExpectQuery("FROM run_messages").WithArgs(run.ID).WillReturnRows(messages)
}

func TestRunRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	run := testRun()
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO runs").WithArgs(anyArgs(16)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCopyFrom(pgx.Identifier{"run_members"}, memberColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"extract_lines"}, extractColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"system_lines"}, systemColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"matches"}, matchColumns).WillReturnResult(1)

	if err := NewRunRepository(pool).Create(context.Background(), tx, run); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	assertExpectations(t, pool)
}

func TestRunRepositoryCreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO runs").WithArgs(anyArgs(16)...).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := NewRunRepository(pool).Create(context.Background(), tx, testRun())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRunRepositoryRejectsForeignTransaction(t *testing.T) {
	pool := newMockPool(t)
	err := NewRunRepository(pool).Create(context.Background(), fakeTx{}, testRun())
	if err == nil {
		t.Fatalf("expected error for foreign transaction type")
	}
}

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

func TestRunRepositoryGetByID(t *testing.T) {
	pool := newMockPool(t)
	want := testRun()
	want.PendingItems = []domain.PendingItem{{
		ID: "p1", SystemLineID: "s1", Area: "Pagos", Status: domain.PendingResolved,
		Note: "pagado", CreatedByID: "alice", CreatedAt: testNow, ResolvedAt: &testNow,
	}}
	want.Messages = []domain.Message{{ID: "m1", Body: "Revisar factura 1", AuthorID: "alice", CreatedAt: testNow}}

	pool.ExpectQuery("FROM runs WHERE id").WithArgs("run-1").WillReturnRows(runHeaderRows(want))
	expectChildLoads(pool, want)

	got, err := NewRunRepository(pool).GetByID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertExpectations(t, pool)

	if got.Title != "Enero" || got.DateBasis != domain.DateBasisDue || got.Status != domain.RunOpen || got.Version != 2 {
		t.Fatalf("unexpected header: %+v", got)
	}
	if got.ExtractMapping != want.ExtractMapping {
		t.Fatalf("unexpected extract mapping: %+v", got.ExtractMapping)
	}
	if len(got.Members) != 1 || got.Members[0].Role != domain.RoleOwner {
		t.Fatalf("unexpected members: %+v", got.Members)
	}
	if len(got.ExtractLines) != 1 || !got.ExtractLines[0].Amount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected extract lines: %+v", got.ExtractLines)
	}
	if got.SystemLines[0].IssueDate != nil || !got.SystemLines[0].DueDate.Equal(*day("2024-01-10")) {
		t.Fatalf("unexpected system dates: %+v", got.SystemLines[0])
	}
	if len(got.Matches) != 1 || got.Matches[0].ExtractLineIDs[0] != "e1" {
		t.Fatalf("unexpected matches: %+v", got.Matches)
	}
	if p := got.PendingItems[0]; p.Status != domain.PendingResolved || p.Area != "Pagos" || p.ResolvedAt == nil {
		t.Fatalf("unexpected pending item: %+v", p)
	}
	if len(got.Messages) != 1 || got.Messages[0].Body != "Revisar factura 1" || got.Messages[0].AuthorID != "alice" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestRunRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM runs WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := NewRunRepository(pool).GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected run not found, got %v", err)
	}
}

func TestRunRepositoryGetByIDForUpdateLocksRow(t *testing.T) {
	pool := newMockPool(t)
	run := testRun()
	tx := beginTx(t, pool)

	pool.ExpectQuery("FROM runs WHERE id = \\$1 FOR UPDATE").WithArgs("run-1").WillReturnRows(runHeaderRows(run))
	expectChildLoads(pool, run)

	if _, err := NewRunRepository(pool).GetByIDForUpdate(context.Background(), tx, "run-1"); err != nil {
		t.Fatalf("get for update failed: %v", err)
	}
	assertExpectations(t, pool)
}

func TestRunRepositoryUpdate(t *testing.T) {
	pool := newMockPool(t)
	run := testRun()
	run.Messages = []domain.Message{{ID: "m1", Body: "ok", AuthorID: "alice", CreatedAt: testNow}}
	tx := beginTx(t, pool)

	pool.ExpectExec("UPDATE runs SET").WithArgs(anyArgs(14)...).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	for _, table := range childTables {
		pool.ExpectExec("DELETE FROM " + table).WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	pool.ExpectCopyFrom(pgx.Identifier{"run_members"}, memberColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"extract_lines"}, extractColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"system_lines"}, systemColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"matches"}, matchColumns).WillReturnResult(1)
	pool.ExpectCopyFrom(pgx.Identifier{"run_messages"}, messageColumns).WillReturnResult(1)

	if err := NewRunRepository(pool).Update(context.Background(), tx, run); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	assertExpectations(t, pool)

	if run.Version != 3 {
		t.Fatalf("expected version 3, got %d", run.Version)
	}
}

func TestRunRepositoryUpdateStaleVersion(t *testing.T) {
	tests := []struct {
		name    string
		exists  bool
		wantErr error
	}{
		{name: "modified concurrently", exists: true, wantErr: domain.ErrRunModified},
		{name: "deleted", exists: false, wantErr: domain.ErrRunNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			run := testRun()
			tx := beginTx(t, pool)

			pool.ExpectExec("UPDATE runs SET").WithArgs(anyArgs(14)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			pool.ExpectQuery("SELECT EXISTS").WithArgs("run-1").
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			err := NewRunRepository(pool).Update(context.Background(), tx, run)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if run.Version != 2 {
				t.Fatalf("version must not change on failure, got %d", run.Version)
			}
			assertExpectations(t, pool)
		})
	}
}

func TestRunRepositoryDelete(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)
	repo := NewRunRepository(pool)

	pool.ExpectExec("DELETE FROM runs").WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	pool.ExpectExec("DELETE FROM runs").WithArgs("run-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), tx, "run-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete(context.Background(), tx, "run-1"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected run not found, got %v", err)
	}
	assertExpectations(t, pool)
}

func TestRunRepositoryListByMember(t *testing.T) {
	pool := newMockPool(t)
	older := testRun()
	newer := testRun()
	newer.ID = "run-2"
	newer.CreatedAt = testNow.Add(time.Hour)

	pool.ExpectQuery("JOIN run_members").WithArgs("alice", 10, 0).WillReturnRows(runHeaderRows(newer, older))
	pool.ExpectQuery("run_id = ANY").WithArgs([]string{"run-2", "run-1"}).WillReturnRows(
		pgxmock.NewRows([]string{"run_id", "user_id", "role", "added_at"}).
			AddRow("run-1", "alice", "OWNER", testNow).
			AddRow("run-2", "alice", "EDITOR", testNow).
			AddRow("run-2", "bob", "OWNER", testNow),
	)

	runs, err := NewRunRepository(pool).ListByMember(context.Background(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertExpectations(t, pool)

	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if len(runs[0].Members) != 2 || len(runs[1].Members) != 1 {
		t.Fatalf("members not attached: %+v / %+v", runs[0].Members, runs[1].Members)
	}
	if runs[0].ExtractLines != nil {
		t.Fatalf("headers must not carry lines")
	}
}

func TestRunRepositoryListByMemberEmpty(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("JOIN run_members").WithArgs("nobody", nil, 0).WillReturnRows(pgxmock.NewRows(runColumnList))

	runs, err := NewRunRepository(pool).ListByMember(context.Background(), "nobody", 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
	assertExpectations(t, pool)
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "-5.00", "39.99", "1234567.891"} {
		d := decimal.RequireFromString(s)
		if got := decimalFromNumeric(numericFromDecimal(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}
}
