package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/infrastructure/metrics"
	"github.com/iho/bankrecon/internal/normalize"
	"github.com/iho/bankrecon/internal/reconcile"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// RunSettings holds the configurable parts of run handling.
type RunSettings struct {
	Areas             domain.Areas
	Recipients        map[domain.Area]string
	Limits            reconcile.Limits
	DefaultWindowDays int
	DefaultDateBasis  domain.DateBasis
	CacheTTL          time.Duration
}

// RunUseCase handles reconciliation run business logic. Every mutation runs
// under the run lock, inside one transaction, on a freshly loaded aggregate.
type RunUseCase struct {
	txManager    TransactionManager
	runRepo      RunRepository
	categoryRepo CategoryRepository
	outboxRepo   OutboxRepository
	auditRepo    AuditRepository
	idGen        IDGenerator
	locker       RunLocker
	retrier      Retrier
	cache        Cache
	exporter     Exporter
	notifier     Notifier
	metrics      *metrics.Metrics
	settings     RunSettings
	now          func() time.Time
}

// NewRunUseCase creates a new RunUseCase with an in-process locker.
func NewRunUseCase(
	txManager TransactionManager,
	runRepo RunRepository,
	categoryRepo CategoryRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	settings RunSettings,
) *RunUseCase {
	if len(settings.Areas) == 0 {
		settings.Areas = domain.DefaultAreas
	}
	if !settings.DefaultDateBasis.IsValid() {
		settings.DefaultDateBasis = domain.DateBasisDue
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = DefaultRunCacheTTL
	}

	return &RunUseCase{
		txManager:    txManager,
		runRepo:      runRepo,
		categoryRepo: categoryRepo,
		outboxRepo:   outboxRepo,
		auditRepo:    auditRepo,
		idGen:        idGen,
		locker:       NewLocalLocker(),
		settings:     settings,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithLocker replaces the run locker.
func (uc *RunUseCase) WithLocker(locker RunLocker) *RunUseCase {
	uc.locker = locker
	return uc
}

// WithRetrier retries transactions on transient storage errors.
func (uc *RunUseCase) WithRetrier(retrier Retrier) *RunUseCase {
	uc.retrier = retrier
	return uc
}

// WithCache enables the run detail cache.
func (uc *RunUseCase) WithCache(cache Cache) *RunUseCase {
	uc.cache = cache
	return uc
}

// WithExporter sets the workbook exporter.
func (uc *RunUseCase) WithExporter(exporter Exporter) *RunUseCase {
	uc.exporter = exporter
	return uc
}

// WithNotifier sets the area notifier.
func (uc *RunUseCase) WithNotifier(notifier Notifier) *RunUseCase {
	uc.notifier = notifier
	return uc
}

// WithMetrics enables Prometheus instrumentation.
func (uc *RunUseCase) WithMetrics(m *metrics.Metrics) *RunUseCase {
	uc.metrics = m
	return uc
}

// WithClock overrides the time source.
func (uc *RunUseCase) WithClock(now func() time.Time) *RunUseCase {
	uc.now = now
	return uc
}

// Areas returns the configured areas.
func (uc *RunUseCase) Areas() domain.Areas {
	return uc.settings.Areas
}

// LineWarning is a normalization warning tagged with its side.
type LineWarning struct {
	Side string
	normalize.Warning
}

// Warning sides
const (
	SideExtract = "extract"
	SideSystem  = "system"
)

// RunResult is returned by operations that (re)normalize input rows.
type RunResult struct {
	Run      *domain.Run
	Summary  domain.RunSummary
	Warnings []LineWarning
}

// CreateRunInput represents input for creating a run.
type CreateRunInput struct {
	Title              string
	BankName           string
	AccountRef         string
	WindowDays         *int
	CutDate            time.Time
	DateBasis          domain.DateBasis
	ExtractRows        []domain.RawRow
	ExtractMapping     domain.ExtractMapping
	SystemRows         []domain.RawRow
	SystemMapping      domain.SystemMapping
	ExcludeConcepts    []string
	EnabledCategoryIDs []string
}

// CreateRun normalizes both sides, matches them and stores the new run with
// the caller as owner.
func (uc *RunUseCase) CreateRun(ctx context.Context, input CreateRunInput) (*RunResult, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	windowDays := uc.settings.DefaultWindowDays
	if input.WindowDays != nil {
		windowDays = *input.WindowDays
	}
	dateBasis := input.DateBasis
	if dateBasis == "" {
		dateBasis = uc.settings.DefaultDateBasis
	}

	if err := validateRunInput(input.Title, input.BankName, windowDays, input.CutDate, dateBasis); err != nil {
		return nil, err
	}

	categories, err := uc.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkCategoryIDs(categories, input.EnabledCategoryIDs); err != nil {
		return nil, err
	}

	extract, err := normalize.Extract(input.ExtractRows, input.ExtractMapping, uc.idGen.Generate)
	if err != nil {
		return nil, err
	}
	system, err := normalize.System(input.SystemRows, input.SystemMapping, uc.idGen.Generate)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	run := &domain.Run{
		ID:                 uc.idGen.Generate(),
		Title:              input.Title,
		BankName:           input.BankName,
		AccountRef:         input.AccountRef,
		WindowDays:         windowDays,
		CutDate:            domain.Day(input.CutDate),
		DateBasis:          dateBasis,
		Status:             domain.RunOpen,
		CreatedByID:        actor,
		Members:            []domain.Member{{UserID: actor, Role: domain.RoleOwner, AddedAt: now}},
		ExtractMapping:     input.ExtractMapping,
		SystemMapping:      input.SystemMapping,
		ExtractLines:       extract.Lines,
		SystemLines:        system.Lines,
		EnabledCategoryIDs: append([]string(nil), input.EnabledCategoryIDs...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	run.AddExcludedConcepts(input.ExcludeConcepts...)
	uc.recompute(ctx, run, categories)

	err = uc.retry(ctx, func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := uc.runRepo.Create(txCtx, tx, run); err != nil {
			return err
		}

		s := &scope{actor: actor, now: now}
		s.emit(domain.EventTypeRunCreated, runEvent(run, actor))
		if err := uc.writeEvents(txCtx, tx, run.ID, s); err != nil {
			return err
		}
		if err := uc.writeAudit(txCtx, tx, run.ID, domain.AuditActionRunCreate, s, runDetails(run)); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	})
	if err != nil {
		uc.recordFailure(ctx, "", domain.AuditActionRunCreate, actor, err)
		return nil, err
	}

	uc.storeRun(ctx, run)
	if uc.metrics != nil {
		uc.metrics.RunsCreated.Inc()
	}

	warnings := tagWarnings(SideExtract, extract.Warnings)
	warnings = append(warnings, tagWarnings(SideSystem, system.Warnings)...)
	logWarnings(ctx, run.ID, warnings)

	zerolog.Ctx(ctx).Info().
		Str("run_id", run.ID).
		Int("extract_lines", len(run.ExtractLines)).
		Int("system_lines", len(run.SystemLines)).
		Int("matches", len(run.Matches)).
		Msg("run created")

	return &RunResult{Run: run, Summary: run.Summary(), Warnings: warnings}, nil
}

// GetRun returns a run the caller is a member of.
func (uc *RunUseCase) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	run, err := uc.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := run.AuthorizeRead(actor); err != nil {
		return nil, err
	}

	return run, nil
}

// GetSummary returns the headline counts of a run.
func (uc *RunUseCase) GetSummary(ctx context.Context, id string) (domain.RunSummary, error) {
	run, err := uc.GetRun(ctx, id)
	if err != nil {
		return domain.RunSummary{}, err
	}
	return run.Summary(), nil
}

// ListRuns lists run headers visible to the caller.
func (uc *RunUseCase) ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset, err = domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}

	return uc.runRepo.ListByMember(ctx, actor, limit, offset)
}

// UpdateRunInput represents a partial run update. Nil fields are left alone.
type UpdateRunInput struct {
	Title              *string
	BankName           *string
	AccountRef         *string
	WindowDays         *int
	CutDate            *time.Time
	DateBasis          *domain.DateBasis
	EnabledCategoryIDs []string
	SetCategories      bool
	Status             *domain.RunStatus
}

func (in UpdateRunInput) touchesMatching() bool {
	return in.WindowDays != nil || in.CutDate != nil || in.DateBasis != nil || in.SetCategories
}

func (in UpdateRunInput) touchesMetadata() bool {
	return in.Title != nil || in.BankName != nil || in.AccountRef != nil || in.touchesMatching()
}

// UpdateRun applies metadata changes and status transitions. Reopening happens
// before, and closing after, any other change.
func (uc *RunUseCase) UpdateRun(ctx context.Context, id string, input UpdateRunInput) (*domain.Run, error) {
	if input.Status != nil && *input.Status != domain.RunOpen && *input.Status != domain.RunClosed {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *input.Status)
	}
	if input.Title != nil {
		if err := domain.ValidateTitle(*input.Title); err != nil {
			return nil, err
		}
	}
	if input.BankName != nil {
		if err := domain.ValidateBankName(*input.BankName); err != nil {
			return nil, err
		}
	}
	if input.WindowDays != nil {
		if err := domain.ValidateWindowDays(*input.WindowDays); err != nil {
			return nil, err
		}
	}
	if input.DateBasis != nil && !input.DateBasis.IsValid() {
		return nil, domain.ErrInvalidDateBasis
	}
	if input.CutDate != nil && input.CutDate.IsZero() {
		return nil, domain.ErrCutDateRequired
	}

	return uc.mutate(ctx, id, domain.AuditActionRunUpdate, func(s *scope, run *domain.Run) error {
		if input.Status != nil && *input.Status == domain.RunOpen && run.Status == domain.RunClosed {
			if err := run.Reopen(s.actor, s.now); err != nil {
				return err
			}
			s.emit(domain.EventTypeRunReopened, runEvent(run, s.actor))
		}

		if input.touchesMetadata() {
			if err := run.AuthorizeEdit(s.actor); err != nil {
				return err
			}
			if err := run.RequireOpen(); err != nil {
				return err
			}
			if input.SetCategories {
				if err := checkCategoryIDs(s.categories, input.EnabledCategoryIDs); err != nil {
					return err
				}
			}
			applyRunUpdate(run, input)
			if input.touchesMatching() {
				uc.recompute(s.ctx, run, s.categories)
			}
		}

		if input.Status != nil && *input.Status == domain.RunClosed {
			if err := run.AuthorizeEdit(s.actor); err != nil {
				return err
			}
			if err := run.Close(s.now); err != nil {
				return err
			}
			s.emit(domain.EventTypeRunClosed, runEvent(run, s.actor))
		}

		s.details = domain.MarshalState(input)
		return nil
	})
}

func applyRunUpdate(run *domain.Run, input UpdateRunInput) {
	if input.Title != nil {
		run.Title = *input.Title
	}
	if input.BankName != nil {
		run.BankName = *input.BankName
	}
	if input.AccountRef != nil {
		run.AccountRef = *input.AccountRef
	}
	if input.WindowDays != nil {
		run.WindowDays = *input.WindowDays
	}
	if input.CutDate != nil {
		run.CutDate = domain.Day(*input.CutDate)
	}
	if input.DateBasis != nil {
		run.DateBasis = *input.DateBasis
	}
	if input.SetCategories {
		run.EnabledCategoryIDs = append([]string(nil), input.EnabledCategoryIDs...)
	}
}

// CloseRun makes the run read-only.
func (uc *RunUseCase) CloseRun(ctx context.Context, id string) (*domain.Run, error) {
	return uc.mutate(ctx, id, domain.AuditActionRunClose, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.Close(s.now); err != nil {
			return err
		}
		s.emit(domain.EventTypeRunClosed, runEvent(run, s.actor))
		return nil
	})
}

// ReopenRun reopens a closed run. Only the creator may do this.
func (uc *RunUseCase) ReopenRun(ctx context.Context, id string) (*domain.Run, error) {
	return uc.mutate(ctx, id, domain.AuditActionRunReopen, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeRead(s.actor); err != nil {
			return err
		}
		if err := run.Reopen(s.actor, s.now); err != nil {
			return err
		}
		s.emit(domain.EventTypeRunReopened, runEvent(run, s.actor))
		return nil
	})
}

// DeleteRun removes a run. Owner only.
func (uc *RunUseCase) DeleteRun(ctx context.Context, id string) error {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	unlock, err := uc.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to lock run %s: %w", id, err)
	}
	defer unlock()

	err = uc.retry(ctx, func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		run, err := uc.runRepo.GetByIDForUpdate(txCtx, tx, id)
		if err != nil {
			return err
		}
		if err := run.AuthorizeOwner(actor); err != nil {
			return err
		}
		if err := uc.runRepo.Delete(txCtx, tx, id); err != nil {
			return err
		}

		s := &scope{actor: actor, now: uc.now()}
		if err := uc.writeAudit(txCtx, tx, id, domain.AuditActionRunDelete, s, domain.JSON{"title": run.Title}); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	})
	if err != nil {
		uc.recordFailure(ctx, id, domain.AuditActionRunDelete, actor, err)
		return err
	}

	uc.evictRun(ctx, id)
	zerolog.Ctx(ctx).Info().Str("run_id", id).Msg("run deleted")

	return nil
}

// UpdateSystemData replaces the system side of a run and rematches it against
// the unchanged extract side. Pending items and manual matches follow their
// lines through the business key.
func (uc *RunUseCase) UpdateSystemData(ctx context.Context, id string, rows []domain.RawRow, mapping domain.SystemMapping) (*RunResult, error) {
	system, err := normalize.System(rows, mapping, uc.idGen.Generate)
	if err != nil {
		return nil, err
	}

	run, err := uc.mutate(ctx, id, domain.AuditActionRunSystemUpdate, func(s *scope, run *domain.Run) error {
		if err := run.AuthorizeEdit(s.actor); err != nil {
			return err
		}
		if err := run.RequireOpen(); err != nil {
			return err
		}

		lines := make([]domain.SystemLine, len(system.Lines))
		copy(lines, system.Lines)

		carry := reconcile.ReplaceSystemLines(run, lines)
		run.SystemMapping = mapping
		out := uc.recompute(s.ctx, run, s.categories)

		s.details = domain.JSON{
			"system_lines":      len(lines),
			"reused_ids":        carry.ReusedIDs,
			"dropped_pending":   carry.DroppedPending,
			"dropped_overrides": out.DroppedOverrides,
			"warnings":          len(system.Warnings),
		}
		s.emit(domain.EventTypeRunSystemUpdated, runEvent(run, s.actor))
		return nil
	})
	if err != nil {
		return nil, err
	}

	warnings := tagWarnings(SideSystem, system.Warnings)
	logWarnings(ctx, id, warnings)

	return &RunResult{Run: run, Summary: run.Summary(), Warnings: warnings}, nil
}

// scope carries per-attempt state through a mutation.
type scope struct {
	ctx        context.Context
	actor      string
	now        time.Time
	categories []domain.Category
	details    domain.JSON
	events     []scopedEvent
	unchanged  bool
}

type scopedEvent struct {
	eventType string
	payload   any
}

func (s *scope) emit(eventType string, payload any) {
	s.events = append(s.events, scopedEvent{eventType: eventType, payload: payload})
}

type mutateFunc func(s *scope, run *domain.Run) error

// mutate loads the run for update under the run lock, applies fn and persists
// the result together with its outbox events and audit record. When fn marks
// the scope unchanged nothing is written.
func (uc *RunUseCase) mutate(ctx context.Context, runID string, action domain.AuditAction, fn mutateFunc) (*domain.Run, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	lockStart := time.Now()
	unlock, err := uc.locker.Lock(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock run %s: %w", runID, err)
	}
	defer unlock()
	if uc.metrics != nil {
		uc.metrics.LockWaits.Observe(time.Since(lockStart).Seconds())
	}

	categories, err := uc.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		saved   *domain.Run
		changed bool
	)
	err = uc.retry(ctx, func() error {
		s := &scope{ctx: ctx, actor: actor, now: uc.now(), categories: categories}
		run, err := uc.apply(ctx, runID, action, s, fn)
		if err != nil {
			return err
		}
		saved, changed = run, !s.unchanged
		return nil
	})
	if err != nil {
		uc.recordFailure(ctx, runID, action, actor, err)
		return nil, err
	}

	if changed {
		uc.storeRun(ctx, saved)
		if uc.metrics != nil {
			uc.metrics.RunOperations.WithLabelValues(string(action)).Inc()
		}
		zerolog.Ctx(ctx).Info().
			Str("run_id", runID).
			Str("action", string(action)).
			Int64("version", saved.Version).
			Msg("run updated")
	}

	return saved, nil
}

func (uc *RunUseCase) apply(ctx context.Context, runID string, action domain.AuditAction, s *scope, fn mutateFunc) (*domain.Run, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	run, err := uc.runRepo.GetByIDForUpdate(txCtx, tx, runID)
	if err != nil {
		return nil, err
	}

	if err := fn(s, run); err != nil {
		return nil, err
	}
	if s.unchanged {
		return run, nil
	}

	run.UpdatedAt = s.now
	if err := uc.runRepo.Update(txCtx, tx, run); err != nil {
		return nil, err
	}
	if err := uc.writeEvents(txCtx, tx, runID, s); err != nil {
		return nil, err
	}
	if err := uc.writeAudit(txCtx, tx, runID, action, s, s.details); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return run, nil
}

func (uc *RunUseCase) retry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}
	return uc.retrier.Retry(ctx, op)
}

// recompute rematches the run and records what happened.
func (uc *RunUseCase) recompute(ctx context.Context, run *domain.Run, categories []domain.Category) reconcile.Outcome {
	start := time.Now()
	out := reconcile.Recompute(run, categories, uc.settings.Limits)

	logger := zerolog.Ctx(ctx)
	for _, r := range out.InvalidRules {
		logger.Warn().
			Str("category_id", r.CategoryID).
			Str("rule_id", r.RuleID).
			Err(r.Err).
			Msg("invalid expense rule ignored")
	}
	if len(out.DroppedOverrides) > 0 {
		logger.Info().
			Str("run_id", run.ID).
			Strs("system_line_ids", out.DroppedOverrides).
			Msg("manual matches no longer valid")
	}

	if uc.metrics != nil {
		uc.metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
		uc.metrics.MatchesFound.WithLabelValues("exact").Add(float64(out.Stats.ExactMatches))
		uc.metrics.MatchesFound.WithLabelValues("combination").Add(float64(out.Stats.CombinationMatches))
		uc.metrics.MatchesFound.WithLabelValues("manual").Add(float64(out.KeptOverrides))
		uc.metrics.CombinationsChecked.Observe(float64(out.Stats.CombinationsChecked))
		uc.metrics.DroppedOverrides.Add(float64(len(out.DroppedOverrides)))
	}

	return out
}

func (uc *RunUseCase) writeEvents(ctx context.Context, tx Transaction, runID string, s *scope) error {
	for _, e := range s.events {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   runID,
			AggregateType: domain.AggregateTypeRun,
			EventType:     e.eventType,
			Payload:       domain.MarshalState(e.payload),
			CreatedAt:     s.now,
			Published:     false,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (uc *RunUseCase) writeAudit(ctx context.Context, tx Transaction, runID string, action domain.AuditAction, s *scope, details domain.JSON) error {
	if uc.auditRepo == nil {
		return nil
	}

	auditLog := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		UserID:       s.actor,
		Action:       action,
		ResourceType: domain.AggregateTypeRun,
		ResourceID:   runID,
		RequestID:    requestIDFromContext(ctx),
		Details:      details,
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    s.now,
	}
	if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.AuditLogsCreated.WithLabelValues(string(action), string(domain.AuditStatusSuccess)).Inc()
	}
	return nil
}

// recordFailure audits a rejected mutation outside of any transaction.
func (uc *RunUseCase) recordFailure(ctx context.Context, runID string, action domain.AuditAction, actor string, cause error) {
	if uc.metrics != nil {
		uc.metrics.RunErrors.WithLabelValues(string(action), ErrorKind(cause)).Inc()
	}
	if uc.auditRepo == nil {
		return
	}

	auditLog := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		UserID:       actor,
		Action:       action,
		ResourceType: domain.AggregateTypeRun,
		ResourceID:   runID,
		RequestID:    requestIDFromContext(ctx),
		Status:       domain.AuditStatusFailure,
		ErrorMessage: cause.Error(),
		CreatedAt:    uc.now(),
	}
	if err := uc.auditRepo.Create(context.WithoutCancel(ctx), auditLog); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("action", string(action)).Msg("failed to record audit failure")
		return
	}

	if uc.metrics != nil {
		uc.metrics.AuditLogsCreated.WithLabelValues(string(action), string(domain.AuditStatusFailure)).Inc()
	}
}

// loadRun reads through the cache. A miss is filled with SetNX so a slow
// reader never overwrites a newer write-through entry.
func (uc *RunUseCase) loadRun(ctx context.Context, id string) (*domain.Run, error) {
	if uc.cache != nil {
		data, err := uc.cache.Get(ctx, runCacheKeyPrefix+id)
		if err == nil {
			var run domain.Run
			if err := json.Unmarshal(data, &run); err == nil {
				uc.cacheResult("hit")
				return &run, nil
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", id).Msg("run cache read failed")
		}
		uc.cacheResult("miss")
	}

	run, err := uc.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(run); err == nil {
			if _, err := uc.cache.SetNX(ctx, runCacheKeyPrefix+id, data, uc.settings.CacheTTL); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", id).Msg("run cache fill failed")
			}
		}
	}

	return run, nil
}

func (uc *RunUseCase) storeRun(ctx context.Context, run *domain.Run) {
	if uc.cache == nil {
		return
	}
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, runCacheKeyPrefix+run.ID, data, uc.settings.CacheTTL); err != nil {
		// A stale entry would outlive the write, so drop it instead.
		zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", run.ID).Msg("run cache write failed")
		uc.evictRun(ctx, run.ID)
	}
}

func (uc *RunUseCase) evictRun(ctx context.Context, id string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Delete(ctx, runCacheKeyPrefix+id); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("run_id", id).Msg("run cache delete failed")
	}
}

func (uc *RunUseCase) cacheResult(result string) {
	if uc.metrics != nil {
		uc.metrics.CacheRequests.WithLabelValues(result).Inc()
	}
}

func validateRunInput(title, bankName string, windowDays int, cutDate time.Time, basis domain.DateBasis) error {
	if err := domain.ValidateTitle(title); err != nil {
		return err
	}
	if err := domain.ValidateBankName(bankName); err != nil {
		return err
	}
	if err := domain.ValidateWindowDays(windowDays); err != nil {
		return err
	}
	if cutDate.IsZero() {
		return domain.ErrCutDateRequired
	}
	if !basis.IsValid() {
		return domain.ErrInvalidDateBasis
	}
	return nil
}

func checkCategoryIDs(categories []domain.Category, ids []string) error {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, id)
		}
	}
	return nil
}

func runEvent(run *domain.Run, actor string) domain.RunEvent {
	summary := run.Summary()
	return domain.RunEvent{
		RunID:          run.ID,
		Title:          run.Title,
		Status:         string(run.Status),
		ActorID:        actor,
		Matched:        summary.Matched,
		OnlyExtract:    summary.OnlyExtract,
		SystemOverdue:  summary.SystemOverdue,
		SystemDeferred: summary.SystemDeferred,
	}
}

func runDetails(run *domain.Run) domain.JSON {
	return domain.JSON{
		"title":         run.Title,
		"extract_lines": len(run.ExtractLines),
		"system_lines":  len(run.SystemLines),
		"matches":       len(run.Matches),
	}
}

func tagWarnings(side string, warnings []normalize.Warning) []LineWarning {
	out := make([]LineWarning, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, LineWarning{Side: side, Warning: w})
	}
	return out
}

func logWarnings(ctx context.Context, runID string, warnings []LineWarning) {
	if len(warnings) == 0 {
		return
	}
	logger := zerolog.Ctx(ctx)
	for _, w := range warnings {
		logger.Warn().
			Str("run_id", runID).
			Str("side", w.Side).
			Int("row", w.Row).
			Str("column", w.Column).
			Msg(w.Reason)
	}
}
