package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankrecon/internal/domain"
	"github.com/iho/bankrecon/internal/usecase"
)

var errNotStubbed = errors.New("not stubbed")

type runServiceStub struct {
	createFn          func(ctx context.Context, input usecase.CreateRunInput) (*usecase.RunResult, error)
	getFn             func(ctx context.Context, id string) (*domain.Run, error)
	summaryFn         func(ctx context.Context, id string) (domain.RunSummary, error)
	listFn            func(ctx context.Context, limit, offset int) ([]*domain.Run, error)
	updateFn          func(ctx context.Context, id string, input usecase.UpdateRunInput) (*domain.Run, error)
	closeFn           func(ctx context.Context, id string) (*domain.Run, error)
	reopenFn          func(ctx context.Context, id string) (*domain.Run, error)
	deleteFn          func(ctx context.Context, id string) error
	updateSystemFn    func(ctx context.Context, id string, rows []domain.RawRow, mapping domain.SystemMapping) (*usecase.RunResult, error)
	excludeFn         func(ctx context.Context, runID string, concepts []string) (*domain.Run, error)
	removeConceptFn   func(ctx context.Context, runID, concept string) (*domain.Run, error)
	excludeCategoryFn func(ctx context.Context, runID, categoryID string) (*domain.Run, error)
	setMatchFn        func(ctx context.Context, runID, systemLineID string, extractLineIDs []string) (*domain.Run, error)
	setMemberFn       func(ctx context.Context, runID, userID string, role domain.MemberRole) (*domain.Run, error)
	removeMemberFn    func(ctx context.Context, runID, userID string) (*domain.Run, error)
	addMessageFn      func(ctx context.Context, runID, body string) (*domain.Message, error)
	createPendingFn   func(ctx context.Context, runID string, input usecase.CreatePendingInput) (*domain.PendingItem, error)
	startPendingFn    func(ctx context.Context, runID, pendingID string) (*domain.PendingItem, error)
	resolvePendingFn  func(ctx context.Context, runID, pendingID, note string) (*domain.PendingItem, error)
	pendingSummaryFn  func(ctx context.Context, runID string) ([]domain.AreaPending, error)
	notifyFn          func(ctx context.Context, runID string, input usecase.NotifyInput) ([]usecase.NotifyResult, error)
	exportFn          func(ctx context.Context, runID string) ([]byte, string, error)
}

func (s *runServiceStub) CreateRun(ctx context.Context, input usecase.CreateRunInput) (*usecase.RunResult, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(ctx, input)
}

func (s *runServiceStub) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(ctx, id)
}

func (s *runServiceStub) GetSummary(ctx context.Context, id string) (domain.RunSummary, error) {
	if s.summaryFn == nil {
		return domain.RunSummary{}, errNotStubbed
	}
	return s.summaryFn(ctx, id)
}

func (s *runServiceStub) ListRuns(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(ctx, limit, offset)
}

func (s *runServiceStub) UpdateRun(ctx context.Context, id string, input usecase.UpdateRunInput) (*domain.Run, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(ctx, id, input)
}

func (s *runServiceStub) CloseRun(ctx context.Context, id string) (*domain.Run, error) {
	if s.closeFn == nil {
		return nil, errNotStubbed
	}
	return s.closeFn(ctx, id)
}

func (s *runServiceStub) ReopenRun(ctx context.Context, id string) (*domain.Run, error) {
	if s.reopenFn == nil {
		return nil, errNotStubbed
	}
	return s.reopenFn(ctx, id)
}

func (s *runServiceStub) DeleteRun(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return errNotStubbed
	}
	return s.deleteFn(ctx, id)
}

func (s *runServiceStub) UpdateSystemData(ctx context.Context, id string, rows []domain.RawRow, mapping domain.SystemMapping) (*usecase.RunResult, error) {
	if s.updateSystemFn == nil {
		return nil, errNotStubbed
	}
	return s.updateSystemFn(ctx, id, rows, mapping)
}

func (s *runServiceStub) ExcludeConcepts(ctx context.Context, runID string, concepts []string) (*domain.Run, error) {
	if s.excludeFn == nil {
		return nil, errNotStubbed
	}
	return s.excludeFn(ctx, runID, concepts)
}

func (s *runServiceStub) RemoveExcludedConcept(ctx context.Context, runID, concept string) (*domain.Run, error) {
	if s.removeConceptFn == nil {
		return nil, errNotStubbed
	}
	return s.removeConceptFn(ctx, runID, concept)
}

func (s *runServiceStub) ExcludeByCategory(ctx context.Context, runID, categoryID string) (*domain.Run, error) {
	if s.excludeCategoryFn == nil {
		return nil, errNotStubbed
	}
	return s.excludeCategoryFn(ctx, runID, categoryID)
}

func (s *runServiceStub) SetMatch(ctx context.Context, runID, systemLineID string, extractLineIDs []string) (*domain.Run, error) {
	if s.setMatchFn == nil {
		return nil, errNotStubbed
	}
	return s.setMatchFn(ctx, runID, systemLineID, extractLineIDs)
}

func (s *runServiceStub) SetMember(ctx context.Context, runID, userID string, role domain.MemberRole) (*domain.Run, error) {
	if s.setMemberFn == nil {
		return nil, errNotStubbed
	}
	return s.setMemberFn(ctx, runID, userID, role)
}

func (s *runServiceStub) RemoveMember(ctx context.Context, runID, userID string) (*domain.Run, error) {
	if s.removeMemberFn == nil {
		return nil, errNotStubbed
	}
	return s.removeMemberFn(ctx, runID, userID)
}

func (s *runServiceStub) AddMessage(ctx context.Context, runID, body string) (*domain.Message, error) {
	if s.addMessageFn == nil {
		return nil, errNotStubbed
	}
	return s.addMessageFn(ctx, runID, body)
}

func (s *runServiceStub) CreatePending(ctx context.Context, runID string, input usecase.CreatePendingInput) (*domain.PendingItem, error) {
	if s.createPendingFn == nil {
		return nil, errNotStubbed
	}
	return s.createPendingFn(ctx, runID, input)
}

func (s *runServiceStub) StartPending(ctx context.Context, runID, pendingID string) (*domain.PendingItem, error) {
	if s.startPendingFn == nil {
		return nil, errNotStubbed
	}
	return s.startPendingFn(ctx, runID, pendingID)
}

func (s *runServiceStub) ResolvePending(ctx context.Context, runID, pendingID, note string) (*domain.PendingItem, error) {
	if s.resolvePendingFn == nil {
		return nil, errNotStubbed
	}
	return s.resolvePendingFn(ctx, runID, pendingID, note)
}

func (s *runServiceStub) PendingSummary(ctx context.Context, runID string) ([]domain.AreaPending, error) {
	if s.pendingSummaryFn == nil {
		return nil, errNotStubbed
	}
	return s.pendingSummaryFn(ctx, runID)
}

func (s *runServiceStub) Notify(ctx context.Context, runID string, input usecase.NotifyInput) ([]usecase.NotifyResult, error) {
	if s.notifyFn == nil {
		return nil, errNotStubbed
	}
	return s.notifyFn(ctx, runID, input)
}

func (s *runServiceStub) ExportRun(ctx context.Context, runID string) ([]byte, string, error) {
	if s.exportFn == nil {
		return nil, "", errNotStubbed
	}
	return s.exportFn(ctx, runID)
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern, target string, body io.Reader, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
