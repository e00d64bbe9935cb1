package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputationai/reputation-audit/internal/audit"
	"github.com/reputationai/reputation-audit/internal/config"
	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
)

type fakeService struct {
	startRun  *model.AuditRun
	startErr  error
	resumeRun *model.AuditRun
	resumeErr error
	getRun    *model.AuditRun
	getErr    error
	runs      []model.AuditRun
	gotFilter store.RunFilter
	gotStart  audit.Request
	gotResume struct {
		runID, placeID string
		skip           bool
	}
}

func (f *fakeService) Start(_ context.Context, req audit.Request) (*model.AuditRun, error) {
	f.gotStart = req
	return f.startRun, f.startErr
}

func (f *fakeService) Resume(_ context.Context, runID, placeID string, skip bool) (*model.AuditRun, error) {
	f.gotResume.runID, f.gotResume.placeID, f.gotResume.skip = runID, placeID, skip
	return f.resumeRun, f.resumeErr
}

func (f *fakeService) Get(context.Context, string) (*model.AuditRun, error) {
	return f.getRun, f.getErr
}

func (f *fakeService) List(_ context.Context, filter store.RunFilter) ([]model.AuditRun, error) {
	f.gotFilter = filter
	return f.runs, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(svc AuditService, pinger Pinger) *httptest.Server {
	s := New(svc, pinger, config.ServerConfig{Port: 0})
	return httptest.NewServer(s.Handler())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestScanQueued(t *testing.T) {
	svc := &fakeService{startRun: &model.AuditRun{ID: "run-1", Status: model.StatusPending}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reputation/scan", map[string]string{
		"owner_id": "owner-1", "domain": "acme.com",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decode[scanResponse](t, resp)
	assert.Equal(t, "queued", body.Status)
	assert.Equal(t, "run-1", body.AuditID)
	assert.Equal(t, "acme.com", svc.gotStart.Domain)
	assert.NotEmpty(t, svc.gotStart.Meta.IP)
}

func TestScanSelectionRequired(t *testing.T) {
	svc := &fakeService{startRun: &model.AuditRun{
		ID:     "run-1",
		Status: model.StatusSelectionRequired,
		Candidates: []model.Candidate{
			{PlaceID: "pid-1", Name: "Acme North"},
			{PlaceID: "pid-2", Name: "Acme South"},
		},
	}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reputation/scan", map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[scanResponse](t, resp)
	assert.Equal(t, "selection_required", body.Status)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Candidates, 2)
}

func TestScanResume(t *testing.T) {
	svc := &fakeService{resumeRun: &model.AuditRun{ID: "run-1", Status: model.StatusPending}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reputation/scan", map[string]any{
		"audit_id": "run-1", "place_id": "pid-2",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "run-1", svc.gotResume.runID)
	assert.Equal(t, "pid-2", svc.gotResume.placeID)
	assert.False(t, svc.gotResume.skip)
}

func TestScanErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"quota", model.NewRunError(model.CodePlanAuditLimitReached, "limit"), http.StatusTooManyRequests, model.CodePlanAuditLimitReached},
		{"concurrency", model.NewRunError(model.CodePlanConcurrentLimit, "limit"), http.StatusTooManyRequests, model.CodePlanConcurrentLimit},
		{"validation", model.NewRunError(model.CodeInvalidIdentification, "missing"), http.StatusUnprocessableEntity, model.CodeInvalidIdentification},
		{"places", model.NewRunError(model.CodePlacesSearchFailed, "down"), http.StatusServiceUnavailable, model.CodePlacesSearchFailed},
		{"queue", model.NewRunError(model.CodeAuditQueueFailed, "full"), http.StatusInternalServerError, model.CodeAuditQueueFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeService{startErr: tt.err}, nil)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/api/reputation/scan", map[string]string{"domain": "acme.com"})
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode[errorResponse](t, resp)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestScanBadBody(t *testing.T) {
	srv := newTestServer(&fakeService{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/reputation/scan", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAuditHidesResultUntilSuccess(t *testing.T) {
	svc := &fakeService{getRun: &model.AuditRun{
		ID:     "run-1",
		Status: model.StatusProcessing,
		Result: &model.ScanResult{ReputationScore: 56},
	}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/reputation/audits/run-1")
	require.NoError(t, err)
	body := decode[model.AuditRun](t, resp)
	assert.Nil(t, body.Result)
}

func TestGetAuditNotFound(t *testing.T) {
	srv := newTestServer(&fakeService{getErr: audit.ErrRunNotFound}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/reputation/audits/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResumeConflict(t *testing.T) {
	srv := newTestServer(&fakeService{resumeErr: audit.ErrNotResumable}, nil)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reputation/scan", map[string]string{"audit_id": "run-1", "place_id": "pid-1"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListAudits(t *testing.T) {
	svc := &fakeService{runs: []model.AuditRun{{ID: "run-1"}, {ID: "run-2"}}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/reputation/audits?owner_id=owner-1&status=success&limit=10&offset=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]json.RawMessage](t, resp)
	require.Contains(t, body, "audits")
	assert.Equal(t, store.RunFilter{
		OwnerID: "owner-1", Status: model.StatusSuccess, Limit: 10, Offset: 5,
	}, svc.gotFilter)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeService{}, &fakePinger{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthDegraded(t *testing.T) {
	srv := newTestServer(&fakeService{}, &fakePinger{err: assert.AnError})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
