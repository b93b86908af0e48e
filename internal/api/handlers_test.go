package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/evidence"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/recorder"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/state"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// #region fakes

type fakeMonitor struct {
	running  bool
	events   []string
	eventErr error
	startErr error
}

func (m *fakeMonitor) Start(context.Context) (state.AlertState, error) {
	if m.startErr != nil {
		return state.AlertState{}, m.startErr
	}
	m.running = true
	st := state.Initial()
	st.Running = true
	st.SessionID = "sess-1"
	return st, nil
}

func (m *fakeMonitor) Stop()         { m.running = false }
func (m *fakeMonitor) Running() bool { return m.running }

func (m *fakeMonitor) Status() state.AlertState {
	st := state.Initial()
	st.Running = m.running
	st.PersonCount = 2
	return st
}

func (m *fakeMonitor) Activities(n int) []recorder.Activity {
	out := make([]recorder.Activity, 0, n)
	for i := 0; i < 40 && len(out) < n; i++ {
		out = append(out, recorder.Activity{Timestamp: "10:00:00", Message: "tick", Level: recorder.LevelInfo})
	}
	return out
}

func (m *fakeMonitor) Violations(n int) ([]recorder.Entry, int) {
	return []recorder.Entry{{Timestamp: "10:00:00", Type: "PHONE_DETECTED", Severity: "CRITICAL"}}, 7
}

func (m *fakeMonitor) LogPageEvent(_ context.Context, eventType string) error {
	m.events = append(m.events, eventType)
	return m.eventErr
}

type fixture struct {
	router  http.Handler
	monitor *fakeMonitor
	store   *store.SQLiteStore
	dir     *evidence.Dir
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir, err := evidence.NewDir(filepath.Join(root, "violations"))
	require.NoError(t, err)
	s, err := store.NewSQLiteStore(filepath.Join(root, "v.db"), dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := &fakeMonitor{}
	return &fixture{
		router:  NewRouter(&Handler{Monitor: m, Store: s, Evidence: dir, Logger: zap.NewNop()}),
		monitor: m,
		store:   s,
		dir:     dir,
	}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *fixture) add(t *testing.T, vType, severity string, image *string) int64 {
	t.Helper()
	id, err := f.store.Add(context.Background(), store.Record{
		Timestamp:   time.Now().Format(store.TimestampLayout),
		Type:        vType,
		Severity:    severity,
		Description: vType,
		ImagePath:   image,
		Metadata:    map[string]any{"reasons": []string{vType}},
	})
	require.NoError(t, err)
	return id
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &v), res.Body.String())
	return v
}

// #endregion fakes

// #region live-tests

func TestStatus(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))

	got := decode[map[string]any](t, res)
	assert.Equal(t, float64(2), got["person_count"])
	assert.Equal(t, "NORMAL", got["alert_level"])
}

func TestActivity_LastThirty(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/api/activity", "")
	require.Equal(t, http.StatusOK, res.Code)
	got := decode[struct {
		Activities []recorder.Activity `json:"activities"`
	}](t, res)
	assert.Len(t, got.Activities, 30)
}

func TestRecentViolations(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/api/violations", "")
	require.Equal(t, http.StatusOK, res.Code)
	got := decode[struct {
		Violations []recorder.Entry `json:"violations"`
		Total      int              `json:"total"`
	}](t, res)
	assert.Equal(t, 7, got.Total)
	assert.Len(t, got.Violations, 1)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	res := f.do(http.MethodPost, "/api/start_monitoring", "")
	require.Equal(t, http.StatusOK, res.Code)
	got := decode[map[string]any](t, res)
	assert.Equal(t, "started", got["status"])
	assert.Equal(t, true, got["monitoring"])
	assert.Equal(t, "sess-1", got["session_id"])

	res = f.do(http.MethodPost, "/api/stop_monitoring", "")
	require.Equal(t, http.StatusOK, res.Code)
	got = decode[map[string]any](t, res)
	assert.Equal(t, "stopped", got["status"])
	assert.Equal(t, false, got["monitoring"])
}

func TestStartMonitoring_Failure(t *testing.T) {
	f := newFixture(t)
	f.monitor.startErr = errors.New("camera busy")
	res := f.do(http.MethodPost, "/api/start_monitoring", "")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestStartMonitoring_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/api/start_monitoring", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestLogEvent(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"type":"PAGE_HIDDEN"}`, `{"type":"SOMETHING_ELSE"}`, `{}`, ""} {
		res := f.do(http.MethodPost, "/api/log_event", body)
		require.Equal(t, http.StatusOK, res.Code, "body %q", body)
		assert.Equal(t, "logged", decode[map[string]string](t, res)["status"])
	}
	assert.Equal(t, []string{"PAGE_HIDDEN", "SOMETHING_ELSE", "UNKNOWN", "UNKNOWN"}, f.monitor.events)
}

func TestLogEvent_BadBody(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/api/log_event", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Empty(t, f.monitor.events)
}

func TestLogEvent_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.monitor.eventErr = errors.New("persist violation: disk full")
	res := f.do(http.MethodPost, "/api/log_event", `{"type":"FULLSCREEN_EXIT"}`)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

// #endregion live-tests

// #region record-tests

func TestListViolations_FilterAndLimit(t *testing.T) {
	f := newFixture(t)
	f.add(t, "PHONE_DETECTED", store.SeverityCritical, nil)
	f.add(t, "NO_FACE", store.SeverityWarning, nil)
	f.add(t, "MULTIPLE_PEOPLE", store.SeverityCritical, nil)

	res := f.do(http.MethodGet, "/api/get_violations?severity=critical&limit=1", "")
	require.Equal(t, http.StatusOK, res.Code)
	got := decode[struct {
		Violations []store.Record `json:"violations"`
		Count      int            `json:"count"`
	}](t, res)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "MULTIPLE_PEOPLE", got.Violations[0].Type, "newest first")
}

func TestListViolations_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodGet, "/api/get_violations", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"violations":[]`)
}

func TestListViolations_BadParams(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"?severity=SEVERE", "?limit=abc", "?limit=-2"} {
		res := f.do(http.MethodGet, "/api/get_violations"+q, "")
		assert.Equal(t, http.StatusBadRequest, res.Code, q)
	}
}

func TestGetViolation(t *testing.T) {
	f := newFixture(t)
	id := f.add(t, "PHONE_DETECTED", store.SeverityCritical, nil)

	res := f.do(http.MethodGet, "/api/violations/"+itoa(id), "")
	require.Equal(t, http.StatusOK, res.Code)
	rec := decode[store.Record](t, res)
	assert.Equal(t, id, rec.ID)
	assert.Nil(t, rec.ImagePath)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/violations/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/violations/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/violations/0", "").Code)
}

func TestDeleteViolation_RemovesEvidence(t *testing.T) {
	f := newFixture(t)
	path, err := f.dir.Write(time.Now(), []byte("jpeg-bytes"), "jpg")
	require.NoError(t, err)
	id := f.add(t, "PHONE_DETECTED", store.SeverityCritical, &path)

	res := f.do(http.MethodDelete, "/api/violations/"+itoa(id), "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, decode[map[string]any](t, res)["deleted"])

	_, err = f.dir.Open(path)
	assert.Error(t, err, "evidence removed with record")
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/violations/"+itoa(id), "").Code)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	f.add(t, "PHONE_DETECTED", store.SeverityCritical, nil)
	f.add(t, "PHONE_DETECTED", store.SeverityCritical, nil)
	f.add(t, "EYE_MOVEMENT, HEAD_DOWN", store.SeverityWarning, nil)

	res := f.do(http.MethodGet, "/api/statistics", "")
	require.Equal(t, http.StatusOK, res.Code)
	stats := decode[store.Statistics](t, res)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"CRITICAL": 2, "WARNING": 1}, stats.BySeverity)
	assert.Equal(t, 3, stats.Last24h)
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	f.add(t, "PHONE_DETECTED", store.SeverityCritical, nil)

	res := f.do(http.MethodPost, "/api/prune?days=0", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, res)["deleted"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/prune?days=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/prune", "").Code)
}

func TestEvidence(t *testing.T) {
	f := newFixture(t)
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	path, err := f.dir.Write(time.Now(), data, "jpg")
	require.NoError(t, err)

	res := f.do(http.MethodGet, "/api/evidence?path="+path, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/jpeg", res.Header().Get("Content-Type"))
	assert.Equal(t, data, res.Body.Bytes())
}

func TestEvidence_Refused(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/evidence", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/evidence?path=../../etc/passwd", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/evidence?path=missing.jpg", "").Code)
}

// #endregion record-tests

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
