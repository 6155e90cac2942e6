package runapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kajovo/cascade/internal/ledger"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/supervisor"
)

func newTestDeps(t *testing.T) (Deps, *supervisor.Supervisor) {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sup := supervisor.New()
	deps := Deps{
		Supervisor: sup,
		Ledger:     db,
		Launch: func(req model.RunRequest) (*supervisor.Handle, error) {
			return sup.Start(context.Background(), "RUN_TEST", func(ctx context.Context, h *supervisor.Handle) (model.RunState, error) {
				return model.RunState{RunID: "RUN_TEST", Status: model.StatusDone}, nil
			}), nil
		},
	}
	return deps, sup
}

func TestPostRunAndGetRun(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, err := json.Marshal(model.RunRequest{Mode: model.ModeQA, Model: "gpt-5"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/runs/RUN_TEST")
		if err != nil {
			return false
		}
		defer r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, time.Second, time.Millisecond)
}

func TestPostRunRejectsInvalidRequest(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, err := json.Marshal(model.RunRequest{Mode: model.ModeQA, Model: "gpt-5", OutputRoot: "/somewhere"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetRunNotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/does-not-exist")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelUnknownRunReturnsNotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs/does-not-exist/cancel", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStreamEventsRelaysRunEvents(t *testing.T) {
	sup := supervisor.New()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	release := make(chan struct{})
	deps := Deps{
		Supervisor: sup,
		Ledger:     db,
		Launch: func(req model.RunRequest) (*supervisor.Handle, error) {
			return sup.Start(context.Background(), "RUN_STREAM", func(ctx context.Context, h *supervisor.Handle) (model.RunState, error) {
				<-release
				return model.RunState{RunID: "RUN_STREAM", Status: model.StatusDone}, nil
			}), nil
		},
	}
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	_, err = deps.Launch(model.RunRequest{})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/runs/RUN_STREAM/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	close(release)

	var sawCompleted bool
	for i := 0; i < 5; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var ev model.RunEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Kind == "run_completed" {
			sawCompleted = true
			break
		}
	}
	require.True(t, sawCompleted)
}

func TestGetReceiptsReturnsEmptyForUnknownRun(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/nope/receipts")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestListRunsReturnsSummariesFromLogDir(t *testing.T) {
	logDir := t.TempDir()
	runDir := filepath.Join(logDir, "RUN_A")
	require.NoError(t, os.MkdirAll(runDir, 0o750))
	state := model.RunState{
		RunID:   "RUN_A",
		Request: model.RunRequest{Mode: model.ModeQA, Project: "demo"},
		Status:  model.StatusDone,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "run_state.json"), data, 0o640))

	deps, _ := newTestDeps(t)
	deps.LogDir = logDir
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []model.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, "RUN_A", summaries[0].RunID)
	require.Equal(t, "demo", summaries[0].Project)
}

func TestResumeRunWithoutConfiguredResumeReturnsNotImplemented(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs/RUN_TEST/resume", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestResumeRunDelegatesToConfiguredResume(t *testing.T) {
	deps, sup := newTestDeps(t)
	deps.Resume = func(runID string) (*supervisor.Handle, error) {
		return sup.Start(context.Background(), runID, func(ctx context.Context, h *supervisor.Handle) (model.RunState, error) {
			return model.RunState{RunID: runID, Status: model.StatusDone}, nil
		}), nil
	}
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs/RUN_RESUMED/resume", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
