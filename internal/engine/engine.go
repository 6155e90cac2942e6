// Package engine dispatches a validated RunRequest to the right cascade
// (GENERATE/MODIFY/QA/QFILE) or the batch runner (C), and turns the result
// into a durable model.RunState — the one place the Run API and the CLI
// both call into so their dispatch logic never drifts apart.
//
// Grounded on the original source's pipeline.py run() dispatcher: same
// mode-to-handler mapping, same "ingest before plan" ordering for MODIFY.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kajovo/cascade/internal/batch"
	"github.com/kajovo/cascade/internal/cascade"
	"github.com/kajovo/cascade/internal/ledger"
	"github.com/kajovo/cascade/internal/mirror"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/pathsafety"
	"github.com/kajovo/cascade/internal/provider"
	"github.com/kajovo/cascade/internal/runlog"
	"github.com/kajovo/cascade/internal/supervisor"
	"github.com/kajovo/cascade/internal/versioning"
	"github.com/kajovo/cascade/pkg/logging"
)

// Engine wires the cascade state machines, the batch runner, and the mirror
// uploader behind one Execute entry point.
type Engine struct {
	Cascade *cascade.Engine
	Client  provider.Client
	Ledger  *ledger.DB
	Log     *logging.Logger
}

func New(client provider.Client, ledgerDB *ledger.DB, log *logging.Logger) *Engine {
	return &Engine{Cascade: cascade.NewEngine(client), Client: client, Ledger: ledgerDB, Log: log}
}

// Execute runs req to completion, appending run events under paths and
// persisting the RunState there when the run starts and again when it
// ends; handle is accepted but not read. It never returns a
// half-finished RunState: on error, Status is StatusFailed and
// FailureReason is set.
func (e *Engine) Execute(ctx context.Context, runID string, req model.RunRequest, handle *supervisor.Handle, paths runlog.Paths) (model.RunState, error) {
	state := model.RunState{RunID: runID, Request: req, Status: model.StatusRunning, CreatedAt: time.Now().UTC()}
	var err error
	if perr := supervisor.PersistState(paths, state); perr != nil && e.Log != nil {
		e.Log.Error("persist_state_failed", "run_id", runID, "error", perr.Error())
	}
	defer func() {
		if perr := supervisor.PersistState(paths, state); perr != nil && e.Log != nil {
			e.Log.Error("persist_state_failed", "run_id", runID, "error", perr.Error())
		}
	}()

	rl, err := runlog.Open(paths)
	if err != nil {
		state, err = e.fail(state, err)
		return state, err
	}
	defer rl.Close()
	_ = rl.Event("run_dispatched", map[string]any{"mode": string(req.Mode)})

	if req.Versioning && req.OutputRoot != "" {
		snap := versioning.New(req.OutputRoot)
		if _, verr := snap.Ensure(time.Now()); verr != nil {
			state, err = e.fail(state, fmt.Errorf("versioning snapshot: %w", verr))
			return state, err
		}
		state.SnapshotCreated = true
	}

	switch req.Mode {
	case model.ModeGenerate:
		state, err = e.runGenerate(ctx, req, state, rl)
	case model.ModeModify:
		state, err = e.runModify(ctx, req, state, rl)
	case model.ModeQA:
		state, err = e.runQA(ctx, req, state, rl)
	case model.ModeQFile:
		state, err = e.runQFile(ctx, req, state, rl)
	case model.ModeBatch:
		state, err = e.runBatch(ctx, req, state, rl)
	default:
		state, err = e.fail(state, fmt.Errorf("engine: unknown mode %q", req.Mode))
	}
	return state, err
}

// Resume reconstructs the last persisted RunState for runID and, if it
// did not reach StatusDone (including failed and cancelled runs),
// re-executes its request to completion. The
// cascade engines below only checkpoint at whole-run granularity today, so
// resuming a run that crashed mid-cascade re-issues its request from
// scratch rather than replaying only its unfinished chunks; a run that
// already reached StatusDone is returned as-is.
func (e *Engine) Resume(ctx context.Context, runID string, logDir string, handle *supervisor.Handle) (model.RunState, error) {
	paths, err := runlog.NewPaths(logDir, runID)
	if err != nil {
		return model.RunState{}, fmt.Errorf("engine: resume paths: %w", err)
	}
	var prior model.RunState
	if err := runlog.LoadJSON(paths.Root, "run_state", &prior); err != nil {
		return model.RunState{}, fmt.Errorf("engine: no prior state for run %s: %w", runID, err)
	}
	if prior.Status == model.StatusDone {
		return prior, nil
	}
	return e.Execute(ctx, runID, prior.Request, handle, paths)
}

// List reconstructs a RunSummary for every run with a persisted state file
// under logDir, for the list_runs() surface.
func List(logDir string) ([]model.RunSummary, error) {
	runIDs, err := runlog.ListRunDirs(logDir)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.RunSummary, 0, len(runIDs))
	for _, runID := range runIDs {
		var st model.RunState
		if err := runlog.LoadJSON(filepath.Join(logDir, runID), "run_state", &st); err != nil {
			continue
		}
		summaries = append(summaries, model.RunSummary{
			RunID:     st.RunID,
			Project:   st.Request.Project,
			Mode:      st.Request.Mode,
			Status:    st.Status,
			CreatedAt: st.CreatedAt,
			UpdatedAt: st.UpdatedAt,
		})
	}
	return summaries, nil
}

func (e *Engine) runGenerate(ctx context.Context, req model.RunRequest, state model.RunState, rl *runlog.Logger) (model.RunState, error) {
	result, err := e.Cascade.RunGenerate(ctx, req.Model, req.Prompt, req.OutputRoot)
	if err != nil {
		return e.fail(state, err)
	}
	for _, f := range result.Files {
		state.CompletedPaths = append(state.CompletedPaths, f.RelativePath)
	}
	state.ResponseChain = append(state.ResponseChain, result.FinalResponseID)
	_ = rl.Event("generate_complete", map[string]any{"files": len(result.Files)})
	return e.finish(state), nil
}

func (e *Engine) runModify(ctx context.Context, req model.RunRequest, state model.RunState, rl *runlog.Logger) (model.RunState, error) {
	uploadResult, err := mirror.Upload(ctx, e.Client, req.InputRoot, req.Project+time.Now().Format("020120061504"), pathsafety.WalkOptions{})
	if err != nil {
		return e.fail(state, fmt.Errorf("ingest: %w", err))
	}
	_ = rl.Event("ingest_complete", map[string]any{"uploaded": uploadResult.Manifest.UploadedCount(), "vector_store_id": uploadResult.VectorStoreID})
	state.VectorStoreID = uploadResult.VectorStoreID

	result, err := e.Cascade.RunModify(ctx, req.Model, req.Prompt, req.OutputRoot, uploadResult.VectorStoreID, uploadResult.Manifest.UploadedCount())
	if err != nil {
		return e.fail(state, err)
	}
	for _, f := range result.Files {
		state.CompletedPaths = append(state.CompletedPaths, f.RelativePath)
	}
	state.ResponseChain = append(state.ResponseChain, result.FinalResponseID)
	_ = rl.Event("modify_complete", map[string]any{"files": len(result.Files)})
	return e.finish(state), nil
}

func (e *Engine) runQA(ctx context.Context, req model.RunRequest, state model.RunState, rl *runlog.Logger) (model.RunState, error) {
	result, err := e.Cascade.RunQA(ctx, req.Model, req.Prompt, "")
	if err != nil {
		return e.fail(state, err)
	}
	state.ResponseChain = append(state.ResponseChain, result.ResponseID)
	_ = rl.Event("qa_complete", map[string]any{"answer_len": len(result.Answer)})
	return e.finish(state), nil
}

func (e *Engine) runQFile(ctx context.Context, req model.RunRequest, state model.RunState, rl *runlog.Logger) (model.RunState, error) {
	path := req.Prompt
	if len(req.DiagnosticsIn) > 0 {
		path = req.DiagnosticsIn[0]
	}
	result, err := e.Cascade.RunQFile(ctx, req.Model, req.Prompt, path, req.OutputRoot)
	if err != nil {
		return e.fail(state, err)
	}
	state.CompletedPaths = append(state.CompletedPaths, result.File.RelativePath)
	state.ResponseChain = append(state.ResponseChain, result.ResponseID)
	_ = rl.Event("qfile_complete", map[string]any{"path": result.File.RelativePath})
	return e.finish(state), nil
}

func (e *Engine) runBatch(ctx context.Context, req model.RunRequest, state model.RunState, rl *runlog.Logger) (model.RunState, error) {
	paths := req.DiagnosticsIn
	if len(paths) == 0 {
		return e.fail(state, fmt.Errorf("engine: C mode requires at least one target path"))
	}
	lines := make([]provider.BatchRequestLine, 0, len(paths))
	for i, p := range paths {
		lines = append(lines, batch.BuildRequestLine(state.RunID, i+1, req.Model, req.Prompt, p))
	}
	result, err := batch.Run(ctx, e.Client, state.RunID, lines, batch.DefaultPollConfig())
	if err != nil {
		return e.fail(state, err)
	}
	state.BatchID = result.Batch.ID
	for _, f := range result.Files {
		state.CompletedPaths = append(state.CompletedPaths, f.RelativePath)
	}
	_ = rl.Event("batch_complete", map[string]any{"batch_id": result.Batch.ID, "files": len(result.Files)})
	return e.finish(state), nil
}

func (e *Engine) finish(state model.RunState) model.RunState {
	state.Status = model.StatusDone
	state.UpdatedAt = time.Now().UTC()
	return state
}

func (e *Engine) fail(state model.RunState, err error) (model.RunState, error) {
	state.Status = model.StatusFailed
	state.FailureReason = err.Error()
	state.UpdatedAt = time.Now().UTC()
	if e.Log != nil {
		e.Log.Error("run_failed", "run_id", state.RunID, "error", err.Error())
	}
	return state, err
}
