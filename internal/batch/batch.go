// Package batch drives the C mode cascade: build a JSONL file of
// independent Responses API requests (one per planned output file, never
// chained via previous_response_id since batch requests execute out of
// order), upload it, create a batch job, and poll until it finishes.
//
// Grounded on the original source's pipeline.py _run_c_batch: custom_id
// format "<run_id>_C1", polling with backoff, and the download+parse step
// once status reaches "completed".
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/provider"
)

// BuildRequestLine constructs one JSONL line for path, using
// "<runID>_C<index>" as the custom_id — mirroring the original's
// "<run_id>_C1" convention generalized to N files.
func BuildRequestLine(runID string, index int, modelName, prompt, path string) provider.BatchRequestLine {
	return provider.BatchRequestLine{
		CustomID: fmt.Sprintf("%s_C%d", runID, index),
		Method:   "POST",
		URL:      "/v1/responses",
		Body: map[string]any{
			"model": modelName,
			"input": fmt.Sprintf("%s\n\nEmit C_FILES_ALL for path %q only.", prompt, path),
		},
	}
}

// MarshalJSONL renders lines as newline-delimited JSON, the shape the Files
// API expects for a batch input file.
func MarshalJSONL(lines []provider.BatchRequestLine) ([]byte, error) {
	var sb strings.Builder
	for _, l := range lines {
		obj := map[string]any{"custom_id": l.CustomID, "method": l.Method, "url": l.URL, "body": l.Body}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("batch: marshal line %s: %w", l.CustomID, err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

// PollConfig tunes Run's polling loop.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPollConfig matches the original's 5s-interval, 1h-timeout defaults.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: 5 * time.Second, Timeout: time.Hour}
}

// ErrTimeout is returned when a batch doesn't reach a terminal state within
// cfg.Timeout.
var ErrTimeout = fmt.Errorf("batch: polling timed out")

// terminalStatuses are the batch states Run stops polling on.
var terminalStatuses = map[string]bool{
	"completed": true, "failed": true, "expired": true, "cancelled": true,
}

// Result is one C mode run's outcome once its batch reaches a terminal
// state.
type Result struct {
	Batch provider.Batch
	Files []model.OutputFile
}

// Run uploads lines as a batch, creates the batch job, and polls until
// terminal, downloading and parsing every C_FILES_ALL result line on
// success.
func Run(ctx context.Context, client provider.Client, runID string, lines []provider.BatchRequestLine, cfg PollConfig) (Result, error) {
	if cfg.Interval <= 0 {
		cfg = DefaultPollConfig()
	}

	jsonl, err := MarshalJSONL(lines)
	if err != nil {
		return Result{}, err
	}
	uploaded, err := client.UploadFile(ctx, runID+"_batch_input.jsonl", jsonl, "batch")
	if err != nil {
		return Result{}, fmt.Errorf("batch: upload input: %w", err)
	}

	created, err := client.CreateBatch(ctx, uploaded.ID, "/v1/responses")
	if err != nil {
		return Result{}, fmt.Errorf("batch: create: %w", err)
	}

	final, err := poll(ctx, client, created.ID, cfg)
	if err != nil {
		return Result{}, err
	}
	if final.Status != "completed" {
		return Result{Batch: final}, fmt.Errorf("batch: terminal status %q", final.Status)
	}

	files, err := downloadAndParse(ctx, client, final.OutputFileID)
	if err != nil {
		return Result{Batch: final}, err
	}
	return Result{Batch: final, Files: files}, nil
}

func poll(ctx context.Context, client provider.Client, batchID string, cfg PollConfig) (provider.Batch, error) {
	deadline := time.Now().Add(cfg.Timeout)
	interval := cfg.Interval
	const maxInterval = 60 * time.Second
	for {
		b, err := client.RetrieveBatch(ctx, batchID)
		if err != nil {
			return provider.Batch{}, fmt.Errorf("batch: retrieve: %w", err)
		}
		if terminalStatuses[b.Status] {
			return b, nil
		}
		if time.Now().After(deadline) {
			return b, ErrTimeout
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return provider.Batch{}, ctx.Err()
		case <-timer.C:
		}
		if interval *= 2; interval > maxInterval {
			interval = maxInterval
		}
	}
}

func downloadAndParse(ctx context.Context, client provider.Client, outputFileID string) ([]model.OutputFile, error) {
	if outputFileID == "" {
		return nil, fmt.Errorf("batch: no output file id")
	}
	raw, err := client.FileContent(ctx, outputFileID)
	if err != nil {
		return nil, fmt.Errorf("batch: download output: %w", err)
	}

	var files []model.OutputFile
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var envelope struct {
			CustomID string `json:"custom_id"`
			Response struct {
				Body map[string]any `json:"body"`
			} `json:"response"`
		}
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}
		text, err := contract.ExtractText(envelope.Response.Body)
		if err != nil {
			continue
		}
		obj, err := contract.ParseStrict(text, contract.CFilesAll)
		if err != nil {
			continue
		}
		for _, f := range extractFiles(obj) {
			files = append(files, f)
		}
	}
	return files, nil
}

func extractFiles(obj map[string]any) []model.OutputFile {
	arr, _ := obj["files"].([]any)
	out := make([]model.OutputFile, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		path, _ := m["path"].(string)
		content, _ := m["content"].(string)
		if path == "" {
			continue
		}
		out = append(out, model.OutputFile{RelativePath: path, Content: content})
	}
	return out
}
