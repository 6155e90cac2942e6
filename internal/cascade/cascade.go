// Package cascade drives the GENERATE, MODIFY, QA, and QFILE state
// machines: sequences of chained Responses API calls, each one's output
// parsed as a strict JSON contract, that plan a file set, define its
// structure, and stream each file's content chunk by chunk.
//
// Grounded on the original source's core/pipeline.py RunWorker.run() and its
// _run_a_generate/_run_b_modify/_run_qa/_run_qfile helpers, and
// cascade_types.py's CascadeStep/CascadeDefinition "step as value" pattern
// (mirrored here by Step/Definition).
package cascade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kajovo/cascade/internal/chunk"
	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/pathsafety"
	"github.com/kajovo/cascade/internal/provider"
)

// Step is one named point in a cascade, mirroring the original
// CascadeStep dataclass: a step has a name and the contract it expects
// back; the order of steps is given by their position in a Definition.
type Step struct {
	Name     string
	Contract contract.Name
}

// Definition is an ordered cascade — the Go analogue of CascadeDefinition —
// used only for introspection (no Run API route serves it) since
// the actual control flow below is expressed directly in Go, not walked
// generically from a Definition value.
type Definition struct {
	Mode  model.Mode
	Steps []Step
}

// GenerateDefinition, ModifyDefinition, QADefinition, and QFileDefinition
// describe each cascade's step sequence for introspection/UI purposes.
var (
	GenerateDefinition = Definition{Mode: model.ModeGenerate, Steps: []Step{
		{Name: "A1", Contract: contract.A1Plan},
		{Name: "A2", Contract: contract.A2Structure},
		{Name: "A3", Contract: contract.A3File},
	}}
	ModifyDefinition = Definition{Mode: model.ModeModify, Steps: []Step{
		{Name: "A0", Contract: contract.A0IngestAck},
		{Name: "B1", Contract: contract.B1Plan},
		{Name: "B2", Contract: contract.B2Structure},
		{Name: "B3", Contract: contract.B3File},
	}}
	QADefinition    = Definition{Mode: model.ModeQA, Steps: []Step{{Name: "QA"}}}
	QFileDefinition = Definition{Mode: model.ModeQFile, Steps: []Step{{Name: "QFILE"}}}
)

// Engine holds the collaborator every cascade step needs: the Provider
// client. The model name is passed to each Run* call.
type Engine struct {
	Client provider.Client
}

// NewEngine constructs an Engine.
func NewEngine(client provider.Client) *Engine {
	return &Engine{Client: client}
}

// stepResult is what one chained Provider call plus contract parse produces.
type stepResult struct {
	response provider.Response
	contract map[string]any
}

// requestContract sends one Responses API call and strictly parses its
// output as want, chaining onto previousResponseID when set.
func (e *Engine) requestContract(ctx context.Context, req provider.ResponseRequest, want contract.Name) (stepResult, error) {
	resp, err := e.Client.CreateResponse(ctx, req)
	if err != nil {
		return stepResult{}, fmt.Errorf("cascade: create response: %w", err)
	}
	obj, err := contract.ParseStrict(resp.OutputText, want)
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{response: resp, contract: obj}, nil
}

// runFileLoop drives the chunked A3_FILE/B3_FILE exchange for a single
// planned path: it keeps requesting chunks, chaining previous_response_id,
// until the assembler reports Done or the inner attempt budget (3 attempts
// per chunk, matching the original's graceful-abandon behavior) is
// exhausted.
func (e *Engine) runFileLoop(ctx context.Context, model_ string, previousResponseID, path string, want contract.Name) (model.OutputFile, string, error) {
	return e.continueFileLoop(ctx, model_, previousResponseID, path, want, chunk.NewAssembler(path))
}

// continueFileLoop drives asm to completion, useful both for a fresh
// assembler (runFileLoop) and for one seeded with a first chunk already
// received outside the loop (RunQFile's single-request kickoff).
func (e *Engine) continueFileLoop(ctx context.Context, model_ string, previousResponseID, path string, want contract.Name, asm *chunk.Assembler) (model.OutputFile, string, error) {
	lastResponseID := previousResponseID

	for !asm.Done() {
		var lastErr error
		succeeded := false

		for attempt := 1; attempt <= 3; attempt++ {
			resp, err := e.Client.CreateResponse(ctx, provider.ResponseRequest{
				Model:              model_,
				Input:              fmt.Sprintf("Continue emitting %s for path %q, chunk_index=%d.", want, path, asm.NextIndex()),
				PreviousResponseID: lastResponseID,
			})
			if err != nil {
				lastErr = err
				continue
			}
			obj, err := contract.ParseStrict(resp.OutputText, want)
			if err != nil {
				lastErr = err
				continue
			}
			info, err := chunkInfoFromContract(obj)
			if err != nil {
				lastErr = err
				continue
			}
			content, _ := obj["content"].(string)
			if err := asm.Add(content, info); err != nil {
				lastErr = err
				continue
			}
			lastResponseID = resp.ID
			succeeded = true
			break
		}

		if !succeeded {
			return model.OutputFile{}, lastResponseID, fmt.Errorf("cascade: %s: abandoned after 3 attempts on chunk %d: %w", path, asm.NextIndex(), lastErr)
		}
	}

	content, err := asm.Content()
	if err != nil {
		return model.OutputFile{}, lastResponseID, err
	}
	return model.OutputFile{RelativePath: path, Content: content}, lastResponseID, nil
}

func chunkInfoFromContract(obj map[string]any) (chunk.Info, error) {
	raw, ok := obj["chunking"].(map[string]any)
	if !ok {
		return chunk.Info{}, fmt.Errorf("cascade: missing chunking object")
	}
	info := chunk.Info{
		MaxLines:   intOf(raw["max_lines"]),
		ChunkIndex: intOf(raw["chunk_index"]),
		ChunkCount: intOf(raw["chunk_count"]),
		HasMore:    boolOf(raw["has_more"]),
	}
	if v, ok := raw["next_chunk_index"]; ok {
		info.NextChunkIndex = intOf(v)
	}
	return info, nil
}

func intOf(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	default:
		return 0
	}
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

// extractPaths pulls the "path" field out of an array of objects — the
// shape A2_STRUCTURE.files ({"path","purpose"}) and B2_STRUCTURE.
// touched_files ({"path","action","intent"}) both use.
func extractPaths(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if p, ok := m["path"].(string); ok && p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ingestThreshold and ingestPieceSize gate the A0 ingest phase: prompts
// longer than ingestThreshold are split into ingestPieceSize pieces and
// chained via previous_response_id, each acknowledged with a minimal
// A0_INGEST_ACK before A1/B1 is ever asked to plan.
const (
	ingestThreshold = 150_000
	ingestPieceSize = 20_000
)

// runIngest splits prompt into ingestPieceSize pieces and chains them
// through A0_INGEST_ACK exchanges when prompt exceeds ingestThreshold,
// returning the response id of the last piece to seed the following A1/B1
// request. Returns "" when the prompt is short enough that no A0 phase
// runs at all.
func (e *Engine) runIngest(ctx context.Context, modelName, prompt string, vectorStoreIDs []string) (string, error) {
	if len(prompt) <= ingestThreshold {
		return "", nil
	}

	pieces := splitIntoPieces(prompt, ingestPieceSize)
	var lastResponseID string
	for i, piece := range pieces {
		req := provider.ResponseRequest{
			Model:          modelName,
			Input:          piece,
			VectorStoreIDs: vectorStoreIDs,
		}
		if lastResponseID != "" {
			req.PreviousResponseID = lastResponseID
		}
		res, err := e.requestContract(ctx, req, contract.A0IngestAck)
		if err != nil {
			return "", fmt.Errorf("cascade: A0 piece %d/%d: %w", i+1, len(pieces), err)
		}
		lastResponseID = res.response.ID
	}
	return lastResponseID, nil
}

// splitIntoPieces breaks s into consecutive chunks of at most size bytes.
func splitIntoPieces(s string, size int) []string {
	var pieces []string
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		pieces = append(pieces, s[:n])
		s = s[n:]
	}
	return pieces
}

// validatePlannedPaths applies path-safety rules to a planned file set
// before any file loop runs, so a malicious or buggy A2/B2 response can't
// smuggle a path escape into the output tree.
func validatePlannedPaths(outputRoot string, paths []string) error {
	return pathsafety.ValidatePaths(outputRoot, paths)
}
