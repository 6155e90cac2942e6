package cascade

import (
	"context"
	"fmt"

	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/provider"
)

// GenerateResult is everything a completed GENERATE run produced.
type GenerateResult struct {
	Plan            string
	Files           []model.OutputFile
	FinalResponseID string
}

// RunGenerate drives READY->[A0]->A1->A2->A3_LOOP->DONE for a from-scratch
// project. A0 only runs when prompt exceeds the ingest threshold.
// outputRoot gates A2's planned paths through path-safety before any file
// content is requested.
func (e *Engine) RunGenerate(ctx context.Context, modelName, prompt, outputRoot string) (GenerateResult, error) {
	ingestResponseID, err := e.runIngest(ctx, modelName, prompt, nil)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("cascade: A0: %w", err)
	}

	a1Req := provider.ResponseRequest{Model: modelName, Input: prompt}
	if ingestResponseID != "" {
		a1Req.Input = "Emit A1_PLAN for the prompt you were just given piece by piece."
		a1Req.PreviousResponseID = ingestResponseID
	}
	a1, err := e.requestContract(ctx, a1Req, contract.A1Plan)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("cascade: A1: %w", err)
	}
	plan, _ := a1.contract["summary"].(string)

	a2, err := e.requestContract(ctx, provider.ResponseRequest{
		Model:              modelName,
		Input:              "Emit A2_STRUCTURE listing every file path to generate.",
		PreviousResponseID: a1.response.ID,
	}, contract.A2Structure)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("cascade: A2: %w", err)
	}
	paths := extractPaths(a2.contract["files"])
	if err := validatePlannedPaths(outputRoot, paths); err != nil {
		return GenerateResult{}, fmt.Errorf("cascade: A2 structure: %w", err)
	}

	lastResponseID := a2.response.ID
	files := make([]model.OutputFile, 0, len(paths))
	for _, path := range paths {
		file, respID, err := e.runFileLoop(ctx, modelName, lastResponseID, path, contract.A3File)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("cascade: A3 %s: %w", path, err)
		}
		lastResponseID = respID
		files = append(files, file)
	}

	return GenerateResult{Plan: plan, Files: files, FinalResponseID: lastResponseID}, nil
}
