package cascade

import (
	"context"
	"fmt"

	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/provider"
)

// ModifyResult is everything a completed MODIFY run produced.
type ModifyResult struct {
	FilesIndexed    int
	VectorStoreID   string
	Plan            string
	Files           []model.OutputFile
	FinalResponseID string
}

// RunModify drives READY->INGEST->[A0]->B1->B2->B3_LOOP->DONE. The caller
// must have already mirrored inputRoot into the Provider (internal/mirror)
// before calling this — vectorStoreID and filesIndexed describe that
// completed ingest. A0 only runs when prompt exceeds the ingest threshold.
func (e *Engine) RunModify(ctx context.Context, modelName, prompt, outputRoot, vectorStoreID string, filesIndexed int) (ModifyResult, error) {
	ingestResponseID, err := e.runIngest(ctx, modelName, prompt, []string{vectorStoreID})
	if err != nil {
		return ModifyResult{}, fmt.Errorf("cascade: A0: %w", err)
	}

	b1Req := provider.ResponseRequest{
		Model:          modelName,
		Input:          prompt,
		VectorStoreIDs: []string{vectorStoreID},
	}
	if ingestResponseID != "" {
		b1Req.Input = "Emit B1_PLAN for the prompt you were just given piece by piece."
		b1Req.PreviousResponseID = ingestResponseID
	}
	b1, err := e.requestContract(ctx, b1Req, contract.B1Plan)
	if err != nil {
		return ModifyResult{}, fmt.Errorf("cascade: B1: %w", err)
	}
	plan, _ := b1.contract["summary"].(string)

	b2, err := e.requestContract(ctx, provider.ResponseRequest{
		Model:              modelName,
		Input:              "Emit B2_STRUCTURE listing every file path to modify or add.",
		PreviousResponseID: b1.response.ID,
		VectorStoreIDs:     []string{vectorStoreID},
	}, contract.B2Structure)
	if err != nil {
		return ModifyResult{}, fmt.Errorf("cascade: B2: %w", err)
	}
	paths := extractPaths(b2.contract["touched_files"])
	if err := validatePlannedPaths(outputRoot, paths); err != nil {
		return ModifyResult{}, fmt.Errorf("cascade: B2 structure: %w", err)
	}

	lastResponseID := b2.response.ID
	files := make([]model.OutputFile, 0, len(paths))
	for _, path := range paths {
		file, respID, err := e.runFileLoop(ctx, modelName, lastResponseID, path, contract.B3File)
		if err != nil {
			return ModifyResult{}, fmt.Errorf("cascade: B3 %s: %w", path, err)
		}
		lastResponseID = respID
		files = append(files, file)
	}

	return ModifyResult{
		FilesIndexed:    filesIndexed,
		VectorStoreID:   vectorStoreID,
		Plan:            plan,
		Files:           files,
		FinalResponseID: lastResponseID,
	}, nil
}
