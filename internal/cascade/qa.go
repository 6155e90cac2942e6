package cascade

import (
	"context"
	"fmt"

	"github.com/kajovo/cascade/internal/chunk"
	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/provider"
)

// QAResult is a completed QA run's answer.
type QAResult struct {
	Answer     string
	ResponseID string
}

// RunQA drives READY->QA->DONE: one question, one free-text answer, no
// contract parsing — QA is explicitly conversational, not a file-emitting
// step, so there's no JSON shape to enforce on the reply.
func (e *Engine) RunQA(ctx context.Context, modelName, question string, vectorStoreID string) (QAResult, error) {
	req := provider.ResponseRequest{Model: modelName, Input: question}
	if vectorStoreID != "" {
		req.VectorStoreIDs = []string{vectorStoreID}
	}
	resp, err := e.Client.CreateResponse(ctx, req)
	if err != nil {
		return QAResult{}, fmt.Errorf("cascade: QA: %w", err)
	}
	return QAResult{Answer: resp.OutputText, ResponseID: resp.ID}, nil
}

// QFileResult is a completed QFILE run's single generated file.
type QFileResult struct {
	File       model.OutputFile
	ResponseID string
}

// RunQFile drives READY->QFILE->DONE: a single named file is generated (and
// chunked if large) without the multi-file planning phases GENERATE/MODIFY
// go through — useful for "regenerate just this one file" requests.
func (e *Engine) RunQFile(ctx context.Context, modelName, prompt, path, outputRoot string) (QFileResult, error) {
	if err := validatePlannedPaths(outputRoot, []string{path}); err != nil {
		return QFileResult{}, fmt.Errorf("cascade: QFILE: %w", err)
	}

	kickoff, err := e.requestContract(ctx, provider.ResponseRequest{Model: modelName, Input: prompt}, contract.A3File)
	if err != nil {
		return QFileResult{}, fmt.Errorf("cascade: QFILE kickoff: %w", err)
	}
	info, err := chunkInfoFromContract(kickoff.contract)
	if err != nil {
		return QFileResult{}, fmt.Errorf("cascade: QFILE: %w", err)
	}
	content, _ := kickoff.contract["content"].(string)

	if !info.HasMore {
		return QFileResult{File: model.OutputFile{RelativePath: path, Content: content}, ResponseID: kickoff.response.ID}, nil
	}

	asm := chunk.NewAssembler(path)
	if err := asm.Add(content, info); err != nil {
		return QFileResult{}, fmt.Errorf("cascade: QFILE: %w", err)
	}
	file, respID, err := e.continueFileLoop(ctx, modelName, kickoff.response.ID, path, contract.A3File, asm)
	if err != nil {
		return QFileResult{}, fmt.Errorf("cascade: QFILE continuation: %w", err)
	}
	return QFileResult{File: file, ResponseID: respID}, nil
}
