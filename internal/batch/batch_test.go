package batch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kajovo/cascade/internal/provider"
)

type fakeBatchClient struct {
	provider.Client
	statuses     []string
	statusIdx    int
	outputFileID string
	outputBody   []byte
}

func (f *fakeBatchClient) UploadFile(ctx context.Context, filename string, content []byte, purpose string) (provider.UploadedFile, error) {
	return provider.UploadedFile{ID: "file_in"}, nil
}

func (f *fakeBatchClient) CreateBatch(ctx context.Context, inputFileID, endpoint string) (provider.Batch, error) {
	return provider.Batch{ID: "batch_1", Status: "validating"}, nil
}

func (f *fakeBatchClient) RetrieveBatch(ctx context.Context, id string) (provider.Batch, error) {
	status := f.statuses[f.statusIdx]
	if f.statusIdx < len(f.statuses)-1 {
		f.statusIdx++
	}
	b := provider.Batch{ID: id, Status: status}
	if status == "completed" {
		b.OutputFileID = f.outputFileID
	}
	return b, nil
}

func (f *fakeBatchClient) FileContent(ctx context.Context, id string) ([]byte, error) {
	return f.outputBody, nil
}

func TestBuildRequestLineFormat(t *testing.T) {
	line := BuildRequestLine("RUN_1", 3, "gpt-5", "prompt", "a.go")
	require.Equal(t, "RUN_1_C3", line.CustomID)
	require.Equal(t, "/v1/responses", line.URL)
}

func TestMarshalJSONLProducesOneLinePerRequest(t *testing.T) {
	lines := []provider.BatchRequestLine{
		BuildRequestLine("RUN_1", 1, "gpt-5", "p", "a.go"),
		BuildRequestLine("RUN_1", 2, "gpt-5", "p", "b.go"),
	}
	data, err := MarshalJSONL(lines)
	require.NoError(t, err)
	require.Equal(t, 2, len(strings.Split(strings.TrimRight(string(data), "\n"), "\n")))
}

func outputLine(t *testing.T, customID string, files []map[string]string) []byte {
	t.Helper()
	filesAny := make([]any, len(files))
	for i, f := range files {
		filesAny[i] = map[string]any{"path": f["path"], "content": f["content"]}
	}
	body := map[string]any{
		"output": []any{
			map[string]any{"content": []any{
				map[string]any{"type": "output_text", "text": mustJSON(t, map[string]any{"contract": "C_FILES_ALL", "files": filesAny})},
			}},
		},
	}
	envelope := map[string]any{"custom_id": customID, "response": map[string]any{"body": body}}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRunPollsUntilCompletedAndParsesFiles(t *testing.T) {
	line := outputLine(t, "RUN_1_C1", []map[string]string{{"path": "a.go", "content": "package a\n"}})
	client := &fakeBatchClient{statuses: []string{"validating", "in_progress", "completed"}, outputFileID: "file_out", outputBody: line}

	result, err := Run(context.Background(), client, "RUN_1", []provider.BatchRequestLine{BuildRequestLine("RUN_1", 1, "gpt-5", "p", "a.go")}, PollConfig{Interval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "completed", result.Batch.Status)
	require.Len(t, result.Files, 1)
	require.Equal(t, "a.go", result.Files[0].RelativePath)
}

func TestRunReturnsErrorOnFailedStatus(t *testing.T) {
	client := &fakeBatchClient{statuses: []string{"failed"}}
	_, err := Run(context.Background(), client, "RUN_1", []provider.BatchRequestLine{BuildRequestLine("RUN_1", 1, "gpt-5", "p", "a.go")}, PollConfig{Interval: time.Millisecond, Timeout: time.Second})
	require.Error(t, err)
}
