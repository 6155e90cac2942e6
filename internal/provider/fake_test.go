package provider

import (
	"context"
	"fmt"
)

// fakeClient is a minimal in-memory Client used only by this package's
// tests; internal/cascade and internal/batch define their own fakes
// tailored to their scenarios. It doubles as a same-package smoke test of
// the Client interface shape here.
type fakeClient struct {
	responses map[string]Response
	nextID    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{responses: map[string]Response{}}
}

func (f *fakeClient) ListModels(ctx context.Context) ([]string, error) { return []string{"gpt-5"}, nil }

func (f *fakeClient) CreateResponse(ctx context.Context, req ResponseRequest) (Response, error) {
	f.nextID++
	id := fmt.Sprintf("resp_%d", f.nextID)
	resp := Response{ID: id, Model: req.Model, Status: "completed", OutputText: req.Input}
	f.responses[id] = resp
	return resp, nil
}

func (f *fakeClient) RetrieveResponse(ctx context.Context, id string) (Response, error) {
	r, ok := f.responses[id]
	if !ok {
		return Response{}, fmt.Errorf("not found")
	}
	return r, nil
}

func (f *fakeClient) UploadFile(ctx context.Context, filename string, content []byte, purpose string) (UploadedFile, error) {
	return UploadedFile{ID: "file_1", Filename: filename, Bytes: int64(len(content)), Purpose: purpose}, nil
}
func (f *fakeClient) ListFiles(ctx context.Context, purpose string) ([]UploadedFile, error) { return nil, nil }
func (f *fakeClient) RetrieveFile(ctx context.Context, id string) (UploadedFile, error)      { return UploadedFile{ID: id}, nil }
func (f *fakeClient) FileContent(ctx context.Context, id string) ([]byte, error)             { return []byte("content"), nil }
func (f *fakeClient) DeleteFile(ctx context.Context, id string) error                        { return nil }

func (f *fakeClient) CreateVectorStore(ctx context.Context, name string) (VectorStore, error) {
	return VectorStore{ID: "vs_1", Name: name, Status: "completed"}, nil
}
func (f *fakeClient) ListVectorStores(ctx context.Context) ([]VectorStore, error) { return nil, nil }
func (f *fakeClient) DeleteVectorStore(ctx context.Context, id string) error      { return nil }
func (f *fakeClient) AddFileToVectorStore(ctx context.Context, vsID, fileID string) (VectorStoreFile, error) {
	return VectorStoreFile{ID: fileID, VectorStoreID: vsID, Status: "completed"}, nil
}
func (f *fakeClient) RemoveFileFromVectorStore(ctx context.Context, vsID, fileID string) error { return nil }
func (f *fakeClient) ListVectorStoreFiles(ctx context.Context, vsID string) ([]VectorStoreFile, error) {
	return nil, nil
}
func (f *fakeClient) RetrieveVectorStoreFile(ctx context.Context, vsID, fileID string) (VectorStoreFile, error) {
	return VectorStoreFile{ID: fileID, VectorStoreID: vsID, Status: "completed"}, nil
}
func (f *fakeClient) UpdateVectorStoreFileAttributes(ctx context.Context, vsID, fileID string, attrs map[string]any) error {
	return nil
}

func (f *fakeClient) ListBatches(ctx context.Context) ([]Batch, error) { return nil, nil }
func (f *fakeClient) CreateBatch(ctx context.Context, inputFileID, endpoint string) (Batch, error) {
	return Batch{ID: "batch_1", Status: "validating", InputFileID: inputFileID}, nil
}
func (f *fakeClient) RetrieveBatch(ctx context.Context, id string) (Batch, error) {
	return Batch{ID: id, Status: "completed"}, nil
}
func (f *fakeClient) CancelBatch(ctx context.Context, id string) (Batch, error) {
	return Batch{ID: id, Status: "cancelled"}, nil
}

var _ Client = (*fakeClient)(nil)
