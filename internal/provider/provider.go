// Package provider implements the typed client for the remote stateful
// text-generation Provider: chained Responses API calls, file_search-backed
// vector stores, the Files API, and the async Batch endpoint.
//
// Grounded on services/llm/client.go's Client interface shape and
// openai_llm.go's HTTP call construction, generalized from chat-completions
// to the Responses API per the original source's core/openai_client.py
// OpenAIClient method set.
package provider

import "context"

// ResponseRequest builds one Responses API call. PreviousResponseID chains
// this call onto an earlier one in the same cascade step.
type ResponseRequest struct {
	Model              string
	Input              string
	Instructions       string
	PreviousResponseID string
	Temperature        *float64
	VectorStoreIDs     []string // enables the file_search tool when non-empty
	MaxOutputTokens    int
}

// Response is the subset of a Responses API payload the cascade cares about.
type Response struct {
	ID         string
	Model      string
	Status     string // completed | incomplete | failed
	OutputText string
	InputTokens  int
	OutputTokens int
	Raw        map[string]any
}

// UploadedFile is a Files API upload result.
type UploadedFile struct {
	ID        string
	Filename  string
	Bytes     int64
	Purpose   string
	CreatedAt int64
}

// VectorStore is a vector store resource.
type VectorStore struct {
	ID     string
	Name   string
	Status string
}

// VectorStoreFile is one file's membership/indexing status in a vector store.
type VectorStoreFile struct {
	ID         string
	VectorStoreID string
	Status     string // in_progress | completed | failed | cancelled
}

// BatchRequestLine is one line of a batch JSONL input file.
type BatchRequestLine struct {
	CustomID string
	Method   string
	URL      string
	Body     map[string]any
}

// Batch is an async batch job's status.
type Batch struct {
	ID               string
	Status           string // validating | in_progress | finalizing | completed | failed | expired | cancelled
	InputFileID      string
	OutputFileID     string
	ErrorFileID      string
	RequestCounts    BatchRequestCounts
}

type BatchRequestCounts struct {
	Total     int
	Completed int
	Failed    int
}

// Client is the full surface the cascade state machine drives a Provider
// through. One implementation (HTTPClient) talks to the real API; tests use
// a hand-written fake.
type Client interface {
	ListModels(ctx context.Context) ([]string, error)
	CreateResponse(ctx context.Context, req ResponseRequest) (Response, error)
	RetrieveResponse(ctx context.Context, id string) (Response, error)

	UploadFile(ctx context.Context, filename string, content []byte, purpose string) (UploadedFile, error)
	ListFiles(ctx context.Context, purpose string) ([]UploadedFile, error)
	RetrieveFile(ctx context.Context, id string) (UploadedFile, error)
	FileContent(ctx context.Context, id string) ([]byte, error)
	DeleteFile(ctx context.Context, id string) error

	CreateVectorStore(ctx context.Context, name string) (VectorStore, error)
	ListVectorStores(ctx context.Context) ([]VectorStore, error)
	DeleteVectorStore(ctx context.Context, id string) error
	AddFileToVectorStore(ctx context.Context, vectorStoreID, fileID string) (VectorStoreFile, error)
	RemoveFileFromVectorStore(ctx context.Context, vectorStoreID, fileID string) error
	ListVectorStoreFiles(ctx context.Context, vectorStoreID string) ([]VectorStoreFile, error)
	RetrieveVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) (VectorStoreFile, error)
	UpdateVectorStoreFileAttributes(ctx context.Context, vectorStoreID, fileID string, attrs map[string]any) error

	ListBatches(ctx context.Context) ([]Batch, error)
	CreateBatch(ctx context.Context, inputFileID, endpoint string) (Batch, error)
	RetrieveBatch(ctx context.Context, id string) (Batch, error)
	CancelBatch(ctx context.Context, id string) (Batch, error)
}
