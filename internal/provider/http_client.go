package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kajovo/cascade/internal/contract"
	"github.com/kajovo/cascade/internal/credential"
	"github.com/kajovo/cascade/internal/transport"
)

// HTTPClient implements Client. ListModels delegates to go-openai, which
// already covers that surface cleanly; every Responses/Batch/vector-store
// call — surfaces go-openai doesn't expose — goes over raw HTTP through the
// shared transport.Client so every call gets the same circuit breaker,
// retry/backoff, and rate limiting.
type HTTPClient struct {
	cred    *credential.Provider
	http    *http.Client
	tr      *transport.Client
	baseURL string
	oa      func(apiKey string) *openai.Client
}

// NewHTTPClient builds an HTTPClient. baseURL defaults to the standard API
// host when empty.
func NewHTTPClient(cred *credential.Provider, tr *transport.Client, baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &HTTPClient{
		cred:    cred,
		http:    &http.Client{Timeout: 120 * time.Second},
		tr:      tr,
		baseURL: baseURL,
		oa: func(apiKey string) *openai.Client {
			return openai.NewClient(apiKey)
		},
	}
}

func (c *HTTPClient) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	err := c.cred.WithKey(func(key string) error {
		return c.tr.Do(ctx, func(ctx context.Context) error {
			list, err := c.oa(key).ListModels(ctx)
			if err != nil {
				return classifyOpenAIErr(err)
			}
			models = make([]string, 0, len(list.Models))
			for _, m := range list.Models {
				models = append(models, m.ID)
			}
			return nil
		})
	})
	return models, err
}

func (c *HTTPClient) CreateResponse(ctx context.Context, req ResponseRequest) (Response, error) {
	body := map[string]any{
		"model": req.Model,
		"input": req.Input,
	}
	if req.Instructions != "" {
		body["instructions"] = req.Instructions
	}
	if req.PreviousResponseID != "" {
		body["previous_response_id"] = req.PreviousResponseID
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxOutputTokens > 0 {
		body["max_output_tokens"] = req.MaxOutputTokens
	}
	if len(req.VectorStoreIDs) > 0 {
		body["tools"] = []map[string]any{{
			"type":             "file_search",
			"vector_store_ids": req.VectorStoreIDs,
		}}
	}

	var out Response
	err := c.doJSON(ctx, http.MethodPost, "/responses", body, func(raw map[string]any) error {
		out = parseResponse(raw)
		return nil
	})
	return out, err
}

func (c *HTTPClient) RetrieveResponse(ctx context.Context, id string) (Response, error) {
	var out Response
	err := c.doJSON(ctx, http.MethodGet, "/responses/"+id, nil, func(raw map[string]any) error {
		out = parseResponse(raw)
		return nil
	})
	return out, err
}

func (c *HTTPClient) UploadFile(ctx context.Context, filename string, content []byte, purpose string) (UploadedFile, error) {
	var out UploadedFile
	err := c.cred.WithKey(func(key string) error {
		return c.tr.Do(ctx, func(ctx context.Context) error {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			if err := w.WriteField("purpose", purpose); err != nil {
				return err
			}
			part, err := w.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := part.Write(content); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+key)
			httpReq.Header.Set("Content-Type", w.FormDataContentType())

			raw, err := c.send(httpReq)
			if err != nil {
				return err
			}
			out = UploadedFile{
				ID:       str(raw["id"]),
				Filename: str(raw["filename"]),
				Bytes:    int64(num(raw["bytes"])),
				Purpose:  str(raw["purpose"]),
			}
			return nil
		})
	})
	return out, err
}

func (c *HTTPClient) ListFiles(ctx context.Context, purpose string) ([]UploadedFile, error) {
	path := "/files"
	if purpose != "" {
		path += "?purpose=" + purpose
	}
	var out []UploadedFile
	err := c.doJSON(ctx, http.MethodGet, path, nil, func(raw map[string]any) error {
		data, _ := raw["data"].([]any)
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, UploadedFile{ID: str(m["id"]), Filename: str(m["filename"]), Bytes: int64(num(m["bytes"])), Purpose: str(m["purpose"])})
		}
		return nil
	})
	return out, err
}

func (c *HTTPClient) RetrieveFile(ctx context.Context, id string) (UploadedFile, error) {
	var out UploadedFile
	err := c.doJSON(ctx, http.MethodGet, "/files/"+id, nil, func(raw map[string]any) error {
		out = UploadedFile{ID: str(raw["id"]), Filename: str(raw["filename"]), Bytes: int64(num(raw["bytes"])), Purpose: str(raw["purpose"])}
		return nil
	})
	return out, err
}

func (c *HTTPClient) FileContent(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := c.cred.WithKey(func(key string) error {
		return c.tr.Do(ctx, func(ctx context.Context) error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+id+"/content", nil)
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+key)
			resp, err := c.http.Do(httpReq)
			if err != nil {
				return transport.NewProviderError(transport.KindNetwork, 0, "request failed", 0)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return providerErrorFromStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
			}
			out, err = io.ReadAll(resp.Body)
			return err
		})
	})
	return out, err
}

func (c *HTTPClient) DeleteFile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+id, nil, nil)
}

func (c *HTTPClient) CreateVectorStore(ctx context.Context, name string) (VectorStore, error) {
	var out VectorStore
	err := c.doJSON(ctx, http.MethodPost, "/vector_stores", map[string]any{"name": name}, func(raw map[string]any) error {
		out = VectorStore{ID: str(raw["id"]), Name: str(raw["name"]), Status: str(raw["status"])}
		return nil
	})
	return out, err
}

func (c *HTTPClient) ListVectorStores(ctx context.Context) ([]VectorStore, error) {
	var out []VectorStore
	err := c.doJSON(ctx, http.MethodGet, "/vector_stores", nil, func(raw map[string]any) error {
		data, _ := raw["data"].([]any)
		for _, item := range data {
			m, _ := item.(map[string]any)
			out = append(out, VectorStore{ID: str(m["id"]), Name: str(m["name"]), Status: str(m["status"])})
		}
		return nil
	})
	return out, err
}

func (c *HTTPClient) DeleteVectorStore(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+id, nil, nil)
}

func (c *HTTPClient) AddFileToVectorStore(ctx context.Context, vectorStoreID, fileID string) (VectorStoreFile, error) {
	var out VectorStoreFile
	err := c.doJSON(ctx, http.MethodPost, "/vector_stores/"+vectorStoreID+"/files", map[string]any{"file_id": fileID}, func(raw map[string]any) error {
		out = VectorStoreFile{ID: str(raw["id"]), VectorStoreID: vectorStoreID, Status: str(raw["status"])}
		return nil
	})
	return out, err
}

func (c *HTTPClient) RemoveFileFromVectorStore(ctx context.Context, vectorStoreID, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/vector_stores/"+vectorStoreID+"/files/"+fileID, nil, nil)
}

func (c *HTTPClient) ListVectorStoreFiles(ctx context.Context, vectorStoreID string) ([]VectorStoreFile, error) {
	var out []VectorStoreFile
	err := c.doJSON(ctx, http.MethodGet, "/vector_stores/"+vectorStoreID+"/files", nil, func(raw map[string]any) error {
		data, _ := raw["data"].([]any)
		for _, item := range data {
			m, _ := item.(map[string]any)
			out = append(out, VectorStoreFile{ID: str(m["id"]), VectorStoreID: vectorStoreID, Status: str(m["status"])})
		}
		return nil
	})
	return out, err
}

func (c *HTTPClient) RetrieveVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) (VectorStoreFile, error) {
	var out VectorStoreFile
	err := c.doJSON(ctx, http.MethodGet, "/vector_stores/"+vectorStoreID+"/files/"+fileID, nil, func(raw map[string]any) error {
		out = VectorStoreFile{ID: str(raw["id"]), VectorStoreID: vectorStoreID, Status: str(raw["status"])}
		return nil
	})
	return out, err
}

func (c *HTTPClient) UpdateVectorStoreFileAttributes(ctx context.Context, vectorStoreID, fileID string, attrs map[string]any) error {
	return c.doJSON(ctx, http.MethodPost, "/vector_stores/"+vectorStoreID+"/files/"+fileID, map[string]any{"attributes": attrs}, nil)
}

func (c *HTTPClient) ListBatches(ctx context.Context) ([]Batch, error) {
	var out []Batch
	err := c.doJSON(ctx, http.MethodGet, "/batches", nil, func(raw map[string]any) error {
		data, _ := raw["data"].([]any)
		for _, item := range data {
			m, _ := item.(map[string]any)
			out = append(out, parseBatch(m))
		}
		return nil
	})
	return out, err
}

// CreateBatch never chains previous_response_id — batch requests are always
// independent single-shot calls, unlike the synchronous Responses flow.
func (c *HTTPClient) CreateBatch(ctx context.Context, inputFileID, endpoint string) (Batch, error) {
	var out Batch
	err := c.doJSON(ctx, http.MethodPost, "/batches", map[string]any{
		"input_file_id":     inputFileID,
		"endpoint":          endpoint,
		"completion_window": "24h",
	}, func(raw map[string]any) error {
		out = parseBatch(raw)
		return nil
	})
	return out, err
}

func (c *HTTPClient) RetrieveBatch(ctx context.Context, id string) (Batch, error) {
	var out Batch
	err := c.doJSON(ctx, http.MethodGet, "/batches/"+id, nil, func(raw map[string]any) error {
		out = parseBatch(raw)
		return nil
	})
	return out, err
}

func (c *HTTPClient) CancelBatch(ctx context.Context, id string) (Batch, error) {
	var out Batch
	err := c.doJSON(ctx, http.MethodPost, "/batches/"+id+"/cancel", nil, func(raw map[string]any) error {
		out = parseBatch(raw)
		return nil
	})
	return out, err
}

// doJSON performs one transport-wrapped HTTP call with a JSON body (or no
// body) and, if onOK is non-nil, decodes the response into a map and hands
// it to onOK.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, onOK func(map[string]any) error) error {
	return c.cred.WithKey(func(key string) error {
		return c.tr.Do(ctx, func(ctx context.Context) error {
			var reader io.Reader
			if body != nil {
				data, err := json.Marshal(body)
				if err != nil {
					return err
				}
				reader = bytes.NewReader(data)
			}
			httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+key)
			if body != nil {
				httpReq.Header.Set("Content-Type", "application/json")
			}

			raw, err := c.send(httpReq)
			if err != nil {
				return err
			}
			if onOK != nil {
				return onOK(raw)
			}
			return nil
		})
	})
}

func (c *HTTPClient) send(req *http.Request) (map[string]any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transport.NewProviderError(transport.KindNetwork, 0, "request failed", 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.NewProviderError(transport.KindNetwork, 0, "read body failed", 0)
	}
	if resp.StatusCode >= 400 {
		return nil, providerErrorFromStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("provider: decode response: %w", err)
	}
	return raw, nil
}

func providerErrorFromStatus(status int, retryAfterHeader string) *transport.ProviderError {
	kind := transport.KindClient
	switch {
	case status == 429:
		kind = transport.KindRateLimited
	case status == 408 || status == 425:
		kind = transport.KindNetwork
	case status >= 500:
		kind = transport.KindServer
	}
	var retryAfter time.Duration
	if secs, err := strconv.Atoi(retryAfterHeader); err == nil {
		retryAfter = time.Duration(secs) * time.Second
	}
	return transport.NewProviderError(kind, status, fmt.Sprintf("provider returned status %d", status), retryAfter)
}

func classifyOpenAIErr(err error) error {
	return transport.NewProviderError(transport.KindServer, 0, "list models failed: "+err.Error(), 0)
}

func parseResponse(raw map[string]any) Response {
	out := Response{
		ID:     str(raw["id"]),
		Model:  str(raw["model"]),
		Status: str(raw["status"]),
		Raw:    raw,
	}
	if usage, ok := raw["usage"].(map[string]any); ok {
		out.InputTokens = int(num(usage["input_tokens"]))
		out.OutputTokens = int(num(usage["output_tokens"]))
	}
	out.OutputText, _ = contract.ExtractText(raw)
	return out
}

func parseBatch(raw map[string]any) Batch {
	b := Batch{
		ID:           str(raw["id"]),
		Status:       str(raw["status"]),
		InputFileID:  str(raw["input_file_id"]),
		OutputFileID: str(raw["output_file_id"]),
		ErrorFileID:  str(raw["error_file_id"]),
	}
	if counts, ok := raw["request_counts"].(map[string]any); ok {
		b.RequestCounts = BatchRequestCounts{
			Total:     int(num(counts["total"])),
			Completed: int(num(counts["completed"])),
			Failed:    int(num(counts["failed"])),
		}
	}
	return b
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}
