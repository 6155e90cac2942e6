// Package mirror uploads a scanned project tree to the Provider's Files API
// and indexes the uploaded files into a fresh vector store for file_search,
// and returns a manifest that records, per file, whether it was uploaded
// and why if not (the manifest is not written to disk here).
//
// Grounded on the original source's filescan.py build_manifest and the
// bounded-fan-out concurrency idiom used throughout services/*
// (golang.org/x/sync/errgroup); generalized here to bound concurrent
// uploads to 4 so a large project doesn't open hundreds of simultaneous
// HTTP connections.
package mirror

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/pathsafety"
	"github.com/kajovo/cascade/internal/provider"
	"github.com/kajovo/cascade/internal/secrets"
)

// MaxConcurrentUploads bounds the errgroup's parallelism.
const MaxConcurrentUploads = 4

// Result is the outcome of Upload: the manifest plus the vector store it
// built (if any files were uploadable).
type Result struct {
	Manifest      model.Manifest
	VectorStoreID string
	VectorStoreErr error // set when store/indexing failed but uploads still succeeded
}

// Upload scans root, uploads every eligible file, and indexes them into a
// new vector store named storeName. A vector-store failure is non-fatal:
// the run continues without file_search rather than aborting, recorded in
// Result.VectorStoreErr for the caller to log.
func Upload(ctx context.Context, client provider.Client, root, storeName string, opts pathsafety.WalkOptions) (Result, error) {
	items, err := pathsafety.Walk(root, opts)
	if err != nil {
		return Result{}, fmt.Errorf("mirror: walk: %w", err)
	}

	manifest := model.Manifest{Root: root, GeneratedAt: time.Now().UTC()}
	type uploadOutcome struct {
		entry  model.ManifestEntry
		fileID string
	}
	outcomes := make([]uploadOutcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentUploads)

	for i, item := range items {
		i, item := i, item
		if !item.Uploadable {
			outcomes[i] = uploadOutcome{entry: model.ManifestEntry{RelativePath: item.RelPath, AbsolutePath: item.AbsPath, Size: item.Size, SHA256: item.SHA256, SkipReason: item.Reason}}
			continue
		}
		g.Go(func() error {
			class := secrets.ClassifyFilePath(item.AbsPath)
			if class.Suspicious {
				outcomes[i] = uploadOutcome{entry: model.ManifestEntry{RelativePath: item.RelPath, AbsolutePath: item.AbsPath, Size: item.Size, SHA256: item.SHA256, SkipReason: "secret_like:" + class.Reason}}
				return nil
			}
			content, err := os.ReadFile(item.AbsPath)
			if err != nil {
				outcomes[i] = uploadOutcome{entry: model.ManifestEntry{RelativePath: item.RelPath, AbsolutePath: item.AbsPath, Size: item.Size, SHA256: item.SHA256, SkipReason: "read_failed"}}
				return nil
			}
			uploaded, err := client.UploadFile(gctx, item.RelPath, content, "assistants")
			if err != nil {
				outcomes[i] = uploadOutcome{entry: model.ManifestEntry{RelativePath: item.RelPath, AbsolutePath: item.AbsPath, Size: item.Size, SHA256: item.SHA256, SkipReason: "upload_failed"}}
				return nil
			}
			outcomes[i] = uploadOutcome{
				entry:  model.ManifestEntry{RelativePath: item.RelPath, AbsolutePath: item.AbsPath, Size: item.Size, SHA256: item.SHA256, FileID: uploaded.ID, Uploaded: true},
				fileID: uploaded.ID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("mirror: upload: %w", err)
	}

	var fileIDs []string
	for _, o := range outcomes {
		manifest.Files = append(manifest.Files, o.entry)
		if o.fileID != "" {
			fileIDs = append(fileIDs, o.fileID)
		}
	}

	if len(fileIDs) == 0 {
		return Result{Manifest: manifest}, nil
	}

	store, err := client.CreateVectorStore(ctx, storeName)
	if err != nil {
		return Result{Manifest: manifest, VectorStoreErr: fmt.Errorf("mirror: create vector store: %w", err)}, nil
	}

	indexErr := indexFiles(ctx, client, store.ID, fileIDs)
	return Result{Manifest: manifest, VectorStoreID: store.ID, VectorStoreErr: indexErr}, nil
}

func indexFiles(ctx context.Context, client provider.Client, vectorStoreID string, fileIDs []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentUploads)
	for _, id := range fileIDs {
		id := id
		g.Go(func() error {
			_, err := client.AddFileToVectorStore(gctx, vectorStoreID, id)
			return err
		})
	}
	return g.Wait()
}
