// Package upload transfers local audio files to the job input bucket.
//
// A Coordinator applies the size and duplicate policy, fetches one set of
// temporary credentials per batch, and uploads the accepted files in chunks:
// chunks run one after another, the files of a chunk run concurrently.
// Every file passed in ends up in exactly one side of the returned Result.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/me/shennong/internal/objectstore"
	"github.com/me/shennong/pkg/model"
)

// Defaults for Coordinator.
const (
	ChunkSize   = 5
	MaxFailures = 10
)

// CredentialSource fetches temporary object-store credentials.
type CredentialSource interface {
	TempCredentials(ctx context.Context) (model.TempCredentials, error)
}

// ProgressFunc receives progress samples. It is called from the upload
// goroutines and must be safe for concurrent use.
type ProgressFunc func(model.ProgressSample)

// Coordinator runs upload batches.
type Coordinator struct {
	creds  CredentialSource
	stores objectstore.Factory
	logger *slog.Logger

	// ChunkSize bounds how many files are in flight at once.
	ChunkSize int
	// MaxFailures is the number of transfer failures a batch tolerates;
	// once exceeded, remaining chunks are not started.
	MaxFailures int
	// NewPrefix generates the key prefix shared by one batch.
	NewPrefix func() string
}

// NewCoordinator creates a Coordinator with the default limits.
func NewCoordinator(creds CredentialSource, stores objectstore.Factory, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		creds:       creds,
		stores:      stores,
		logger:      logger.With("component", "upload"),
		ChunkSize:   ChunkSize,
		MaxFailures: MaxFailures,
		NewPrefix:   uuid.NewString,
	}
}

// Batch is an upload in progress.
type Batch struct {
	done   chan struct{}
	cancel context.CancelFunc
	result Result
}

// Done is closed when the batch has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Cancel stops the batch. Files not yet uploaded are reported as
// UPLOAD_FAILURE with the context error.
func (b *Batch) Cancel() {
	b.cancel()
}

// Wait blocks until the batch finishes and returns its result.
func (b *Batch) Wait() Result {
	<-b.done
	return b.result
}

// Start begins uploading files in the background. uploaded lists the files
// already in the draft; their names are skipped and their sizes count toward
// MaxBatchSize.
func (c *Coordinator) Start(ctx context.Context, files []Source, uploaded []model.UploadRef, onProgress ProgressFunc) *Batch {
	ctx, cancel := context.WithCancel(ctx)
	b := &Batch{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(b.done)
		defer cancel()
		b.result = c.run(ctx, files, uploaded, onProgress)
	}()
	return b
}

// Upload runs a batch to completion.
func (c *Coordinator) Upload(ctx context.Context, files []Source, uploaded []model.UploadRef, onProgress ProgressFunc) Result {
	return c.Start(ctx, files, uploaded, onProgress).Wait()
}

// fileResult is the outcome of one transfer.
type fileResult struct {
	ref model.UploadRef
	err error
}

func (c *Coordinator) run(ctx context.Context, files []Source, uploaded []model.UploadRef, onProgress ProgressFunc) Result {
	accepted, failed := Prefilter(files, uploaded)
	res := Result{Failed: failed}
	if len(accepted) == 0 {
		return res
	}

	store, err := c.openStore(ctx)
	if err != nil {
		c.logger.Warn("credentials unavailable", "files", len(accepted), "error", err)
		for _, f := range accepted {
			res.Failed = append(res.Failed, Failure{Source: f, Reason: model.CredentialFailure, Err: err})
		}
		return res
	}

	res.Prefix = c.NewPrefix()
	c.logger.Info("upload started", "prefix", res.Prefix, "files", len(accepted), "rejected", len(failed))

	failures := 0
	chunks := Chunk(accepted, c.ChunkSize)
	for i, chunk := range chunks {
		var stop error
		switch {
		case failures > c.MaxFailures:
			stop = ErrCircuitOpen
		case ctx.Err() != nil:
			stop = ctx.Err()
		}
		if stop != nil {
			for _, rest := range chunks[i:] {
				for _, f := range rest {
					res.Failed = append(res.Failed, Failure{Source: f, Reason: model.UploadFailure, Err: stop})
				}
			}
			c.logger.Warn("upload stopped", "prefix", res.Prefix, "failures", failures, "reason", stop)
			break
		}

		results := make([]fileResult, len(chunk))
		var wg sync.WaitGroup
		for j, f := range chunk {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ref, err := c.put(ctx, store, res.Prefix, f, onProgress)
				results[j] = fileResult{ref: ref, err: err}
			}()
		}
		wg.Wait()

		for j, r := range results {
			if r.err != nil {
				failures++
				c.logger.Debug("transfer failed", "file", chunk[j].Name(), "error", r.err)
				res.Failed = append(res.Failed, Failure{Source: chunk[j], Reason: model.UploadFailure, Err: r.err})
				continue
			}
			res.Succeeded = append(res.Succeeded, r.ref)
		}
	}

	c.logger.Info("upload finished", "prefix", res.Prefix,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
	return res
}

func (c *Coordinator) openStore(ctx context.Context) (objectstore.Store, error) {
	creds, err := c.creds.TempCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	store, err := c.stores(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentials, err)
	}
	return store, nil
}

func (c *Coordinator) put(ctx context.Context, store objectstore.Store, prefix string, f Source, onProgress ProgressFunc) (model.UploadRef, error) {
	t := &task{source: f, status: model.UploadPending}
	key := prefix + "/" + f.Name()

	if err := t.advance(model.UploadInProgress); err != nil {
		return model.UploadRef{}, err
	}
	emit := func(loaded, total int64) {
		if onProgress != nil {
			onProgress(model.ProgressSample{Key: key, BytesLoaded: loaded, BytesTotal: total})
		}
	}

	body, err := f.Open()
	if err != nil {
		t.advance(model.UploadFailed)
		return model.UploadRef{}, fmt.Errorf("open %s: %w", f.Name(), err)
	}
	defer body.Close()

	if err := store.Put(ctx, key, body, f.Size(), emit); err != nil {
		t.advance(model.UploadFailed)
		return model.UploadRef{}, err
	}
	if err := t.advance(model.UploadSucceeded); err != nil {
		return model.UploadRef{}, err
	}
	emit(f.Size(), f.Size())

	return model.UploadRef{RemoteKey: key, Name: f.Name(), Size: f.Size()}, nil
}

// task tracks the lifecycle of one file within a batch.
type task struct {
	source Source
	status model.UploadStatus
}

func (t *task) advance(next model.UploadStatus) error {
	if !t.status.CanTransitionTo(next) {
		return &model.InvalidTransitionError{Key: t.source.Name(), From: t.status, To: next}
	}
	t.status = next
	return nil
}
