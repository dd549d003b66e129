// Package workspace ties the local draft, the failed-upload list and the
// upload coordinator to the backend, the way the job form page does.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/internal/objectstore"
	"github.com/me/shennong/internal/schema"
	"github.com/me/shennong/internal/store"
	"github.com/me/shennong/internal/upload"
	"github.com/me/shennong/pkg/model"
)

// DefaultSchemaTTL is how long a cached processor schema is used before it
// is fetched again.
const DefaultSchemaTTL = 24 * time.Hour

// ErrNotFound is returned when a file or failure named by the caller is not
// in the workspace.
var ErrNotFound = errors.New("not found")

// Backend is the part of the API client the workspace uses.
type Backend interface {
	upload.CredentialSource
	SubmitJob(ctx context.Context, cfg model.JobConfig) error
	SchemaBytes(ctx context.Context) ([]byte, error)
	GetUserJob(ctx context.Context, userID, jobID int) (*model.Job, error)
}

// Workspace is the client-side state of one user's job submission.
type Workspace struct {
	store   store.Store
	backend Backend
	coord   *upload.Coordinator
	objects objectstore.Factory
	display *schema.Display
	logger  *slog.Logger

	// Email seeds a new draft.
	Email string
	// SchemaTTL bounds the age of the cached processor schema.
	SchemaTTL time.Duration
	Now       func() time.Time
}

// New creates a Workspace. The coordinator and objects must share the same
// object-store configuration.
func New(st store.Store, backend Backend, coord *upload.Coordinator, objects objectstore.Factory, logger *slog.Logger) *Workspace {
	return &Workspace{
		store:     st,
		backend:   backend,
		coord:     coord,
		objects:   objects,
		display:   schema.DefaultDisplay(),
		logger:    logger.With("component", "workspace"),
		SchemaTTL: DefaultSchemaTTL,
		Now:       time.Now,
	}
}

// Draft returns the saved draft, or a fresh one for Email.
func (w *Workspace) Draft(ctx context.Context) (draft.Draft, error) {
	d, err := w.store.GetDraft(ctx)
	if err != nil {
		return draft.Draft{}, fmt.Errorf("load draft: %w", err)
	}
	if d == nil {
		return draft.New(w.Email), nil
	}
	return *d, nil
}

// Dispatch applies an action to the saved draft and persists the result.
func (w *Workspace) Dispatch(ctx context.Context, a draft.Action) (draft.Draft, error) {
	d, err := w.Draft(ctx)
	if err != nil {
		return draft.Draft{}, err
	}
	next := draft.Reduce(d, a)
	if err := w.store.SaveDraft(ctx, next); err != nil {
		return draft.Draft{}, fmt.Errorf("save draft: %w", err)
	}
	w.logger.Debug("draft updated", "action", a.Type)
	return next, nil
}

// Failures lists uploads that failed and have not been retried or dismissed.
func (w *Workspace) Failures(ctx context.Context) ([]model.FailedUpload, error) {
	return w.store.ListFailures(ctx)
}

// DismissFailure removes a failed upload from the list without retrying it.
func (w *Workspace) DismissFailure(ctx context.Context, name string) error {
	ok, err := w.store.DeleteFailure(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed upload %q: %w", name, ErrNotFound)
	}
	return nil
}

// RemoveUploaded drops an uploaded file from the draft. With purge, the
// object is deleted from the bucket first; the draft is left untouched if
// that fails.
func (w *Workspace) RemoveUploaded(ctx context.Context, remoteKey string, purge bool) error {
	d, err := w.Draft(ctx)
	if err != nil {
		return err
	}
	p, ok := draft.RemoveFile(d, remoteKey)
	if !ok {
		return fmt.Errorf("uploaded file %q: %w", remoteKey, ErrNotFound)
	}

	if purge {
		creds, err := w.backend.TempCredentials(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", upload.ErrCredentials, err)
		}
		objects, err := w.objects(ctx, creds)
		if err != nil {
			return fmt.Errorf("%w: %w", upload.ErrCredentials, err)
		}
		if err := objects.Delete(ctx, remoteKey); err != nil {
			return err
		}
		w.logger.Info("object deleted", "key", remoteKey)
	}

	_, err = w.Dispatch(ctx, draft.Update(p))
	return err
}

// Submit validates the draft, posts it as a job and resets the draft.
// Validation problems come back as a 422 *model.APIError.
func (w *Workspace) Submit(ctx context.Context) (model.JobConfig, error) {
	d, err := w.Draft(ctx)
	if err != nil {
		return model.JobConfig{}, err
	}
	cfg, err := w.submit(ctx, d)
	if err != nil {
		return cfg, err
	}

	if _, err := w.Dispatch(ctx, draft.Clear()); err != nil {
		return cfg, err
	}
	if err := w.store.ReplaceFailures(ctx, nil); err != nil {
		return cfg, fmt.Errorf("clear failures: %w", err)
	}
	return cfg, nil
}

// SubmitConfig validates and posts cfg without touching the saved draft.
func (w *Workspace) SubmitConfig(ctx context.Context, cfg model.JobConfig) error {
	d := draft.FromConfig(cfg)
	_, err := w.submit(ctx, d)
	return err
}

// Validate checks d against the backend's rules and the current catalog.
func (w *Workspace) Validate(ctx context.Context, d draft.Draft) ([]model.FieldError, error) {
	cat, err := w.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return draft.Validate(d, cat), nil
}

func (w *Workspace) submit(ctx context.Context, d draft.Draft) (model.JobConfig, error) {
	problems, err := w.Validate(ctx, d)
	if err != nil {
		return model.JobConfig{}, err
	}
	if len(problems) > 0 {
		return model.JobConfig{}, model.NewValidationError("job is not valid", problems...)
	}

	cfg := d.Submittable()
	if err := w.backend.SubmitJob(ctx, cfg); err != nil {
		return cfg, err
	}
	w.logger.Info("job submitted", "files", len(cfg.Files), "analyses", len(cfg.Analyses))
	return cfg, nil
}

// PrefillFromJob loads a past job of userID into the draft so it can be
// modified and submitted again.
func (w *Workspace) PrefillFromJob(ctx context.Context, userID, jobID int) (draft.Draft, error) {
	job, err := w.backend.GetUserJob(ctx, userID, jobID)
	if err != nil {
		return draft.Draft{}, err
	}
	p, err := draft.FromJob(job)
	if err != nil {
		return draft.Draft{}, err
	}
	return w.Dispatch(ctx, draft.Update(p))
}
