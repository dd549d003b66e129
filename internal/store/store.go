package store

import (
	"context"
	"time"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/pkg/model"
)

// Store persists the local workspace: the job draft, failed uploads awaiting
// retry, and the last processor schema fetched.
type Store interface {
	// Draft
	GetDraft(ctx context.Context) (*draft.Draft, error)
	SaveDraft(ctx context.Context, d draft.Draft) error

	// Failed uploads
	ListFailures(ctx context.Context) ([]model.FailedUpload, error)
	ReplaceFailures(ctx context.Context, failures []model.FailedUpload) error
	DeleteFailure(ctx context.Context, name string) (bool, error)

	// Processor schema cache
	GetSchema(ctx context.Context) ([]byte, time.Time, error)
	SaveSchema(ctx context.Context, body []byte) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
