package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/me/shennong/internal/draft"
	"github.com/me/shennong/internal/upload"
	"github.com/me/shennong/pkg/model"
)

// UploadFiles uploads local files and records the outcome: succeeded files
// are appended to the draft and failures replace the stored failure list
// entries of the same name. Stored failures for files the draft already
// holds are cleared.
func (w *Workspace) UploadFiles(ctx context.Context, paths []string, onProgress upload.ProgressFunc) (upload.Result, error) {
	sources := make([]upload.Source, 0, len(paths))
	for _, p := range paths {
		f, err := upload.OpenFile(p)
		if err != nil {
			return upload.Result{}, err
		}
		sources = append(sources, f)
	}
	return w.run(ctx, sources, onProgress)
}

// RetryFailed uploads stored failures again. An empty names retries all of
// them.
func (w *Workspace) RetryFailed(ctx context.Context, names []string, onProgress upload.ProgressFunc) (upload.Result, error) {
	failures, err := w.store.ListFailures(ctx)
	if err != nil {
		return upload.Result{}, err
	}
	byName := make(map[string]model.FailedUpload, len(failures))
	for _, f := range failures {
		byName[f.Name] = f
	}

	var selected []model.FailedUpload
	if len(names) == 0 {
		selected = failures
	}
	for _, n := range names {
		f, ok := byName[n]
		if !ok {
			return upload.Result{}, fmt.Errorf("failed upload %q: %w", n, ErrNotFound)
		}
		selected = append(selected, f)
	}

	sources := make([]upload.Source, 0, len(selected))
	for _, f := range selected {
		// Pick up the current size if the file is still there; otherwise the
		// open inside the transfer fails and is reported as a failure.
		if file, err := upload.OpenFile(f.Path); err == nil {
			sources = append(sources, file)
			continue
		}
		sources = append(sources, recordSource{f})
	}
	return w.run(ctx, sources, onProgress)
}

func (w *Workspace) run(ctx context.Context, sources []upload.Source, onProgress upload.ProgressFunc) (upload.Result, error) {
	d, err := w.Draft(ctx)
	if err != nil {
		return upload.Result{}, err
	}
	previous, err := w.store.ListFailures(ctx)
	if err != nil {
		return upload.Result{}, err
	}

	res := w.coord.Upload(ctx, sources, d.Files, onProgress)

	// The batch may have been cut short by ctx; its outcome is recorded anyway.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if len(res.Succeeded) > 0 {
		// Reload: the draft may have changed while the batch ran.
		current, err := w.Draft(ctx)
		if err == nil {
			current, err = w.Dispatch(ctx, draft.Update(draft.AppendFiles(current, res.Succeeded)))
		}
		if err != nil {
			errs = append(errs, err)
		} else {
			d = current
		}
	}

	merged := upload.MergeFailures(toFailures(previous), res, d.Files)
	if err := w.store.ReplaceFailures(ctx, w.toRecords(merged)); err != nil {
		errs = append(errs, fmt.Errorf("save failures: %w", err))
	}
	return res, errors.Join(errs...)
}

// recordSource is a stored failure whose file could not be found again.
type recordSource struct {
	rec model.FailedUpload
}

func (r recordSource) Name() string { return r.rec.Name }
func (r recordSource) Size() int64  { return r.rec.Size }

func (r recordSource) Open() (io.ReadCloser, error) {
	return os.Open(r.rec.Path)
}

func toFailures(records []model.FailedUpload) []upload.Failure {
	out := make([]upload.Failure, len(records))
	for i, rec := range records {
		out[i] = upload.Failure{Source: recordSource{rec}, Reason: rec.Reason}
	}
	return out
}

// toRecords converts failures back to stored records. Entries carried over
// unchanged keep their original timestamp and message.
func (w *Workspace) toRecords(failures []upload.Failure) []model.FailedUpload {
	now := w.Now().UTC()
	out := make([]model.FailedUpload, len(failures))
	for i, f := range failures {
		if rs, ok := f.Source.(recordSource); ok && f.Err == nil && rs.rec.Reason == f.Reason {
			out[i] = rs.rec
			continue
		}
		rec := model.FailedUpload{
			Name:      f.Name(),
			Path:      sourcePath(f.Source),
			Size:      f.Source.Size(),
			Reason:    f.Reason,
			CreatedAt: now,
		}
		if f.Err != nil {
			rec.Error = f.Err.Error()
		}
		out[i] = rec
	}
	return out
}

func sourcePath(s upload.Source) string {
	switch v := s.(type) {
	case *upload.File:
		return v.Path
	case recordSource:
		return v.rec.Path
	}
	return s.Name()
}
