package upload

import "github.com/me/shennong/pkg/model"

// Limits applied before any transfer is attempted.
const (
	MaxFileSize  int64 = 50 << 20
	MaxBatchSize int64 = 1 << 30
)

// Prefilter applies the size and duplicate policy to files, in order:
// files over MaxFileSize are rejected; files whose name is already among
// uploaded, or was accepted earlier in files, are dropped silently; the rest
// are accepted while the running total, starting from the size of uploaded,
// stays within MaxBatchSize.
// A file that would cross the limit is rejected and later files are still
// considered.
func Prefilter(files []Source, uploaded []model.UploadRef) (accepted []Source, failed []Failure) {
	names := make(map[string]struct{}, len(uploaded))
	var total int64
	for _, u := range uploaded {
		names[u.Name] = struct{}{}
		total += u.Size
	}

	for _, f := range files {
		if f.Size() > MaxFileSize {
			failed = append(failed, Failure{Source: f, Reason: model.FileTooLarge})
			continue
		}
		if _, dup := names[f.Name()]; dup {
			continue
		}
		if total+f.Size() > MaxBatchSize {
			failed = append(failed, Failure{Source: f, Reason: model.BatchTooLarge})
			continue
		}
		names[f.Name()] = struct{}{}
		total += f.Size()
		accepted = append(accepted, f)
	}
	return accepted, failed
}

// Chunk splits items into consecutive groups of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
