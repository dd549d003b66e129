package upload

import (
	"errors"

	"github.com/me/shennong/pkg/model"
)

var (
	// ErrCircuitOpen marks files that were not attempted because too many
	// transfers in the batch had already failed.
	ErrCircuitOpen = errors.New("upload stopped after repeated failures")
	// ErrCredentials wraps the error from fetching temporary credentials.
	ErrCredentials = errors.New("fetch storage credentials")
)

// Failure is a file that was not uploaded.
type Failure struct {
	Source Source
	Reason model.FailureReason
	// Err is the underlying cause for credential and transfer failures.
	Err error
}

// Name returns the file name of the failed source.
func (f Failure) Name() string {
	return f.Source.Name()
}

// Message returns the user-facing explanation.
func (f Failure) Message() string {
	return f.Reason.Message()
}

// Result partitions every file passed to an upload call.
type Result struct {
	// Prefix is the key prefix shared by this batch's objects; empty when
	// nothing was transferred.
	Prefix    string
	Succeeded []model.UploadRef
	Failed    []Failure
}

// MergeFailures updates a running list of failures with the outcome of an
// upload call: earlier failures for succeeded files, or for names already
// among uploaded, drop out of the list, and each new failure replaces an
// earlier one for the same name or is appended.
func MergeFailures(previous []Failure, res Result, uploaded []model.UploadRef) []Failure {
	succeeded := make(map[string]struct{}, len(res.Succeeded)+len(uploaded))
	for _, s := range res.Succeeded {
		succeeded[s.Name] = struct{}{}
	}
	for _, u := range uploaded {
		succeeded[u.Name] = struct{}{}
	}

	merged := make([]Failure, 0, len(previous)+len(res.Failed))
	index := make(map[string]int, len(previous))
	for _, f := range previous {
		if _, ok := succeeded[f.Name()]; ok {
			continue
		}
		index[f.Name()] = len(merged)
		merged = append(merged, f)
	}
	for _, f := range res.Failed {
		if i, ok := index[f.Name()]; ok {
			merged[i] = f
			continue
		}
		index[f.Name()] = len(merged)
		merged = append(merged, f)
	}
	return merged
}
