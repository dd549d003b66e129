// Package draft holds the in-progress job configuration and the pure reducer
// that is the only way to change it.
package draft

import (
	"fmt"

	"github.com/me/shennong/pkg/model"
)

// Defaults for a fresh draft.
const (
	DefaultChannel = 1
	DefaultRes     = ".pkl"
)

// Draft is the job configuration being assembled before submission.
type Draft struct {
	Channel  int                                `json:"channel"`
	Email    string                             `json:"email"`
	Res      string                             `json:"res"`
	Files    []model.UploadRef                  `json:"files"`
	Analyses map[string]model.AnalysisSelection `json:"analyses"`
}

// New returns an empty draft addressed to email.
func New(email string) Draft {
	return Draft{
		Channel:  DefaultChannel,
		Email:    email,
		Res:      DefaultRes,
		Files:    []model.UploadRef{},
		Analyses: map[string]model.AnalysisSelection{},
	}
}

// ActionType names a reducer action.
type ActionType string

const (
	ActionUpdate ActionType = "update"
	ActionClear  ActionType = "clear"
)

// Patch is a partial draft. Nil fields are left untouched; non-nil fields
// replace the current value wholesale, including the nested Analyses map.
type Patch struct {
	Channel  *int
	Email    *string
	Res      *string
	Files    []model.UploadRef
	Analyses map[string]model.AnalysisSelection
}

// Action is a reducer input.
type Action struct {
	Type    ActionType
	Payload Patch
}

// Update wraps p in an update action.
func Update(p Patch) Action {
	return Action{Type: ActionUpdate, Payload: p}
}

// Clear returns a clear action.
func Clear() Action {
	return Action{Type: ActionClear}
}

// Reduce applies a to s and returns the new draft. s is not modified.
// An unknown action type is a programming error and panics.
func Reduce(s Draft, a Action) Draft {
	switch a.Type {
	case ActionUpdate:
		return merge(s, a.Payload)
	case ActionClear:
		return New(s.Email)
	}
	panic(fmt.Sprintf("draft: unknown action type %q", a.Type))
}

func merge(s Draft, p Patch) Draft {
	if p.Channel != nil {
		s.Channel = *p.Channel
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Res != nil {
		s.Res = *p.Res
	}
	if p.Files != nil {
		s.Files = p.Files
	}
	if p.Analyses != nil {
		s.Analyses = p.Analyses
	}
	return s
}

// Submittable converts the draft into the payload posted to the backend.
// Files are sent as their remote keys.
func (d Draft) Submittable() model.JobConfig {
	files := make([]string, len(d.Files))
	for i, f := range d.Files {
		files[i] = f.RemoteKey
	}
	analyses := make(map[string]model.AnalysisSelection, len(d.Analyses))
	for k, v := range d.Analyses {
		analyses[k] = v.Clone()
	}
	return model.JobConfig{
		Channel:  d.Channel,
		Email:    d.Email,
		Files:    files,
		Res:      d.Res,
		Analyses: analyses,
	}
}

// FromConfig builds a draft from a job payload, for example one read from a
// job file. File sizes are unknown and recorded as zero.
func FromConfig(cfg model.JobConfig) Draft {
	return Draft{
		Channel:  cfg.Channel,
		Email:    cfg.Email,
		Res:      cfg.Res,
		Files:    refsFromKeys(cfg.Files),
		Analyses: cloneAnalyses(cfg.Analyses),
	}
}

// UploadedNames returns the original names of the draft's files, used to skip
// re-selected files.
func (d Draft) UploadedNames() map[string]struct{} {
	names := make(map[string]struct{}, len(d.Files))
	for _, f := range d.Files {
		names[f.Name] = struct{}{}
	}
	return names
}

// UploadedBytes is the total size of the draft's files.
func (d Draft) UploadedBytes() int64 {
	var n int64
	for _, f := range d.Files {
		n += f.Size
	}
	return n
}
