package model

import (
	"sort"
	"time"
)

// UploadRef is a file that has been stored successfully in the object store.
type UploadRef struct {
	RemoteKey string `json:"remote_key"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
}

// ProgressSample is a single progress observation for one in-flight upload.
type ProgressSample struct {
	Key         string `json:"key"`
	BytesLoaded int64  `json:"bytes_loaded"`
	BytesTotal  int64  `json:"bytes_total"`
}

// JobConfig is the payload accepted by POST /api/shennong-job.
type JobConfig struct {
	Channel  int                          `json:"channel"`
	Email    string                       `json:"email"`
	Files    []string                     `json:"files"`
	Res      string                       `json:"res"`
	Analyses map[string]AnalysisSelection `json:"analyses"`
}

// AnalysisSelection is the configuration of one enabled analysis.
type AnalysisSelection struct {
	InitArgs       map[string]any `json:"init_args"`
	Postprocessors []string       `json:"postprocessors"`
}

// Clone returns a deep copy so callers can build patches without aliasing
// the current draft.
func (a AnalysisSelection) Clone() AnalysisSelection {
	out := AnalysisSelection{
		InitArgs:       make(map[string]any, len(a.InitArgs)),
		Postprocessors: append([]string{}, a.Postprocessors...),
	}
	for k, v := range a.InitArgs {
		out.InitArgs[k] = v
	}
	return out
}

// HasPostprocessor reports whether name is among the chosen postprocessors.
func (a AnalysisSelection) HasPostprocessor(name string) bool {
	for _, p := range a.Postprocessors {
		if p == name {
			return true
		}
	}
	return false
}

// WithPostprocessor returns a copy with name added or removed. The set is
// kept sorted and free of duplicates.
func (a AnalysisSelection) WithPostprocessor(name string, enabled bool) AnalysisSelection {
	out := a.Clone()
	set := make(map[string]struct{}, len(out.Postprocessors)+1)
	for _, p := range out.Postprocessors {
		set[p] = struct{}{}
	}
	if enabled {
		set[name] = struct{}{}
	} else {
		delete(set, name)
	}
	out.Postprocessors = make([]string, 0, len(set))
	for p := range set {
		out.Postprocessors = append(out.Postprocessors, p)
	}
	sort.Strings(out.Postprocessors)
	return out
}

// TempCredentials are the short-lived object-store credentials returned by
// GET /api/temp-creds.
type TempCredentials struct {
	AccessKeyID     string    `json:"AccessKeyId"`
	SecretAccessKey string    `json:"SecretAccessKey"`
	SessionToken    string    `json:"SessionToken"`
	Expiration      time.Time `json:"Expiration"`
}

// Expired reports whether the credentials are no longer usable at now.
// Credentials without an expiration never expire.
func (c TempCredentials) Expired(now time.Time) bool {
	return !c.Expiration.IsZero() && !now.Before(c.Expiration)
}

// FailedUpload is a failed upload kept in the workspace so it can be
// retried later.
type FailedUpload struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Size      int64         `json:"size"`
	Reason    FailureReason `json:"reason"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
