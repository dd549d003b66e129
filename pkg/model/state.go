package model

// UploadStatus represents the lifecycle state of a single file upload.
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadInProgress UploadStatus = "in-progress"
	UploadSucceeded  UploadStatus = "succeeded"
	UploadFailed     UploadStatus = "failed"
)

// String returns the string representation of the upload status.
func (s UploadStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the upload has succeeded or failed.
// A failed upload is retried by creating a new pending task.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadSucceeded || s == UploadFailed
}

// ValidUploadTransitions defines the allowed state transitions for uploads.
var ValidUploadTransitions = map[UploadStatus][]UploadStatus{
	UploadPending:    {UploadInProgress, UploadFailed},
	UploadInProgress: {UploadSucceeded, UploadFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s UploadStatus) CanTransitionTo(next UploadStatus) bool {
	for _, allowed := range ValidUploadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FailureReason is the closed set of reasons an upload can fail for.
type FailureReason string

const (
	FileTooLarge      FailureReason = "FILE_TOO_LARGE"
	BatchTooLarge     FailureReason = "BATCH_TOO_LARGE"
	CredentialFailure FailureReason = "CREDENTIAL_FAILURE"
	UploadFailure     FailureReason = "UPLOAD_FAILURE"
)

// Message returns the user-facing explanation for the reason.
func (r FailureReason) Message() string {
	switch r {
	case FileTooLarge:
		return "The file exceeds 50MB maximum size. Please compress or split your samples into smaller files."
	case BatchTooLarge:
		return "The total file size of your jobs exceeds the 1GB maximum size. Please compress or split your samples into separate jobs."
	case CredentialFailure:
		return "Temporary storage credentials could not be fetched. Please try again."
	case UploadFailure:
		return "The file failed to upload. Please check your connection and try again."
	}
	return string(r)
}

// Retryable reports whether resubmitting the same file can succeed.
func (r FailureReason) Retryable() bool {
	return r == CredentialFailure || r == UploadFailure
}

// JobState is the task status reported by the processing queue.
type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateStarted JobState = "STARTED"
	JobStateRetry   JobState = "RETRY"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailure JobState = "FAILURE"
	JobStateRevoked JobState = "REVOKED"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in a final state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSuccess, JobStateFailure, JobStateRevoked:
		return true
	}
	return false
}
