package model

// Job is a user task as returned by /api/users/{id}/tasks.
type Job struct {
	ID         int       `json:"id"`
	Created    string    `json:"created"`
	TaskmetaID string    `json:"taskmeta_id"`
	TaskInfo   *TaskInfo `json:"task_info"`
	UserID     int       `json:"user_id"`
	CanRetry   bool      `json:"can_retry,omitempty"`
	Taskmeta   *Taskmeta `json:"taskmeta,omitempty"`
	User       *User     `json:"user,omitempty"`
}

// State returns the queue state, PENDING when the queue has not reported yet.
func (j *Job) State() JobState {
	if j.TaskInfo == nil || j.TaskInfo.Status == "" {
		return JobStatePending
	}
	return j.TaskInfo.Status
}

// TaskInfo is the processing queue's record of a job.
type TaskInfo struct {
	ID        int      `json:"id"`
	TaskID    string   `json:"task_id"`
	Status    JobState `json:"status"`
	Result    any      `json:"result"`
	DateDone  string   `json:"date_done"`
	Traceback *string  `json:"traceback"`
}

// Taskmeta carries the arguments a job was queued with; present on job detail.
type Taskmeta struct {
	Kwargs *TaskKwargs `json:"kwargs,omitempty"`
}

// TaskKwargs wraps the job configuration the job was queued with.
type TaskKwargs struct {
	Config JobConfig `json:"config"`
}
