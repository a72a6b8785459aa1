package queue

import "strings"

// Status represents the lifecycle of a separation job.
type Status string

const (
	// StatusNone is reported for ids without a status row. It is never stored.
	StatusNone Status = "NONE"
	// StatusPending marks a job that is queued and awaiting the worker.
	StatusPending Status = "PENDING"
	// StatusProcessing marks a job claimed by the worker with the engine running.
	StatusProcessing Status = "PROCESSING"
	// StatusFinished marks a successful separation with artifacts available.
	StatusFinished Status = "FINISHED"
	// StatusError marks a failed separation. No artifacts are guaranteed.
	StatusError Status = "ERROR"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusFinished,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of storable statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a storable Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Valid reports whether the status is one of the storable values.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// InFlight reports whether a job with this status is queued or running.
// In-flight jobs block cleanup.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// QueuedJob is a claimed queue row: the job id plus the model name
// requested at admission, which may be empty.
type QueuedJob struct {
	ID    string
	Model string
}

// JobStatus pairs a job id with its stored status.
type JobStatus struct {
	ID     string
	Status Status
}
