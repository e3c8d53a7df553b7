package domain

// JobStatus enumerates terminal states reported by the inference service.
type JobStatus string

const (
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// GenerateOptions is the request-scoped option set parsed from the raw
// command arguments. Prompt is the cleaned, wildcard-expanded text.
type GenerateOptions struct {
	Prompt         string
	NegativePrompt string
	Seed           int64
	Scale          float64
	NumGenerations int
}

// JobSpec describes one generation submitted to the inference service. Seed
// is BaseSeed+Index so a batch yields distinct but reproducible outputs.
type JobSpec struct {
	Index          int
	Seed           int64
	Prompt         string
	NegativePrompt string
	Scale          float64
	MainImageURL   string
	AuxImageURLs   []string // up to three auxiliary references
}

// JobResult is the terminal outcome of one job. Failed jobs carry no outputs
// and are never billed.
type JobResult struct {
	Index       int
	Seed        int64
	Status      JobStatus
	Outputs     []string
	PredictTime float64 // seconds of measured compute
	Error       string
}

// Succeeded reports whether the job finished with billable output.
func (r JobResult) Succeeded() bool {
	return r.Status == JobStatusSucceeded
}
