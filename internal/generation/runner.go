package generation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sketchbot/internal/domain"
	"sketchbot/internal/replicate"
)

// Runner executes one job specification to a terminal result. A returned
// error means the outcome could not be determined (transport failure) and is
// fatal for the whole request; a failed job is a result, not an error.
type Runner interface {
	Run(ctx context.Context, spec domain.JobSpec) (domain.JobResult, error)
}

// PredictionAPI is the slice of the replicate client the runner needs.
type PredictionAPI interface {
	Create(ctx context.Context, input replicate.Input) (*replicate.Prediction, error)
	Wait(ctx context.Context, id string) (*replicate.Prediction, error)
}

// ReplicateRunner submits a job to the predictions API and blocks until it
// reaches a terminal status.
type ReplicateRunner struct {
	Client PredictionAPI
	Logger zerolog.Logger
}

func (r ReplicateRunner) Run(ctx context.Context, spec domain.JobSpec) (domain.JobResult, error) {
	input := replicate.Input{
		MainFaceImage:  spec.MainImageURL,
		NumSamples:     1,
		Seed:           spec.Seed,
		Prompt:         spec.Prompt,
		CfgScale:       spec.Scale,
		NegativePrompt: spec.NegativePrompt,
	}
	if len(spec.AuxImageURLs) > 0 {
		input.AuxiliaryFaceImage1 = spec.AuxImageURLs[0]
	}
	if len(spec.AuxImageURLs) > 1 {
		input.AuxiliaryFaceImage2 = spec.AuxImageURLs[1]
	}
	if len(spec.AuxImageURLs) > 2 {
		input.AuxiliaryFaceImage3 = spec.AuxImageURLs[2]
	}

	prediction, err := r.Client.Create(ctx, input)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("submit job %d: %w", spec.Index, err)
	}

	r.Logger.Debug().
		Str("prediction_id", prediction.ID).
		Int("job_index", spec.Index).
		Int64("seed", spec.Seed).
		Msg("job submitted")

	prediction, err = r.Client.Wait(ctx, prediction.ID)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("await job %d: %w", spec.Index, err)
	}

	result := domain.JobResult{
		Index: spec.Index,
		Seed:  spec.Seed,
		Error: prediction.Error,
	}
	switch prediction.Status {
	case replicate.StatusSucceeded:
		result.Status = domain.JobStatusSucceeded
		result.Outputs = prediction.Output
		result.PredictTime = prediction.Metrics.PredictTime
	case replicate.StatusCanceled:
		result.Status = domain.JobStatusCanceled
	default:
		result.Status = domain.JobStatusFailed
	}
	return result, nil
}
