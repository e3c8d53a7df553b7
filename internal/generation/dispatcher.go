package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"sketchbot/internal/domain"
)

// Reply is one outbound message handed to the chat collaborator: a caption,
// an optional binary file, and an optional rich-embed description.
type Reply struct {
	Content          string
	FileName         string
	FileData         []byte
	EmbedDescription string
}

// Sender delivers replies to wherever the triggering command came from.
type Sender interface {
	Send(ctx context.Context, reply Reply) error
}

// Dispatcher downloads the artifacts of billed jobs and emits one reply per
// artifact, preserving per-job and per-artifact order.
type Dispatcher struct {
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func NewDispatcher(httpClient *http.Client, logger zerolog.Logger) *Dispatcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Dispatcher{HTTPClient: httpClient, Logger: logger}
}

// Dispatch sends every artifact of every delivery. mention names the
// requesting user in the caption; opts supplies the expanded prompt and
// scale shown alongside each image.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, mention string, opts domain.GenerateOptions, deliveries []Delivery) error {
	for _, delivery := range deliveries {
		caption := fmt.Sprintf("🧠%s 🌱`%d` ⚖️`%g` 🪙%d/%d",
			mention, delivery.Spec.Seed, opts.Scale, delivery.Cost, delivery.Remaining)

		for artifactIdx, url := range delivery.Result.Outputs {
			data, err := d.fetch(ctx, url)
			if err != nil {
				return fmt.Errorf("fetch artifact %d of job %d: %w", artifactIdx, delivery.Spec.Index, err)
			}
			reply := Reply{
				Content:          caption,
				FileName:         fmt.Sprintf("image_%d_%d.webp", delivery.Spec.Index, artifactIdx),
				FileData:         data,
				EmbedDescription: opts.Prompt,
			}
			if err := sender.Send(ctx, reply); err != nil {
				return fmt.Errorf("deliver artifact %d of job %d: %w", artifactIdx, delivery.Spec.Index, err)
			}
			d.Logger.Info().
				Str("file", reply.FileName).
				Int64("cost", delivery.Cost).
				Int64("remaining", delivery.Remaining).
				Msg("artifact delivered")
		}
	}
	return nil
}

func (d *Dispatcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
