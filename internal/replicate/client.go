package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

type Options struct {
	BaseURL      string
	Token        string
	Model        string
	Version      string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// Client talks to a Replicate-style predictions API: create a prediction for
// a pinned model version, then poll it until a terminal status.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	model        string
	version      string
	pollInterval time.Duration
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Client{
		httpClient:   client,
		baseURL:      base,
		token:        strings.TrimSpace(opts.Token),
		model:        opts.Model,
		version:      opts.Version,
		pollInterval: interval,
	}
}

// ModelRef returns the named model and pinned version, for logs.
func (c *Client) ModelRef() string {
	return c.model + ":" + c.version
}

// Input is the model payload for one prediction. NumSamples stays 1; the
// caller controls batch size and seeds on its side.
type Input struct {
	MainFaceImage       string  `json:"main_face_image"`
	AuxiliaryFaceImage1 string  `json:"auxiliary_face_image1,omitempty"`
	AuxiliaryFaceImage2 string  `json:"auxiliary_face_image2,omitempty"`
	AuxiliaryFaceImage3 string  `json:"auxiliary_face_image3,omitempty"`
	NumSamples          int     `json:"num_samples"`
	Seed                int64   `json:"seed"`
	Prompt              string  `json:"prompt"`
	CfgScale            float64 `json:"cfg_scale"`
	NegativePrompt      string  `json:"negative_prompt"`
}

// Metrics carries the measured compute time used for billing.
type Metrics struct {
	PredictTime float64 `json:"predict_time"`
}

type Prediction struct {
	ID      string   `json:"id"`
	Version string   `json:"version"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Error   string   `json:"error"`
	Metrics Metrics  `json:"metrics"`
}

// Terminal reports whether the prediction has reached a final status.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Create submits a prediction for the client's pinned model version.
func (c *Client) Create(ctx context.Context, input Input) (*Prediction, error) {
	if c.token == "" {
		return nil, errors.New("replicate: API token is missing")
	}
	payload := struct {
		Version string `json:"version"`
		Input   Input  `json:"input"`
	}{Version: c.version, Input: input}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	return c.do(req)
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)

	return c.do(req)
}

// Wait polls a prediction until it reaches a terminal status or the context
// is canceled. A prediction can run for seconds to tens of seconds.
func (c *Client) Wait(ctx context.Context, id string) (*Prediction, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		prediction, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if prediction.Terminal() {
			return prediction, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("replicate: %s (http %d)", apiErr.Detail, resp.StatusCode)
		}
		return nil, fmt.Errorf("replicate: http %d", resp.StatusCode)
	}

	var prediction Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	if prediction.ID == "" {
		return nil, errors.New("replicate: response missing prediction id")
	}
	return &prediction, nil
}
