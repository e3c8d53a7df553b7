package replicate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, polls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			if got := r.Header.Get("Authorization"); got != "Token r8_test" {
				t.Errorf("Authorization = %q", got)
			}
			var payload struct {
				Version string `json:"version"`
				Input   Input  `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode create payload: %v", err)
			}
			if payload.Version != "v123" {
				t.Errorf("version = %q, want v123", payload.Version)
			}
			if payload.Input.NumSamples != 1 {
				t.Errorf("num_samples = %d, want 1", payload.Input.NumSamples)
			}
			json.NewEncoder(w).Encode(Prediction{ID: "p1", Status: StatusStarting})

		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			if polls.Add(1) < 3 {
				json.NewEncoder(w).Encode(Prediction{ID: "p1", Status: StatusProcessing})
				return
			}
			json.NewEncoder(w).Encode(Prediction{
				ID:      "p1",
				Status:  StatusSucceeded,
				Output:  []string{"https://cdn.example.com/out.webp"},
				Metrics: Metrics{PredictTime: 3.25},
			})

		default:
			http.NotFound(w, r)
		}
	}))
}

func TestCreateAndWait(t *testing.T) {
	var polls atomic.Int32
	server := newTestServer(t, &polls)
	defer server.Close()

	client := NewClient(Options{
		BaseURL:      server.URL,
		Token:        "r8_test",
		Model:        "zsxkib/pulid",
		Version:      "v123",
		PollInterval: time.Millisecond,
	})

	prediction, err := client.Create(context.Background(), Input{
		MainFaceImage: "https://example.com/face.png",
		NumSamples:    1,
		Seed:          42,
		Prompt:        "cat",
		CfgScale:      1.2,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if prediction.ID != "p1" || prediction.Terminal() {
		t.Fatalf("Create = %+v, want non-terminal p1", prediction)
	}

	prediction, err = client.Wait(context.Background(), prediction.ID)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if prediction.Status != StatusSucceeded {
		t.Fatalf("status = %q, want succeeded", prediction.Status)
	}
	if prediction.Metrics.PredictTime != 3.25 {
		t.Fatalf("predict_time = %v, want 3.25", prediction.Metrics.PredictTime)
	}
	if len(prediction.Output) != 1 {
		t.Fatalf("output = %#v, want one artifact", prediction.Output)
	}
	if polls.Load() < 3 {
		t.Fatalf("polled %d times, want at least 3", polls.Load())
	}
}

func TestWaitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Prediction{ID: "p1", Status: StatusProcessing})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, Token: "r8_test", PollInterval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Wait(ctx, "p1"); err == nil {
		t.Fatalf("Wait returned nil error on canceled context")
	}
}

func TestCreateSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(errorResponse{Detail: "version does not exist"})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, Token: "r8_test"})

	_, err := client.Create(context.Background(), Input{NumSamples: 1})
	if err == nil {
		t.Fatalf("Create returned nil error")
	}
	if !strings.Contains(err.Error(), "version does not exist") {
		t.Fatalf("error %q does not carry the API detail", err)
	}
}

func TestCreateRequiresToken(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Create(context.Background(), Input{}); err == nil {
		t.Fatalf("Create succeeded without a token")
	}
}
