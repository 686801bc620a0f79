package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-duet/debug"
)

// Remote talks to an external continuation server over HTTP. The server
// is opaque: POST a seed sequence, get a continuation back.
type Remote struct {
	baseURL string
	http    *http.Client
}

// NewRemote creates a client for the given base URL (no trailing slash).
func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type continueRequest struct {
	Sequence    Sequence `json:"inputSequence"`
	Steps       int      `json:"steps"`
	Temperature float64  `json:"temperature"`
}

type continueResponse struct {
	Sequence Sequence `json:"sequence"`
	Error    string   `json:"error,omitempty"`
}

// Initialize polls the server's health endpoint until it answers or ctx
// expires. Callers bound the wait with a context deadline.
func (r *Remote) Initialize(ctx context.Context) error {
	for {
		req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("health request: %w", err)
		}
		resp, err := r.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		debug.Log("model", "health check failed, retrying: %v", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("model server never became healthy: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}

// ContinueSequence submits the seed and returns the server's continuation.
// A single failed call is an error; there is no retry here.
func (r *Remote) ContinueSequence(ctx context.Context, seed Sequence, steps int, temperature float64) (Sequence, error) {
	body, err := json.Marshal(continueRequest{
		Sequence:    seed,
		Steps:       steps,
		Temperature: temperature,
	})
	if err != nil {
		return Sequence{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/v1/continue", bytes.NewReader(body))
	if err != nil {
		return Sequence{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return Sequence{}, fmt.Errorf("continue sequence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sequence{}, fmt.Errorf("continue sequence: server returned %s", resp.Status)
	}

	var out continueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Sequence{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return Sequence{}, fmt.Errorf("continue sequence: %s", out.Error)
	}
	return out.Sequence, nil
}
