package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	falAIRunURL          = "https://fal.run"
	falAIQueueURL        = "https://queue.fal.run"
	falAIRequestIDHeader = "x-fal-request-id"
	defaultPollInterval  = time.Second
)

// FalAIProvider implements the ImageProvider for fal.ai.
type FalAIProvider struct {
	APIKey string
	Client *http.Client

	// RunURL and QueueURL are the base addresses of the synchronous and queue APIs.
	RunURL   string
	QueueURL string
	// UseQueue submits through the queue API and polls for completion.
	UseQueue     bool
	PollInterval time.Duration
}

// NewFalAIProvider creates a new fal.ai client that submits through the queue.
func NewFalAIProvider(apiKey string) *FalAIProvider {
	return &FalAIProvider{
		APIKey:       apiKey,
		Client:       &http.Client{},
		RunURL:       falAIRunURL,
		QueueURL:     falAIQueueURL,
		UseQueue:     true,
		PollInterval: defaultPollInterval,
	}
}

// GetName returns the name of the provider.
func (p *FalAIProvider) GetName() string {
	return "fal_ai"
}

type falAIQueueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type falAIQueueStatusResponse struct {
	Status        QueueStatus `json:"status"`
	QueuePosition int         `json:"queue_position"`
	ResponseURL   string      `json:"response_url"`
	Logs          []LogLine   `json:"logs"`
}

// Submit sends input to the fal endpoint and returns the generated images.
// A failed submission is returned immediately, never retried.
func (p *FalAIProvider) Submit(ctx context.Context, endpoint string, input map[string]any, onUpdate UpdateFunc) (*Output, error) {
	log.Printf("Calling provider '%s' with model '%s'", p.GetName(), endpoint)
	log.Printf("Request payload: \n%s", logPayload(input))

	payloadBytes, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("fal_ai: failed to marshal payload: %w", err)
	}

	if !p.UseQueue {
		return p.run(ctx, endpoint, payloadBytes)
	}
	return p.subscribe(ctx, endpoint, payloadBytes, onUpdate)
}

func (p *FalAIProvider) run(ctx context.Context, endpoint string, payload []byte) (*Output, error) {
	resp, body, err := p.do(ctx, http.MethodPost, joinURL(p.RunURL, endpoint), payload)
	if err != nil {
		return nil, err
	}
	return p.decodeOutput(body, resp.Header.Get(falAIRequestIDHeader))
}

func (p *FalAIProvider) subscribe(ctx context.Context, endpoint string, payload []byte, onUpdate UpdateFunc) (*Output, error) {
	_, body, err := p.do(ctx, http.MethodPost, joinURL(p.QueueURL, endpoint), payload)
	if err != nil {
		return nil, err
	}

	var submitted falAIQueueSubmitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return nil, p.malformed("queue submit", err)
	}
	if submitted.RequestID == "" {
		return nil, &APIError{Provider: p.GetName(), StatusCode: http.StatusBadGateway, Message: "did not receive a request ID"}
	}
	if submitted.StatusURL == "" {
		submitted.StatusURL = joinURL(p.QueueURL, endpoint, "requests", submitted.RequestID, "status")
	}
	if submitted.ResponseURL == "" {
		submitted.ResponseURL = joinURL(p.QueueURL, endpoint, "requests", submitted.RequestID)
	}
	log.Printf("fal_ai: request submitted, request_id: %s", submitted.RequestID)
	notify(onUpdate, QueueUpdate{RequestID: submitted.RequestID, Status: StatusInQueue})

	responseURL, err := p.waitForCompletion(ctx, submitted, onUpdate)
	if err != nil {
		return nil, err
	}

	_, body, err = p.do(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return nil, err
	}
	return p.decodeOutput(body, submitted.RequestID)
}

// waitForCompletion polls the status URL until the job completes and returns the result URL.
func (p *FalAIProvider) waitForCompletion(ctx context.Context, job falAIQueueSubmitResponse, onUpdate UpdateFunc) (string, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	statusURL := job.StatusURL + "?logs=1"
	if strings.Contains(job.StatusURL, "?") {
		statusURL = job.StatusURL + "&logs=1"
	}

	seenLogs := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", NormalizeError(http.StatusGatewayTimeout, nil, ctx.Err(), DefaultGenerationMessage)
		case <-timer.C:
		}

		_, body, err := p.do(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return "", err
		}
		var status falAIQueueStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return "", p.malformed("queue status", err)
		}

		update := QueueUpdate{RequestID: job.RequestID, Status: status.Status, Position: status.QueuePosition}
		if len(status.Logs) > seenLogs {
			update.Logs = status.Logs[seenLogs:]
			seenLogs = len(status.Logs)
		}
		notify(onUpdate, update)

		if status.Status == StatusCompleted {
			if status.ResponseURL != "" {
				return status.ResponseURL, nil
			}
			return job.ResponseURL, nil
		}
		timer.Reset(interval)
	}
}

// do performs one request and returns the body of a 2xx response. Any other
// outcome becomes a normalized *APIError.
func (p *FalAIProvider) do(ctx context.Context, method, url string, payload []byte) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, fmt.Errorf("fal_ai: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+p.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		apiErr := NormalizeError(0, nil, err, DefaultGenerationMessage)
		apiErr.Provider = p.GetName()
		return nil, nil, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := NormalizeError(resp.StatusCode, nil, err, DefaultGenerationMessage)
		apiErr.Provider = p.GetName()
		return nil, nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("fal_ai: %s %s returned status %d, body: %s", method, url, resp.StatusCode, string(respBody))
		apiErr := NormalizeError(resp.StatusCode, respBody, nil, DefaultGenerationMessage)
		apiErr.Provider = p.GetName()
		return nil, nil, apiErr
	}
	return resp, respBody, nil
}

func (p *FalAIProvider) decodeOutput(body []byte, requestID string) (*Output, error) {
	var out Output
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, p.malformed("result", err)
	}
	out.Provider = p.GetName()
	out.RequestID = requestID
	return &out, nil
}

func (p *FalAIProvider) malformed(what string, err error) error {
	return &APIError{
		Provider:   p.GetName(),
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("failed to decode %s response", what),
		Cause:      err,
	}
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, part := range parts {
		out += "/" + strings.Trim(part, "/")
	}
	return out
}
