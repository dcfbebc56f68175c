package providers

import "context"

// Image is one generated image as reported by a provider.
type Image struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

// Output is the provider-independent result of a generation job.
type Output struct {
	Provider  string  `json:"-"`
	RequestID string  `json:"-"`
	Images    []Image `json:"images"`
	Seed      int64   `json:"seed"`
}

// First returns the first generated image. A job that produced no images is a
// failure even though the transport call succeeded.
func (o *Output) First() (Image, error) {
	if o == nil || len(o.Images) == 0 {
		e := &EmptyResultError{}
		if o != nil {
			e.Provider, e.RequestID = o.Provider, o.RequestID
		}
		return Image{}, e
	}
	return o.Images[0], nil
}

// QueueStatus is the lifecycle state of a queued job.
type QueueStatus string

const (
	StatusInQueue    QueueStatus = "IN_QUEUE"
	StatusInProgress QueueStatus = "IN_PROGRESS"
	StatusCompleted  QueueStatus = "COMPLETED"
)

// LogLine is a log message emitted by the provider while a job runs.
type LogLine struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// QueueUpdate reports job progress. Logs holds only lines not reported before.
type QueueUpdate struct {
	RequestID string      `json:"requestId"`
	Status    QueueStatus `json:"status"`
	Position  int         `json:"position,omitempty"`
	Logs      []LogLine   `json:"logs,omitempty"`
}

// UpdateFunc receives progress while a job runs. It may be nil.
type UpdateFunc func(QueueUpdate)

// ImageProvider submits a normalized payload to a hosted inference endpoint.
type ImageProvider interface {
	// GetName returns the provider name used in logs and errors.
	GetName() string
	// Submit runs one job and returns its output. Failures are *APIError.
	Submit(ctx context.Context, endpoint string, input map[string]any, onUpdate UpdateFunc) (*Output, error)
}

// ImageStore persists generated bytes for providers that return inline images.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
}

func notify(onUpdate UpdateFunc, u QueueUpdate) {
	if onUpdate != nil {
		onUpdate(u)
	}
}
