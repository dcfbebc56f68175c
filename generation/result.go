package generation

import "time"

// Result is a completed generation.
type Result struct {
	ImageURL  string    `json:"imageUrl"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Seed      int64     `json:"seed"`
	ModelName string    `json:"modelName"`
	ModelID   string    `json:"modelId"`
	Prompt    string    `json:"prompt"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}
