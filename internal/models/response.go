package models

import "time"

// ChatResponse is the success body returned by POST /api/chat
type ChatResponse struct {
	Reply     string `json:"reply"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
}

// ErrorResponse is the body of every non-2xx reply from the chat backend
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Timestamp formats t the way the backend reports times (UTC, Z suffix)
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
