// Package models contains data types and constants shared by the finking
// client and backend.
package models

// Endpoint paths served by the chat backend
const (
	PathChat    = "/api/chat"
	PathHealth  = "/api/health"
	PathMetrics = "/metrics"

	DefaultEndpoint = "http://localhost:5000"
)

// Reply field names accepted from the chat endpoint, checked in order
const (
	ReplyFieldPrimary   = "reply"
	ReplyFieldSecondary = "response"
)

// Fixed user-facing texts
const (
	WelcomeMessage = "Hello! I'm FinKing_V1, the AI investment analyst from Sisko Capital. " +
		"Ask me about stocks, crypto, portfolio construction, risk or the macro outlook."

	// FallbackReply is shown when the endpoint answers without any reply text.
	FallbackReply = "Sorry, I couldn't generate a response. Please try again."

	// ConnectivityNotice replaces the reply when the endpoint cannot be reached
	// or answers with a non-success status.
	ConnectivityNotice = "Sorry, I'm having trouble connecting to the server right now. " +
		"Please check your connection and try again."
)

// Upstream completions API defaults
const (
	UpstreamEndpoint = "https://api.deepseek.com/chat/completions"
	UpstreamModel    = "deepseek-chat"

	ServiceName    = "FinKing AI API"
	ServiceVersion = "1.0.0"
)

// Sampling parameters sent with every upstream completion
const (
	Temperature      = 0.7
	MaxTokens        = 1024
	TopP             = 0.9
	FrequencyPenalty = 0.0
	PresencePenalty  = 0.0
)

// DefaultHeaders returns the headers sent with every JSON request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "finking/1.0",
	}
}
