// Package api provides clients for the finking chat backend and the upstream
// completions API it proxies to.
package api

// GJSON paths for extracting values from JSON responses.
const (
	// Upstream (OpenAI-compatible) completion paths
	PathChoices       = "choices"
	PathChoiceContent = "choices.0.message.content"
	PathUpstreamError = "error.message"

	// Chat backend paths
	PathError         = "error"
	PathHealthStatus  = "status"
	PathHealthService = "service"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4096
