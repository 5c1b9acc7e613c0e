package chat

import (
	"github.com/tidwall/gjson"

	apierrors "github.com/siskocapital/finking/internal/errors"
	"github.com/siskocapital/finking/internal/models"
)

// replyFields are checked in order; the first non-empty string wins
var replyFields = []string{models.ReplyFieldPrimary, models.ReplyFieldSecondary}

// ResolveReply extracts the reply text from a successful endpoint body.
// It returns the fallback notice and false when no reply field carries text,
// and an error when the body is not a JSON object.
func ResolveReply(body []byte) (string, bool, error) {
	if !gjson.ValidBytes(body) {
		return "", false, apierrors.NewParseError("response is not valid JSON", "")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return "", false, apierrors.NewParseError("response is not a JSON object", "")
	}

	for _, field := range replyFields {
		value := parsed.Get(field)
		if value.Type == gjson.String && value.String() != "" {
			return value.String(), true, nil
		}
	}
	return models.FallbackReply, false, nil
}
