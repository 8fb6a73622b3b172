package gatewayerr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract reads a non-OK HTTP response body and composes a single
// user-facing error string. It is a pure function of status/statusText/
// body: it never panics and always returns a non-empty string (P10).
//
// Extraction order mirrors the six wire formats this gateway talks to:
//  1. top-level array form [{error:{message}}] — seen on Gemini.
//  2. object form — probe "message" (string or nested {detail}/{error}),
//     then "error.message" or "error" as a bare string, then "detail".
//
// A leading "* " on the extracted detail is stripped (some providers
// prefix validation messages with a bullet).
func Extract(status int, statusText string, body []byte) string {
	detail, ok := extractDetail(body)
	if !ok || detail == "" {
		detail = statusText
	}
	return fmt.Sprintf("API error (%d): %s", status, detail)
}

// extractDetail attempts the JSON walk described in Extract. ok is false
// when the body isn't JSON or no recognizable shape was found.
func extractDetail(body []byte) (string, bool) {
	trimmed := strings.TrimSpace(body2string(body))
	if trimmed == "" {
		return "", false
	}

	// Form 1: top-level array, e.g. [{"error":{"message":"..."}}]
	if strings.HasPrefix(trimmed, "[") {
		var arr []map[string]any
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) == 0 {
			return "", false
		}
		if errObj, ok := arr[0]["error"].(map[string]any); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return stripBullet(msg), true
			}
		}
		return "", false
	}

	// Form 2: object.
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false
	}

	if msg, ok := obj["message"]; ok {
		switch v := msg.(type) {
		case string:
			if v != "" {
				return stripBullet(v), true
			}
		case map[string]any:
			if detail, ok := v["detail"].(string); ok && detail != "" {
				return stripBullet(detail), true
			}
			if nested, ok := v["error"].(string); ok && nested != "" {
				return stripBullet(nested), true
			}
		}
	}

	if errVal, ok := obj["error"]; ok {
		switch v := errVal.(type) {
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return stripBullet(msg), true
			}
		case string:
			if v != "" {
				return stripBullet(v), true
			}
		}
	}

	if detail, ok := obj["detail"].(string); ok && detail != "" {
		return stripBullet(detail), true
	}

	return "", false
}

func stripBullet(s string) string {
	return strings.TrimPrefix(s, "* ")
}

func body2string(body []byte) string {
	return string(body)
}
