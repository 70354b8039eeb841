package issuer

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Error is a non-2xx reply from the issuer. Body keeps the raw payload so
// callers can pass it through unchanged.
type Error struct {
	StatusCode int
	Body       json.RawMessage
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("issuer error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("issuer error %d", e.StatusCode)
}

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: rawOrString(body)}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		e.Code = firstString(parsed, "error_code", "code")
		e.Message = firstString(parsed, "error_message", "message", "error")
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// rawOrString returns body verbatim when it is JSON, otherwise as a JSON string.
func rawOrString(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage(`""`)
	}
	if gjson.ValidBytes(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
