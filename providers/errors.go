package providers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Fallback messages used when neither the error body nor the transport error says anything.
const (
	DefaultGenerationMessage = "Generation failed"
	DefaultUploadMessage     = "Upload failed"
	NoImagesMessage          = "No images generated"
)

// APIError is the normalized shape of every provider failure.
type APIError struct {
	Provider   string `json:"-"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Cause      error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Cause }

// EmptyResultError reports a job that completed without returning any image.
type EmptyResultError struct {
	Provider  string
	RequestID string
}

func (e *EmptyResultError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: no images generated (request %s)", e.Provider, e.RequestID)
	}
	return fmt.Sprintf("%s: no images generated", e.Provider)
}

// IsEmptyResult reports whether err is, or wraps, an EmptyResultError.
func IsEmptyResult(err error) bool {
	var e *EmptyResultError
	return errors.As(err, &e)
}

type detailKind int

const (
	detailNone detailKind = iota
	detailText
	detailIssues
)

// errorBody holds the recognized variants of a provider error body.
type errorBody struct {
	kind    detailKind
	text    string
	issues  []string
	message string
}

// validationIssue is one entry of a validation-style detail list.
type validationIssue struct {
	Msg *string `json:"msg"`
}

func parseErrorBody(body []byte) errorBody {
	var raw struct {
		Detail  json.RawMessage `json:"detail"`
		Message json.RawMessage `json:"message"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &raw) != nil {
		return errorBody{}
	}

	var out errorBody
	var text string
	var entries []json.RawMessage
	switch {
	case json.Unmarshal(raw.Detail, &text) == nil && text != "":
		out.kind, out.text = detailText, text
	case json.Unmarshal(raw.Detail, &entries) == nil && len(entries) > 0:
		out.kind = detailIssues
		for _, entry := range entries {
			out.issues = append(out.issues, issueMessage(entry))
		}
	}

	var message string
	if json.Unmarshal(raw.Message, &message) == nil {
		out.message = message
	}
	return out
}

func issueMessage(entry json.RawMessage) string {
	var issue validationIssue
	if json.Unmarshal(entry, &issue) == nil && issue.Msg != nil {
		return *issue.Msg
	}
	var compact bytes.Buffer
	if json.Compact(&compact, entry) == nil {
		return compact.String()
	}
	return string(entry)
}

// NormalizeError maps a provider failure onto an APIError. status is the HTTP
// status of the provider response, or zero when the request never got one.
// The message comes from the first rule that matches: a string detail, a list
// of validation issues joined with "; ", a string message, the transport
// error, then fallback.
func NormalizeError(status int, body []byte, cause error, fallback string) *APIError {
	e := &APIError{StatusCode: http.StatusInternalServerError, Cause: cause}
	if status > 0 {
		e.StatusCode = status
	}

	parsed := parseErrorBody(body)
	switch {
	case parsed.kind == detailText:
		e.Message = parsed.text
	case parsed.kind == detailIssues:
		e.Message = strings.Join(parsed.issues, "; ")
	case parsed.message != "":
		e.Message = parsed.message
	case cause != nil && cause.Error() != "":
		e.Message = cause.Error()
	default:
		e.Message = fallback
	}
	return e
}
