package webex

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is matched by errors.Is for any 404 returned by the API.
var ErrNotFound = errors.New("webex: resource not found")

// APIError is a non-2xx response from the Webex API.
type APIError struct {
	StatusCode int
	Message    string
	TrackingID string
	// Details holds the individual descriptions from the errors[] list.
	Details []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.TrackingID != "" {
		return fmt.Sprintf("webex API error %d: %s (tracking id %s)", e.StatusCode, msg, e.TrackingID)
	}
	return fmt.Sprintf("webex API error %d: %s", e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ErrorDetails returns the per-item descriptions carried by err, if it wraps
// an *APIError. Used to log each provider sub-message on its own line.
func ErrorDetails(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Details
	}
	return nil
}

type errorBody struct {
	Message    string `json:"message"`
	TrackingID string `json:"trackingId"`
	Errors     []struct {
		Description string `json:"description"`
	} `json:"errors"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}

	apiErr.Message = parsed.Message
	apiErr.TrackingID = parsed.TrackingID
	for _, e := range parsed.Errors {
		if e.Description != "" {
			apiErr.Details = append(apiErr.Details, e.Description)
		}
	}
	return apiErr
}
