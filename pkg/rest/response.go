package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrBadResponse matches every *BadResponseError.
var ErrBadResponse = errors.New("bad response")

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// BadResponseError reports a response with status 300 or above.
type BadResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       []byte
}

// maxBodyInError bounds how much of the body Error includes.
const maxBodyInError = 512

func (e *BadResponseError) Error() string {
	body := e.Body
	suffix := ""
	if len(body) > maxBodyInError {
		body, suffix = body[:maxBodyInError], "..."
	}
	return fmt.Sprintf("%s %s: unexpected status %s: %q%s", e.Method, e.Path, e.Status, body, suffix)
}

func (e *BadResponseError) Is(target error) bool {
	return target == ErrBadResponse
}
