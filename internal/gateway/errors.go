package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"closet-go/internal/closet"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// errorBody is the API's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// kindForStatus maps a non-2xx status onto the error taxonomy.
func kindForStatus(status int) closet.Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return closet.KindAuth
	case status == http.StatusNotFound:
		return closet.KindNotFound
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity:
		return closet.KindValidation
	default:
		return closet.KindServer
	}
}

// statusError reads resp's body for a detail message and classifies it.
// A body that is not the JSON envelope falls back to the status text.
func statusError(op string, resp *http.Response) *closet.Error {
	detail := ""
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var body errorBody
		if json.Unmarshal(data, &body) == nil {
			detail = strings.TrimSpace(body.Detail)
		}
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return closet.NewError(kindForStatus(resp.StatusCode), op, detail, nil)
}

// transportError wraps a failure to complete the round trip.
func transportError(op string, err error) *closet.Error {
	detail := "request failed"
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		detail = "request timed out"
	case errors.Is(err, context.Canceled):
		detail = "request canceled"
	}
	return closet.NewError(closet.KindTransport, op, detail, err)
}
