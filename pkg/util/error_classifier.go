package util

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Error kinds used across notification and session handling.
const (
	KindConnection = "connection_error"
	KindTimeout    = "timeout"
	KindNotFound   = "not_found"
	KindCanceled   = "context_canceled"
	KindUnknown    = "unknown_error"
)

// IsConnectionError reports whether err looks like a transport failure
// (network, fetch, timeout) rather than a rejected operation. Used to
// distinguish "can't reach server" from "wrong password".
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"network", "fetch", "timeout", "connection refused", "no such host", "unavailable"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// Classify maps an error to one of the Kind* constants.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	if IsConnectionError(err) {
		return KindConnection
	}
	return KindUnknown
}
