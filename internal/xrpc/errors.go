package xrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	indigo "github.com/bluesky-social/indigo/xrpc"
)

var (
	// ErrAuth is returned when login with the given credentials fails.
	ErrAuth = errors.New("authentication failed")

	// ErrNotLoggedIn is returned when an authenticated call is made without a session.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrInvalidService is returned when the service URL cannot be used.
	ErrInvalidService = errors.New("invalid service URL: expected http(s)://host[:port]")

	// ErrEmptyCredentials is returned when identifier or password is missing.
	ErrEmptyCredentials = errors.New("identifier and password are required")
)

// expiredTokenName is the XRPC error name of an expired access token.
const expiredTokenName = "ExpiredToken"

// Error is a non-2xx XRPC response.
type Error struct {
	// Method is the NSID of the failed call.
	Method string

	// Status is the HTTP status code.
	Status int

	// Name is the XRPC error name (for example "InvalidRequest").
	Name string

	// Message is the human readable description returned by the service.
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	name := e.Name
	if name == "" {
		name = http.StatusText(e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("xrpc %s: %d %s: %s", e.Method, e.Status, name, e.Message)
	}
	return fmt.Sprintf("xrpc %s: %d %s", e.Method, e.Status, name)
}

// Transient reports whether retrying the same request may succeed.
func (e *Error) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// expired reports whether the access token must be refreshed.
func (e *Error) expired() bool {
	return e.Name == expiredTokenName
}

// DecodeError is a successful response whose body could not be read as the
// expected output. The same request returns the same body, so it is never
// transient.
type DecodeError struct {
	// Method is the NSID of the call.
	Method string

	// Err is the decoding failure.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Method, e.Err)
}

// Unwrap returns the decoding failure.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Transient always reports false.
func (e *DecodeError) Transient() bool {
	return false
}

// wrapError maps an error returned by indigo for nsid onto this package's
// types. Error responses become *Error, network failures keep their cause
// and anything else happened while reading a 200 response.
func wrapError(nsid string, err error) error {
	if err == nil {
		return nil
	}

	var lerr *indigo.Error
	if errors.As(err, &lerr) {
		xerr := &Error{Method: nsid, Status: lerr.StatusCode}
		var body *indigo.XRPCError
		if errors.As(lerr.Wrapped, &body) {
			xerr.Name = body.ErrStr
			xerr.Message = body.Message
		}
		return xerr
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("xrpc %s: %w", nsid, err)
	}
	return &DecodeError{Method: nsid, Err: err}
}
