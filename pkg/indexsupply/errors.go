// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"indexsupply/cli/internal/httperrors"
)

// Kind is the retry category of a failed request.
type Kind int

const (
	// KindUser means the request itself is invalid. It is never retried.
	KindUser Kind = iota + 1
	// KindWait is a transient server or network fault, retried after a backoff delay.
	KindWait
	// KindRetry is a transient fault that is retried immediately.
	KindRetry
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindWait:
		return "wait"
	case KindRetry:
		return "retry"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified request failure.
type Error struct {
	Kind Kind
	// Status is the HTTP status code, or 0 for in-band and transport errors.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsUser reports whether err is a non-retryable request error.
func IsUser(err error) bool { return KindOf(err) == KindUser }

// IsWait reports whether err is a transient error retried after a delay.
func IsWait(err error) bool { return KindOf(err) == KindWait }

// IsRetry reports whether err is a transient error retried immediately.
func IsRetry(err error) bool { return KindOf(err) == KindRetry }

// DecodeError reports a frame or response body that could not be decoded.
// It is fatal: the same bytes would fail again on retry.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	p := e.Payload
	if len(p) > 120 {
		p = p[:120] + "..."
	}
	return fmt.Sprintf("decode %q: %v", p, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ClassifyStatus classifies an HTTP response by status code and body. It
// returns nil for 2xx statuses. url is only used in the not-found message and
// should already have secrets masked.
func ClassifyStatus(status int, body []byte, url string) *Error {
	switch {
	case status/100 == 2:
		return nil
	case status == http.StatusRequestTimeout:
		return newError(KindRetry, status, "timeout")
	case status == http.StatusTooManyRequests:
		msg := "too many requests"
		if m := bodyMessage(body); m != "" {
			msg += ": " + m
		}
		return newError(KindWait, status, msg)
	case status == http.StatusNotFound:
		if m := bodyMessage(body); m != "" {
			return newError(KindUser, status, m)
		}
		return newError(KindUser, status, "not found "+url)
	case status/100 == 4:
		return newError(KindUser, status, bodyMessage(body))
	default:
		return newError(KindWait, status, strings.TrimSpace(fmt.Sprintf("%d %s", status, body)))
	}
}

// bodyMessage returns the JSON "message" field of body when there is one,
// and the raw body otherwise.
func bodyMessage(body []byte) string {
	var payload struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != nil {
		return *payload.Message
	}
	return string(body)
}

// ClassifyEnvelope classifies an in-band error discriminator. It returns nil
// when discriminator is empty.
func ClassifyEnvelope(discriminator, message string) *Error {
	switch discriminator {
	case "":
		return nil
	case "user":
		return newError(KindUser, 0, message)
	default:
		// "server" and anything the server may add later.
		if message == "" {
			message = discriminator + " error"
		}
		return newError(KindWait, 0, message)
	}
}

// ClassifyTransport classifies a failure to complete the HTTP exchange.
// Timeouts are retried immediately, everything else waits.
func ClassifyTransport(err error) *Error {
	if httperrors.IsTimeout(err) {
		return &Error{Kind: KindRetry, Message: "timeout", Err: err}
	}
	return &Error{Kind: KindWait, Message: "fetch error", Err: err}
}
