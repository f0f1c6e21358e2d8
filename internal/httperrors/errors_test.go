// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Cause
	}{
		{name: "nil", err: nil, want: CauseUnknown},
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: CauseTimeout},
		{name: "net timeout", err: &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, want: CauseTimeout},
		{name: "canceled is not timeout", err: fmt.Errorf("get: %w", context.Canceled), want: CauseUnknown},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "api.example"}, want: CauseDNS},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: CauseRefused},
		{name: "tls", err: errors.New("x509: certificate signed by unknown authority"), want: CauseTLS},
		{name: "server", err: errors.New("503 service unavailable"), want: CauseServer},
		{name: "other", err: errors.New("unexpected EOF"), want: CauseUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Diagnose(tt.err); got != tt.want {
				t.Errorf("Diagnose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractHostFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://api.indexsupply.net/query?chain=8453", want: "api.indexsupply.net"},
		{in: "http://127.0.0.1:8080", want: "127.0.0.1:8080"},
		{in: "not a url", want: "server"},
	}
	for _, tt := range tests {
		if got := ExtractHostFromURL(tt.in); got != tt.want {
			t.Errorf("ExtractHostFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
