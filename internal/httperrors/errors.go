// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors recognises network failures and renders them for humans.
// The predicates are shared with the query client, which uses them to tell a
// request timeout apart from other transport faults.
package httperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Cause names the broad reason a request could not complete.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseTimeout
	CauseDNS
	CauseRefused
	CauseTLS
	CauseServer
)

func (c Cause) String() string {
	switch c {
	case CauseTimeout:
		return "timeout"
	case CauseDNS:
		return "dns"
	case CauseRefused:
		return "connection refused"
	case CauseTLS:
		return "tls"
	case CauseServer:
		return "server"
	default:
		return "unknown"
	}
}

// Diagnose maps err to a Cause. Checks go from the most specific to the most generic.
func Diagnose(err error) Cause {
	switch {
	case err == nil:
		return CauseUnknown
	case IsTimeout(err):
		return CauseTimeout
	case IsDNS(err):
		return CauseDNS
	case IsConnectionRefused(err):
		return CauseRefused
	case IsTLS(err):
		return CauseTLS
	case IsServer(err.Error()):
		return CauseServer
	default:
		return CauseUnknown
	}
}

// IsTimeout reports whether err is a client-side timeout. Caller
// cancellation (context.Canceled) is not a timeout.
func IsTimeout(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsDNS reports whether err is a DNS resolution error.
func IsDNS(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsConnectionRefused reports whether the remote end refused the connection.
func IsConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// IsTLS reports whether err came from the TLS handshake or certificate checks.
func IsTLS(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// IsServer reports whether an error message names a 5xx condition.
func IsServer(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
	} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// FormatNetworkError prints a troubleshooting message for err and returns it wrapped.
// activity describes what the CLI was doing, e.g. "running query".
func FormatNetworkError(err error, activity string, host string) error {
	if err == nil {
		return nil
	}
	displayErrorMessage(err, activity, host)
	return fmt.Errorf("network error: %w", err)
}

func displayErrorMessage(err error, activity, host string) {
	switch Diagnose(err) {
	case CauseTimeout:
		pterm.Printf("⏱️  Connection timeout while %s\n\n", activity)
		pterm.Println("The API took too long to respond. This could mean:")
		pterm.Println("  • Slow internet connection")
		pterm.Println("  • The query scans a very large block range")
		pterm.Println("  • Network firewall is blocking the connection")
	case CauseDNS:
		pterm.Printf("🌐 Cannot resolve %s while %s\n\n", host, activity)
		pterm.Println("Please check:")
		pterm.Println("  • Your internet connection is working")
		pterm.Println("  • The --api-url value is spelled correctly")
	case CauseRefused:
		pterm.Printf("🚫 Connection refused by %s while %s\n\n", host, activity)
		pterm.Println("The API is not accepting connections. This could mean:")
		pterm.Println("  • The service is temporarily down")
		pterm.Println("  • Wrong address or port in --api-url")
	case CauseTLS:
		pterm.Printf("🔒 Secure connection to %s failed while %s\n\n", host, activity)
		pterm.Println("Try:")
		pterm.Println("  • Check your system date and time")
		pterm.Println("  • Verify network proxy settings")
	case CauseServer:
		pterm.Printf("⚠️  Server error while %s\n\n", activity)
		pterm.Println("The query service reported an internal error. Please try again in a few minutes.")
	default:
		pterm.Printf("❌ Cannot reach %s while %s\n\n", host, activity)
		details := err.Error()
		if len(details) > 100 {
			details = details[:100] + "..."
		}
		pterm.Debug.Printf("Technical details: %s\n", details)
	}
	pterm.Println()
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
