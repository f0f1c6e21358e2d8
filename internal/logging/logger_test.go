// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"indexsupply/cli/pkg/indexsupply"
)

func TestNewLoggerMasksSecrets(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	var buf bytes.Buffer
	log, err := NewLogger(&buf, "debug")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	log.Debug("sending request", "url", "https://api.indexsupply.net/query?api-key=sk_live_1&chain=8453")
	log.With("dsn", "postgres://u:hunter2@db/x").Info("connected", "error", errors.New("password=hunter2 rejected"))

	out := buf.String()
	for _, secret := range []string{"sk_live_1", "hunter2"} {
		if strings.Contains(out, secret) {
			t.Errorf("log output leaks %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, "sending request") {
		t.Errorf("debug message missing:\n%s", out)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output for warn level:\n%s", buf.String())
	}

	if _, err := NewLogger(&buf, "loud"); err == nil {
		t.Error("NewLogger() with unknown level should fail")
	}
}

func TestFormatQueryError(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "user", err: &indexsupply.Error{Kind: indexsupply.KindUser, Status: 400, Message: `column "bar" does not exist`}, want: `column "bar" does not exist`},
		{name: "wait", err: &indexsupply.Error{Kind: indexsupply.KindWait, Message: "503"}, want: "Service Unavailable"},
		{name: "decode", err: &indexsupply.DecodeError{Payload: "{", Err: errors.New("unexpected EOF")}, want: "Unreadable Response"},
		{name: "other", err: errors.New("boom"), want: "Query Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatQueryError(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("FormatQueryError() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestPresentError(t *testing.T) {
	got := PresentError("connect", errors.New("dial postgres://u:p@h/db failed"))
	if want := "connect: dial postgres://*:*@h/db failed"; got != want {
		t.Errorf("PresentError() = %q, want %q", got, want)
	}
	if PresentError("x", nil) != "" {
		t.Error("PresentError(nil) should be empty")
	}
}
