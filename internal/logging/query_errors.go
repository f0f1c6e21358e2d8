// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"indexsupply/cli/pkg/indexsupply"
)

// FormatQueryError renders a failed query for the terminal.
func FormatQueryError(err error) string {
	var builder strings.Builder

	var decodeErr *indexsupply.DecodeError
	switch {
	case indexsupply.IsUser(err):
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query Rejected"))
		builder.WriteString("\n\n")
		builder.WriteString(userMessage(err))
		builder.WriteString("\n\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Fix the query or event signatures and run it again"))

	case errors.As(err, &decodeErr):
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Unreadable Response"))
		builder.WriteString("\n\n")
		builder.WriteString("The API sent data this version of the CLI could not decode.\n")
		builder.WriteString("Try upgrading, or run with --log-level debug to see the payload.\n")

	case indexsupply.IsWait(err), indexsupply.IsRetry(err):
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Service Unavailable"))
		builder.WriteString("\n\n")
		builder.WriteString("Index Supply kept failing after every retry.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • The service is under maintenance or overloaded\n")
		builder.WriteString("  • Your API key hit its rate limit\n")
		builder.WriteString("  • The network path to the service is unstable\n")
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Wait a moment and try again, or raise retry.max_attempts"))

	default:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query Failed"))
	}
	builder.WriteString("\n")

	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	return builder.String()
}

func userMessage(err error) string {
	var e *indexsupply.Error
	if errors.As(err, &e) && e.Message != "" {
		return Mask(e.Message)
	}
	return "The API rejected the request."
}

// PresentQueryError prints a formatted query error.
func PresentQueryError(err error) {
	fmt.Println()
	fmt.Println(FormatQueryError(err))
	fmt.Println()
}

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}
