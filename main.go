// Package main is the entry point for the Index Supply CLI.
package main

import (
	"indexsupply/cli/cmd"
)

func main() {
	cmd.Execute()
}
