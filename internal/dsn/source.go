// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"errors"
	"os"
)

// Source names where a DSN came from.
type Source string

const (
	SourceFlag     Source = "flag"
	SourceEnv      Source = "env"
	SourceKeychain Source = "keychain"
)

// ErrNoDSN is returned when no DSN is configured anywhere.
var ErrNoDSN = errors.New("no database configured: pass --dsn, set INDEXSUPPLY_DSN or run 'indexsupply connect'")

// Loader returns a stored DSN. keychain.Manager satisfies it via LoadDBDSN.
type Loader func() (string, error)

// Resolve picks the DSN from the flag value, then INDEXSUPPLY_DSN, then
// DATABASE_URL, then the keychain, and normalizes it.
func Resolve(flag string, load Loader) (string, Source, error) {
	candidates := []struct {
		value  string
		source Source
	}{
		{flag, SourceFlag},
		{os.Getenv("INDEXSUPPLY_DSN"), SourceEnv},
		{os.Getenv("DATABASE_URL"), SourceEnv},
	}
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		n, err := Normalize(c.value)
		return n, c.source, err
	}

	if load != nil {
		if v, err := load(); err == nil && v != "" {
			n, err := Normalize(v)
			return n, SourceKeychain, err
		}
	}
	return "", "", ErrNoDSN
}
