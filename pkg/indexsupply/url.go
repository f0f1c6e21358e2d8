// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultAPIURL = "https://api.indexsupply.net"

	queryPath = "/query"
	livePath  = "/query-live"
)

type urlParams struct {
	chain      uint64
	query      string
	signatures []string
	apiKey     string
	cursor     *uint64
}

// buildURL joins base and path and encodes the query parameters.
// event_signatures is always present; api-key and block_height only when set.
func buildURL(base, path string, p urlParams) (string, error) {
	if base == "" {
		base = DefaultAPIURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("api url %q must be absolute", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path

	v := url.Values{}
	v.Set("chain", strconv.FormatUint(p.chain, 10))
	v.Set("query", p.query)
	v.Set("event_signatures", strings.Join(p.signatures, ","))
	if p.apiKey != "" {
		v.Set("api-key", p.apiKey)
	}
	if p.cursor != nil {
		v.Set("block_height", strconv.FormatUint(*p.cursor, 10))
	}
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// redactURL hides the api key in a URL that is about to be logged or
// returned in an error message.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api-key") == "" {
		return raw
	}
	q.Set("api-key", "***")
	u.RawQuery = q.Encode()
	return u.String()
}
