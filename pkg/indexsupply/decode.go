// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package indexsupply

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// envelope is the wire shape of a query response and of every live frame.
type envelope struct {
	BlockHeight uint64    `json:"block_height"`
	Result      [][][]any `json:"result"`
	Error       string    `json:"error"`
	Message     string    `json:"message"`
}

// rowMapper builds a T from column names and one data row.
type rowMapper[T any] func(columns []string, row []any) (T, error)

var errNoFormatter = errors.New("FormatRow is required when the row type is not indexsupply.Row")

// mapperFor returns f adapted to a rowMapper, or the column-name mapper when
// f is nil and T is Row.
func mapperFor[T any](f Formatter[T]) (rowMapper[T], error) {
	if f != nil {
		return func(_ []string, row []any) (T, error) { return f(row) }, nil
	}
	var zero T
	if _, ok := any(zero).(Row); !ok {
		return nil, errNoFormatter
	}
	return func(columns []string, row []any) (T, error) {
		r, err := namedRow(columns, row)
		if err != nil {
			return zero, err
		}
		return any(r).(T), nil
	}, nil
}

func namedRow(columns []string, row []any) (Row, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("row has %d values, want %d columns", len(row), len(columns))
	}
	r := make(Row, len(columns))
	for i, name := range columns {
		r[name] = row[i]
	}
	return r, nil
}

// decode parses payload into a Response. In-band errors come back as *Error,
// anything malformed as *DecodeError.
func decode[T any](payload []byte, mapRow rowMapper[T], logger *slog.Logger) (Response[T], error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Response[T]{}, &DecodeError{Payload: string(payload), Err: err}
	}
	if e := ClassifyEnvelope(env.Error, env.Message); e != nil {
		return Response[T]{}, e
	}

	resp := Response[T]{BlockNumber: env.BlockHeight}
	if len(env.Result) == 0 || len(env.Result[0]) == 0 {
		return resp, nil
	}
	if len(env.Result) > 1 {
		logger.Debug("ignoring extra result sets", "count", len(env.Result)-1)
	}

	set := env.Result[0]
	columns := make([]string, len(set[0]))
	for i, c := range set[0] {
		name, ok := c.(string)
		if !ok {
			return Response[T]{}, &DecodeError{
				Payload: string(payload),
				Err:     fmt.Errorf("column %d name is %T, want string", i, c),
			}
		}
		columns[i] = name
	}

	resp.Result = make([]T, 0, len(set)-1)
	for i, row := range set[1:] {
		v, err := mapRow(columns, row)
		if err != nil {
			return Response[T]{}, &DecodeError{
				Payload: string(payload),
				Err:     fmt.Errorf("row %d: %w", i, err),
			}
		}
		resp.Result = append(resp.Result, v)
	}
	return resp, nil
}
