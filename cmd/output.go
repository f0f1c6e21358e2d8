// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strconv"

	"github.com/fxamacker/cbor/v2"
	"github.com/pterm/pterm"

	"indexsupply/cli/pkg/indexsupply"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputCBOR  = "cbor"
)

// document is the serialized form of one response.
type document struct {
	BlockHeight uint64            `json:"block_height" cbor:"block_height"`
	Result      []indexsupply.Row `json:"result" cbor:"result"`
}

// printer writes responses in one output format. json and cbor emit one
// document per response, so a live stream becomes NDJSON or a CBOR sequence.
type printer struct {
	w      io.Writer
	format string
	pretty bool
	cbor   cbor.EncMode
}

func newPrinter(w io.Writer, format string, pretty bool) (*printer, error) {
	p := &printer{w: w, format: format, pretty: pretty}
	switch format {
	case outputTable, outputJSON:
	case outputCBOR:
		em, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, err
		}
		p.cbor = em
	default:
		return nil, fmt.Errorf("unknown output %q: use table, json or cbor", format)
	}
	return p, nil
}

func (p *printer) print(resp indexsupply.Response[indexsupply.Row]) error {
	doc := document{BlockHeight: resp.BlockNumber, Result: resp.Result}
	if doc.Result == nil {
		doc.Result = []indexsupply.Row{}
	}
	switch p.format {
	case outputJSON:
		enc := json.NewEncoder(p.w)
		if p.pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(doc)
	case outputCBOR:
		b, err := p.cbor.Marshal(cborDocument(doc))
		if err != nil {
			return err
		}
		_, err = p.w.Write(b)
		return err
	default:
		_, err := fmt.Fprintln(p.w, renderTable(resp))
		return err
	}
}

// renderTable renders rows as a table with columns sorted by name, followed
// by the block height.
func renderTable(resp indexsupply.Response[indexsupply.Row]) string {
	footer := pterm.NewStyle(pterm.FgGray).Sprintf("block %d · %d rows", resp.BlockNumber, len(resp.Result))
	if len(resp.Result) == 0 {
		return footer
	}
	columns := columnNames(resp.Result)
	data := pterm.TableData{columns}
	for _, row := range resp.Result {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = cell(row[c])
		}
		data = append(data, line)
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return footer
	}
	return table + "\n" + footer
}

func columnNames(rows []indexsupply.Row) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	slices.Sort(out)
	return out
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// cborDocument converts json.Number values to CBOR integers or floats so
// they are not encoded as text. Integers beyond 64 bits become bignums.
func cborDocument(doc document) document {
	out := document{BlockHeight: doc.BlockHeight, Result: make([]indexsupply.Row, len(doc.Result))}
	for i, row := range doc.Result {
		r := make(indexsupply.Row, len(row))
		for k, v := range row {
			r[k] = cborValue(v)
		}
		out.Result[i] = r
	}
	return out
}

func cborValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return n
		}
		if n, ok := new(big.Int).SetString(string(v), 10); ok {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return string(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cborValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cborValue(e)
		}
		return out
	default:
		return v
	}
}
