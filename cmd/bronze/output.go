package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tinytelemetry/bronze/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON   = "json"
	formatNDJSON = "ndjson"
	formatYAML   = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatJSON, formatNDJSON, formatYAML:
		return true
	}
	return false
}

// writeRows encodes rows to w in the requested format.
func writeRows(w io.Writer, format string, rows []model.BronzeRow) error {
	switch format {
	case formatNDJSON:
		enc := json.NewEncoder(w)
		for i := range rows {
			if err := enc.Encode(&rows[i]); err != nil {
				return fmt.Errorf("encode row %d: %w", i, err)
			}
		}
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []model.BronzeRow{}
		}
		return enc.Encode(rows)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
