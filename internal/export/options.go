// Package export writes query results to CSV, JSON and Parquet files.
package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sadopc/sqlharbor/internal/quote"
)

// Format names an export file format.
type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
	JSON    Format = "json"
)

// Options is implemented by the per-format option structs.
type Options interface {
	Format() Format
	Validate() error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CSVOptions controls delimited text output.
type CSVOptions struct {
	Compression     string `validate:"oneof=auto gzip zstd none"`
	ForceQuote      bool
	DateFormat      string
	Sep             string `validate:"len=1"`
	Quote           string `validate:"len=1"`
	Escape          string `validate:"len=1"`
	Header          bool
	NullStr         string
	TimestampFormat string
	Encoding        string `validate:"oneof=UTF8 UTF-8 utf8 utf-8"`
}

// DefaultCSV returns CSV options with the documented defaults.
func DefaultCSV() CSVOptions {
	return CSVOptions{Compression: "auto", Sep: ",", Quote: `"`, Escape: `"`, Encoding: "UTF8"}
}

func (CSVOptions) Format() Format { return CSV }

func (o CSVOptions) Validate() error { return validateOptions(CSV, o) }

// ParquetOptions controls Parquet output.
type ParquetOptions struct {
	Compression string `validate:"oneof=snappy gzip zstd none"`
}

// DefaultParquet returns Parquet options with snappy compression.
func DefaultParquet() ParquetOptions {
	return ParquetOptions{Compression: "snappy"}
}

func (ParquetOptions) Format() Format { return Parquet }

func (o ParquetOptions) Validate() error { return validateOptions(Parquet, o) }

// JSONOptions controls record-oriented JSON output. Array writes one JSON
// array; otherwise each row is written on its own line.
type JSONOptions struct {
	Compression     string `validate:"oneof=auto gzip zstd uncompressed"`
	DateFormat      string
	TimestampFormat string
	Array           bool
}

// DefaultJSON returns JSON options writing newline-delimited records.
func DefaultJSON() JSONOptions {
	return JSONOptions{Compression: "auto"}
}

func (JSONOptions) Format() Format { return JSON }

func (o JSONOptions) Validate() error { return validateOptions(JSON, o) }

func validateOptions(f Format, o any) error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid %s export options: %w", f, err)
	}
	return nil
}

// Defaults returns the default options for a format name.
func Defaults(name string) (Options, error) {
	switch Format(strings.ToLower(name)) {
	case CSV:
		return DefaultCSV(), nil
	case Parquet:
		return DefaultParquet(), nil
	case JSON:
		return DefaultJSON(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", name)
	}
}

// FormatFromPath infers the format from path's extension. A trailing
// .gz or .zst is skipped.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gz" || ext == ".zst" {
		ext = strings.ToLower(filepath.Ext(path[:len(path)-len(ext)]))
	}
	switch ext {
	case ".csv":
		return CSV, nil
	case ".parquet", ".pq":
		return Parquet, nil
	case ".json", ".jsonl", ".ndjson":
		return JSON, nil
	}
	return "", fmt.Errorf("cannot tell the export format of %q: use .csv, .parquet or .json", filepath.Base(path))
}

// CopyClause renders opts as the option list of a DuckDB COPY ... TO
// statement, including the surrounding parentheses.
func CopyClause(opts Options) string {
	var parts []string
	add := func(format string, args ...any) { parts = append(parts, fmt.Sprintf(format, args...)) }
	switch o := opts.(type) {
	case CSVOptions:
		add("FORMAT csv")
		add("COMPRESSION %s", quote.Literal(copyCompression(o.Compression)))
		if o.ForceQuote {
			add("FORCE_QUOTE *")
		}
		add("DELIMITER %s", quote.Literal(o.Sep))
		add("QUOTE %s", quote.Literal(o.Quote))
		add("ESCAPE %s", quote.Literal(o.Escape))
		add("HEADER %t", o.Header)
		add("NULLSTR %s", quote.Literal(o.NullStr))
		if o.DateFormat != "" {
			add("DATEFORMAT %s", quote.Literal(o.DateFormat))
		}
		if o.TimestampFormat != "" {
			add("TIMESTAMPFORMAT %s", quote.Literal(o.TimestampFormat))
		}
	case ParquetOptions:
		add("FORMAT parquet")
		c := o.Compression
		if c == "none" {
			c = "uncompressed"
		}
		add("COMPRESSION %s", quote.Literal(c))
	case JSONOptions:
		add("FORMAT json")
		add("COMPRESSION %s", quote.Literal(copyCompression(o.Compression)))
		if o.Array {
			add("ARRAY true")
		}
		if o.DateFormat != "" {
			add("DATEFORMAT %s", quote.Literal(o.DateFormat))
		}
		if o.TimestampFormat != "" {
			add("TIMESTAMPFORMAT %s", quote.Literal(o.TimestampFormat))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func copyCompression(c string) string {
	if c == "none" || c == "uncompressed" {
		return "none"
	}
	return c
}
