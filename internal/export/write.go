package export

import (
	"compress/gzip"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/ncruces/go-strftime"
)

// Write exports rows to path in the format selected by opts and returns
// the number of rows written. A partial file is removed on failure.
func Write(path string, columns []string, rows [][]any, opts Options) (n int64, err error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	switch o := opts.(type) {
	case CSVOptions:
		return writeCompressed(f, path, o.Compression, func(w io.Writer) (int64, error) {
			return writeCSV(w, columns, rows, o)
		})
	case JSONOptions:
		return writeCompressed(f, path, o.Compression, func(w io.Writer) (int64, error) {
			return writeJSON(w, columns, rows, o)
		})
	case ParquetOptions:
		return writeParquet(f, columns, rows, o)
	default:
		return 0, fmt.Errorf("unsupported export options %T", opts)
	}
}

func writeCompressed(f io.Writer, path, compression string, body func(io.Writer) (int64, error)) (int64, error) {
	codec := compression
	if codec == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".gz", ".gzip":
			codec = "gzip"
		case ".zst", ".zstd":
			codec = "zstd"
		default:
			codec = "none"
		}
	}
	var wc io.WriteCloser
	switch codec {
	case "gzip":
		wc = gzip.NewWriter(f)
	case "zstd":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return 0, fmt.Errorf("zstd writer: %w", err)
		}
		wc = zw
	default:
		return body(f)
	}
	n, err := body(wc)
	if cerr := wc.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("finish %s stream: %w", codec, cerr)
	}
	return n, err
}

func writeCSV(w io.Writer, columns []string, rows [][]any, o CSVOptions) (int64, error) {
	sep := []rune(o.Sep)[0]
	var writeRecord func([]string) error
	var flush func() error
	if o.Quote == `"` && o.Escape == `"` && !o.ForceQuote {
		cw := csv.NewWriter(w)
		cw.Comma = sep
		writeRecord = cw.Write
		flush = func() error { cw.Flush(); return cw.Error() }
	} else {
		q := &quotingWriter{w: w, sep: o.Sep, quote: o.Quote, escape: o.Escape, force: o.ForceQuote}
		writeRecord = q.write
		flush = func() error { return nil }
	}

	if o.Header {
		if err := writeRecord(columns); err != nil {
			return 0, fmt.Errorf("write csv header: %w", err)
		}
	}
	var n int64
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if v == nil {
				record[i] = o.NullStr
				continue
			}
			record[i] = formatValue(v, o.DateFormat, o.TimestampFormat)
		}
		if err := writeRecord(record); err != nil {
			return n, fmt.Errorf("write csv row: %w", err)
		}
		n++
	}
	if err := flush(); err != nil {
		return n, fmt.Errorf("flush csv: %w", err)
	}
	return n, nil
}

// quotingWriter writes delimited records with a configurable quote and
// escape character, which encoding/csv does not support.
type quotingWriter struct {
	w                  io.Writer
	sep, quote, escape string
	force              bool
}

func (q *quotingWriter) write(record []string) error {
	var b strings.Builder
	for i, field := range record {
		if i > 0 {
			b.WriteString(q.sep)
		}
		if q.force || strings.Contains(field, q.sep) || strings.Contains(field, q.quote) || strings.ContainsAny(field, "\r\n") {
			b.WriteString(q.quote)
			b.WriteString(strings.ReplaceAll(field, q.quote, q.escape+q.quote))
			b.WriteString(q.quote)
			continue
		}
		b.WriteString(field)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(q.w, b.String())
	return err
}

func writeJSON(w io.Writer, columns []string, rows [][]any, o JSONOptions) (int64, error) {
	if o.Array {
		if _, err := io.WriteString(w, "[\n"); err != nil {
			return 0, err
		}
	}
	var n int64
	for _, row := range rows {
		b, err := json.Marshal(orderedRecord{columns: columns, values: jsonValues(row, o)})
		if err != nil {
			return n, fmt.Errorf("encode json row: %w", err)
		}
		if o.Array && n > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return n, err
			}
		}
		if _, err := w.Write(b); err != nil {
			return n, err
		}
		if !o.Array {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return n, err
			}
		}
		n++
	}
	if o.Array {
		if _, err := io.WriteString(w, "\n]\n"); err != nil {
			return n, err
		}
	}
	return n, nil
}

func jsonValues(row []any, o JSONOptions) []any {
	out := make([]any, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case time.Time:
			out[i] = formatTime(x, o.DateFormat, o.TimestampFormat)
		case []byte:
			out[i] = base64.StdEncoding.EncodeToString(x)
		default:
			out[i] = v
		}
	}
	return out
}

// orderedRecord marshals as a JSON object with keys in column order.
type orderedRecord struct {
	columns []string
	values  []any
}

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		var v any
		if i < len(r.values) {
			v = r.values[i]
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// formatValue renders one value as export text.
func formatValue(v any, dateFormat, tsFormat string) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTime(x, dateFormat, tsFormat)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// formatTime uses dateFormat for values without a time of day and
// tsFormat otherwise. Both are strftime patterns.
func formatTime(t time.Time, dateFormat, tsFormat string) string {
	isDate := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	switch {
	case isDate && dateFormat != "":
		return strftime.Format(dateFormat, t)
	case !isDate && tsFormat != "":
		return strftime.Format(tsFormat, t)
	case isDate:
		return t.Format(time.DateOnly)
	default:
		return t.Format("2006-01-02 15:04:05.999999999")
	}
}
