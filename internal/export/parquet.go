package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

var parquetCodecs = map[string]compress.Compression{
	"snappy": compress.Codecs.Snappy,
	"gzip":   compress.Codecs.Gzip,
	"zstd":   compress.Codecs.Zstd,
	"none":   compress.Codecs.Uncompressed,
}

// writeParquet writes every column as nullable UTF8 text.
func writeParquet(w io.Writer, columns []string, rows [][]any, o ParquetOptions) (int64, error) {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	for _, row := range rows {
		for i := range columns {
			sb := b.Field(i).(*array.StringBuilder)
			if i >= len(row) || row[i] == nil {
				sb.AppendNull()
				continue
			}
			sb.Append(formatValue(row[i], "", ""))
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(parquetCodecs[o.Compression]))
	// The parquet writer closes sinks that implement io.Closer; the caller
	// owns the file.
	pw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return 0, fmt.Errorf("parquet writer: %w", err)
	}
	if err := pw.Write(rec); err != nil {
		pw.Close()
		return 0, fmt.Errorf("write parquet: %w", err)
	}
	if err := pw.Close(); err != nil {
		return 0, fmt.Errorf("finish parquet: %w", err)
	}
	return int64(len(rows)), nil
}
