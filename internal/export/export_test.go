package export

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testColumns = []string{"id", "name", "born"}
	testRows    = [][]any{
		{int64(1), "Alice", time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)},
		{int64(2), `Bob "the builder", jr`, nil},
		{int64(3), "Ch\narlie", time.Date(2001, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
)

func TestDefaults(t *testing.T) {
	for _, name := range []string{"csv", "CSV", "parquet", "json"} {
		o, err := Defaults(name)
		require.NoError(t, err, name)
		require.NoError(t, o.Validate(), name)
	}
	_, err := Defaults("orc")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	o := DefaultCSV()
	o.Sep = ";;"
	assert.Error(t, o.Validate())

	o = DefaultCSV()
	o.Compression = "lz4"
	assert.Error(t, o.Validate())

	assert.Error(t, ParquetOptions{Compression: "ztd"}.Validate())
	assert.Error(t, JSONOptions{Compression: "none"}.Validate())
}

func TestWriteCSVDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	o := DefaultCSV()
	o.Header = true
	o.NullStr = "NULL"
	n, err := Write(path, testColumns, testRows, o)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, testColumns, records[0])
	assert.Equal(t, []string{"1", "Alice", "1990-05-17"}, records[1])
	assert.Equal(t, []string{"2", `Bob "the builder", jr`, "NULL"}, records[2])
	assert.Equal(t, []string{"3", "Ch\narlie", "2001-01-02 03:04:05"}, records[3])
}

func TestWriteCSVCustomQuoting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	o := DefaultCSV()
	o.Sep = "\t"
	o.Quote = "'"
	o.Escape = `\`
	o.ForceQuote = true
	o.DateFormat = "%d/%m/%Y"
	_, err := Write(path, []string{"a", "b"}, [][]any{{"it's", time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)}}, o)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "'it\\'s'\t'17/05/1990'\n", string(b))
}

func TestWriteJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	o := DefaultJSON()
	o.TimestampFormat = "%Y-%m-%dT%H:%M:%S"
	_, err := Write(path, testColumns, testRows, o)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `{"id":1,"name":"Alice","born":"1990-05-17"}`, lines[0])
	assert.Equal(t, `{"id":2,"name":"Bob \"the builder\", jr","born":null}`, lines[1])
	assert.Equal(t, `{"id":3,"name":"Ch\narlie","born":"2001-01-02T03:04:05"}`, lines[2])
}

func TestWriteJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	o := DefaultJSON()
	o.Array = true
	_, err := Write(path, testColumns, testRows, o)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got, 3)
	assert.Equal(t, "Alice", got[0]["name"])
	assert.Nil(t, got[1]["born"])
}

func TestWriteJSONEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	o := DefaultJSON()
	o.Array = true
	_, err := Write(path, testColumns, nil, o)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Empty(t, got)
}

func TestCompressionByExtension(t *testing.T) {
	dir := t.TempDir()
	o := DefaultCSV()

	gzPath := filepath.Join(dir, "out.csv.gz")
	_, err := Write(gzPath, testColumns, testRows, o)
	require.NoError(t, err)
	raw, err := os.ReadFile(gzPath)
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), "1,Alice,"))

	zstPath := filepath.Join(dir, "out.csv.zst")
	_, err = Write(zstPath, testColumns, testRows, o)
	require.NoError(t, err)
	raw, err = os.ReadFile(zstPath)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err = dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(plain), "1,Alice,"))
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	n, err := Write(path, testColumns, testRows, DefaultParquet())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, "PAR1", string(b[:4]))
	assert.Equal(t, "PAR1", string(b[len(b)-4:]))
}

func TestWriteInvalidOptionsLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	o := DefaultCSV()
	o.Quote = ""
	_, err := Write(path, testColumns, testRows, o)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteBadPath(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "missing", "out.csv"), testColumns, testRows, DefaultCSV())
	assert.Error(t, err)
}

func TestCopyClause(t *testing.T) {
	assert.Equal(t,
		`(FORMAT csv, COMPRESSION 'auto', DELIMITER ',', QUOTE '"', ESCAPE '"', HEADER false, NULLSTR '')`,
		CopyClause(DefaultCSV()))

	o := DefaultCSV()
	o.ForceQuote = true
	o.Header = true
	o.Sep = "'"
	o.DateFormat = "%d/%m"
	assert.Equal(t,
		`(FORMAT csv, COMPRESSION 'auto', FORCE_QUOTE *, DELIMITER '''', QUOTE '"', ESCAPE '"', HEADER true, NULLSTR '', DATEFORMAT '%d/%m')`,
		CopyClause(o))

	assert.Equal(t, `(FORMAT parquet, COMPRESSION 'snappy')`, CopyClause(DefaultParquet()))
	assert.Equal(t, `(FORMAT parquet, COMPRESSION 'uncompressed')`, CopyClause(ParquetOptions{Compression: "none"}))
	assert.Equal(t, `(FORMAT json, COMPRESSION 'none', ARRAY true)`, CopyClause(JSONOptions{Compression: "uncompressed", Array: true}))
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out.csv":          CSV,
		"/tmp/OUT.CSV.gz":  CSV,
		"a/b.parquet":      Parquet,
		"b.pq":             Parquet,
		"rows.jsonl.zst":   JSON,
		"rows.ndjson":      JSON,
		"data.export.json": JSON,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	for _, path := range []string{"out", "out.xlsx", "out.gz"} {
		_, err := FormatFromPath(path)
		assert.Error(t, err, path)
	}
}
