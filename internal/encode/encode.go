package encode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatNDJSON  Format = "ndjson"
)

// Compression is the stream compression applied to line-delimited output.
// Parquet pages are always snappy-compressed regardless of this setting.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
)

const (
	contentTypeParquet = "application/vnd.apache.parquet"
	contentTypeNDJSON  = "application/x-ndjson"
	encodingSnappy     = "x-snappy-framed"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatNDJSON, "jsonl", "json":
		return FormatNDJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy:
		return CompressionSnappy, nil
	}
	return "", fmt.Errorf("unsupported output compression %q", s)
}

// Batch is one encoded output object.
type Batch struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
	Extension       string
	Records         int
}

// Encode serialises records into a single batch. An empty input yields a nil
// batch and no error: there is nothing to publish.
func Encode[T any](format Format, compression Compression, records []T) (*Batch, error) {
	if len(records) == 0 {
		return nil, nil
	}
	switch format {
	case FormatParquet:
		return encodeParquet(records)
	case FormatNDJSON:
		return encodeNDJSON(records, compression)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func encodeParquet[T any](records []T) (*Batch, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return &Batch{
		Body:        buf.Bytes(),
		ContentType: contentTypeParquet,
		Extension:   "parquet",
		Records:     len(records),
	}, nil
}

func encodeNDJSON[T any](records []T, compression Compression) (*Batch, error) {
	var buf bytes.Buffer
	var out io.Writer = &buf
	var sw *snappy.Writer
	if compression == CompressionSnappy {
		sw = snappy.NewBufferedWriter(&buf)
		out = sw
	}

	enc := json.NewEncoder(out)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}

	b := &Batch{ContentType: contentTypeNDJSON, Extension: "ndjson", Records: len(records)}
	if sw != nil {
		if err := sw.Close(); err != nil {
			return nil, fmt.Errorf("flush snappy stream: %w", err)
		}
		b.ContentEncoding = encodingSnappy
		b.Extension = "ndjson.sz"
	}
	b.Body = buf.Bytes()
	return b, nil
}
