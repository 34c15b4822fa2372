package encode

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/parquet-go/parquet-go"
	"github.com/qivr/analytics-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64p(v float64) *float64 { return &v }

func aggregates() []domain.OutcomeAggregate {
	return []domain.OutcomeAggregate{
		{
			Region: "NSW", OutcomeType: "PROM-A", AgeBracket: "25-34", Gender: "F",
			MeanBaselineScore: f64p(45.5), MeanFinalScore: f64p(65.5), ImprovementPct: f64p(44), GroupSize: 12,
		},
		{
			Region: "VIC", OutcomeType: "ODI", AgeBracket: "45-54", Gender: "M",
			GroupSize: 10,
		},
	}
}

func TestEncode_EmptyInputIsNoop(t *testing.T) {
	for _, f := range []Format{FormatParquet, FormatNDJSON} {
		b, err := Encode[domain.OutcomeAggregate](f, CompressionNone, nil)
		require.NoError(t, err)
		assert.Nil(t, b)
	}
}

func TestEncode_NDJSON(t *testing.T) {
	b, err := Encode(FormatNDJSON, CompressionNone, aggregates())
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "ndjson", b.Extension)
	assert.Equal(t, contentTypeNDJSON, b.ContentType)
	assert.Empty(t, b.ContentEncoding)
	assert.Equal(t, 2, b.Records)

	lines := strings.Split(strings.TrimRight(string(b.Body), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"group_size":12`)
	assert.Contains(t, lines[0], `"mean_baseline_score":45.5`)
	// Nullable numerics stay present so every line has the same fields.
	assert.Contains(t, lines[1], `"mean_baseline_score":null`)
	assert.Contains(t, lines[1], `"improvement_pct":null`)
}

func TestEncode_NDJSONSnappy(t *testing.T) {
	b, err := Encode(FormatNDJSON, CompressionSnappy, aggregates())
	require.NoError(t, err)

	assert.Equal(t, "ndjson.sz", b.Extension)
	assert.Equal(t, encodingSnappy, b.ContentEncoding)

	raw, err := io.ReadAll(snappy.NewReader(bytes.NewReader(b.Body)))
	require.NoError(t, err)

	sc := bufio.NewScanner(bytes.NewReader(raw))
	n := 0
	for sc.Scan() {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestEncode_NDJSONDateColumn(t *testing.T) {
	recs := []domain.UsageRecord{{
		TenantID:         "7b0e8f3a-1111-4c2d-8e9f-000000000001",
		Date:             domain.NewDate(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)),
		AppointmentCount: 4,
	}}
	b, err := Encode(FormatNDJSON, CompressionNone, recs)
	require.NoError(t, err)
	assert.Contains(t, string(b.Body), `"date":"2026-10-14"`)
}

func TestEncode_ParquetReadBack(t *testing.T) {
	in := aggregates()
	b, err := Encode(FormatParquet, CompressionNone, in)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "parquet", b.Extension)
	assert.Equal(t, contentTypeParquet, b.ContentType)
	assert.Equal(t, "PAR1", string(b.Body[:4]))

	out, err := parquet.Read[domain.OutcomeAggregate](bytes.NewReader(b.Body), int64(len(b.Body)))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(12), out[0].GroupSize)
	require.NotNil(t, out[0].MeanFinalScore)
	assert.Equal(t, 65.5, *out[0].MeanFinalScore)
	assert.Nil(t, out[1].MeanBaselineScore)
}

func TestEncode_Deterministic(t *testing.T) {
	for _, f := range []Format{FormatParquet, FormatNDJSON} {
		t.Run(string(f), func(t *testing.T) {
			a, err := Encode(f, CompressionSnappy, aggregates())
			require.NoError(t, err)
			b, err := Encode(f, CompressionSnappy, aggregates())
			require.NoError(t, err)
			assert.Equal(t, a.Body, b.Body)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	f, err = ParseFormat("JSONL")
	require.NoError(t, err)
	assert.Equal(t, FormatNDJSON, f)

	_, err = ParseFormat("csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
}
