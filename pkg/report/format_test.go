package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

func sampleReport() *report.Report {
	r := report.New()

	bundles := report.NewNode()
	bundles.Set("bundle-0", report.GroupRecord{Instances: 1200}.Node())
	bundles.Set("bundle-1", report.GroupRecord{Instances: 3}.Node())
	r.Set(testEntityNode, "bundle", bundles)

	hist := report.NewNode()
	hist.Set("revision", report.Histogram{1: 10, 4: 2})
	r.Set(testEntityNode, "histogram", hist)

	r.Set(testEntityUser, "base_fields", 17)

	return r
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	for _, f := range report.Formats() {
		require.NoError(t, report.ValidateFormat(f))
	}

	require.ErrorIs(t, report.ValidateFormat("xml"), report.ErrUnsupportedFormat)
}

func TestEncode_YAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Encode(&buf, sampleReport(), report.FormatYAML))

	out := buf.String()
	assert.Contains(t, out, "bundle-0:\n")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("node:")), bytes.Index(buf.Bytes(), []byte("user:")))
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("1: 10")), bytes.Index(buf.Bytes(), []byte("4: 2")))
	assert.Contains(t, out, "base_fields: 17")
}

func TestEncode_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Encode(&buf, sampleReport(), report.FormatText))

	out := buf.String()
	assert.Contains(t, out, "2 groups, 1,203 instances")
	assert.Contains(t, out, "revision: 12 entities, counts 1..4")
	assert.Contains(t, out, "Total: 3 entries")
}

func TestEncode_Plot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Encode(&buf, sampleReport(), report.FormatPlot))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "node revision")
}

func TestEncode_JSONEndsWithNewline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, report.Encode(&buf, sampleReport(), report.FormatJSON))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("}\n")))
}

func TestEncode_Unknown(t *testing.T) {
	t.Parallel()

	err := report.Encode(&bytes.Buffer{}, sampleReport(), "xml")
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}
