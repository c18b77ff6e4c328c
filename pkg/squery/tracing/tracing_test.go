package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/squery/pkg/squery/config"
	"github.com/sllt/squery/pkg/squery/logging"
)

func TestNew_Disabled(t *testing.T) {
	tp, err := New(context.Background(), config.NewMockConfig(nil), nil)

	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestNew_Zipkin(t *testing.T) {
	buf := &bytes.Buffer{}

	tp, err := New(context.Background(), config.NewMockConfig(map[string]string{
		"TRACE_EXPORTER": "Zipkin",
		"TRACER_RATIO":   "0.5",
		"APP_NAME":       "squery-test",
	}), logging.NewWriterLogger(buf, logging.INFO))

	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.Contains(t, buf.String(), defaultZipkinURL)

	_, span := tp.Tracer("test").Start(context.Background(), "sql-select")
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		desc string
		cfg  map[string]string
		err  error
	}{
		{"unknown exporter", map[string]string{"TRACE_EXPORTER": "jaeger"}, errUnknownExporter},
		{"ratio not a number", map[string]string{"TRACE_EXPORTER": "zipkin", "TRACER_RATIO": "most"}, errInvalidRatio},
		{"ratio above one", map[string]string{"TRACE_EXPORTER": "zipkin", "TRACER_RATIO": "1.5"}, errInvalidRatio},
	}

	for i, tc := range tests {
		tp, err := New(context.Background(), config.NewMockConfig(tc.cfg), nil)

		assert.Nil(t, tp, "TEST[%d], Failed.\n%s", i, tc.desc)
		assert.ErrorIs(t, err, tc.err, "TEST[%d], Failed.\n%s", i, tc.desc)
	}
}
