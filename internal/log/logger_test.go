// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithComponentAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "opgate-test"})

	l := WithComponent("coordinator")
	l.Info().Str("operation", "building").Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "coordinator", entry["component"])
	require.Equal(t, "building", entry["operation"])
	require.Equal(t, "opgate-test", entry["service"])
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(testContext(t), "req-42")
	require.Equal(t, "req-42", RequestIDFromContext(ctx))
	require.Empty(t, RequestIDFromContext(testContext(t)))
}
