package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevelFromString(t *testing.T) {
	defer SetLogLevel(INFO)

	SetLogLevelFromString("debug")
	assert.Equal(t, DEBUG, GetLogLevel())

	SetLogLevelFromString("WARNING")
	assert.Equal(t, WARN, GetLogLevel())

	SetLogLevelFromString("nonsense")
	assert.Equal(t, INFO, GetLogLevel())
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLogLevel(INFO)

	SetLogLevel(WARN)
	Info("hidden %d", 1)
	assert.Zero(t, buf.Len())

	Warn("shown %d", 2)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown 2", line["message"])
	assert.Equal(t, "warning", line["level"])
}

func TestWithGatewayAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	WithGateway("binance_spot").Info("hello")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "binance_spot", line["gateway"])
}

func TestInitReadsEnv(t *testing.T) {
	defer SetLogLevel(INFO)
	t.Setenv("LOG_LEVEL", "error")

	Init()
	assert.Equal(t, ERROR, GetLogLevel())
}

func TestCallerIsCallSite(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("where")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	file, _ := line["file"].(string)
	assert.True(t, strings.HasPrefix(file, "logger_test.go:"), file)
	assert.NotContains(t, line, "func")
}
