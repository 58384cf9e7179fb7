package registry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(format string) (*productionLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := &productionLogger{
		level:       "debug",
		debug:       true,
		serviceName: "registry",
		component:   "registry",
		format:      format,
		output:      buf,
	}
	return l, buf
}

func TestLogger_JSONFormat(t *testing.T) {
	l, buf := newTestLogger("json")

	l.Info("instance registered", map[string]interface{}{"instance_id": "abc"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "registry", entry["service"])
	assert.Equal(t, "instance registered", entry["message"])
	assert.Equal(t, "abc", entry["instance_id"])
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newTestLogger("text")

	l.Warn("health check failed", map[string]interface{}{"instance_id": "abc"})

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "health check failed")
	assert.Contains(t, line, "instance_id=abc")
}

func TestLogger_DebugGatedByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	l := &productionLogger{level: "info", debug: false, serviceName: "s", component: "c", format: "json", output: buf}

	l.Debug("should not appear", nil)
	assert.Empty(t, buf.String())
}

func TestLogger_WithComponent_DoesNotMutateOriginal(t *testing.T) {
	l, _ := newTestLogger("json")
	child := l.WithComponent("registry/health")

	assert.Equal(t, "registry", l.component)

	childLogger, ok := child.(*productionLogger)
	require.True(t, ok)
	assert.Equal(t, "registry/health", childLogger.component)
}

func TestNewLogger_ReturnsComponentAwareLogger(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "registry")
	require.NotNil(t, logger)
	_, ok := logger.(ComponentAwareLogger)
	assert.True(t, ok)
}

func TestLogger_EntryIsSingleLine(t *testing.T) {
	l, buf := newTestLogger("json")
	l.Error("boom", map[string]interface{}{"err": "oops"})

	assert.Equal(t, 1, strings.Count(strings.TrimRight(buf.String(), "\n"), "\n")+1)
}
