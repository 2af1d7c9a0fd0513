package common

import (
	"bytes"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"":        logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("verbose"))
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(&bytes.Buffer{})

	l := CreateLogger("sync")
	l.Infof("pulled %d records", 3)
	l.Debugf("hidden")

	assert.Contains(t, buf.String(), "INFO  | sync       | pulled 3 records")
	assert.NotContains(t, buf.String(), "hidden")

	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	assert.Contains(t, buf.String(), "DEBUG | sync       | visible")
}

func TestClientConfig(t *testing.T) {
	c := &ClientConfig{
		Origin:             "http://localhost:8080",
		TimeoutSecond:      5,
		Engine:             "pebble",
		Codec:              "json",
		SyncIntervalSecond: 30,
		SyncPolicy:         "prune",
		Coherency:          "write-back",
		LogLevel:           "info",
	}
	assert.Equal(t, 5*time.Second, c.Timeout())
	assert.Equal(t, 30*time.Second, c.SyncInterval())
	assert.False(t, c.Offline())

	s := c.String()
	assert.Contains(t, s, "REMOTE")
	assert.Contains(t, s, "http://localhost:8080")
	assert.Contains(t, s, "(volatile)")
	assert.Contains(t, s, "write-back")

	assert.Contains(t, (&ClientConfig{}).String(), "(offline)")
}
