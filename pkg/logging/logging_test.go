package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerStampsService(t *testing.T) {
	logger := NewLogger(Config{
		Service: ServiceConfig{Env: "test", AppName: "vdb"},
	})

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("cluster_id", "c-1").Info("cluster created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "cluster created", entry[fieldKeyMsg])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "vdb", entry["serviceName"])
	assert.Equal(t, "c-1", entry["cluster_id"])
	assert.Contains(t, entry, fieldKeyTime)
}
