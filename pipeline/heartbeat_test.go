package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	hb := NewHeartbeat(path)

	before := time.Now().Unix()
	require.NoError(t, hb.Update())
	after := time.Now().Unix()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	stamp, err := strconv.ParseInt(string(data), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stamp, before)
	assert.LessOrEqual(t, stamp, after)
}

func TestHeartbeatUpdateOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	hb := NewHeartbeat(path)

	require.NoError(t, os.WriteFile(path, []byte("0"), 0o644))
	require.NoError(t, hb.Update())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "0", string(data))
}
