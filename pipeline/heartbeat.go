package pipeline

import (
	"fmt"
	"os"
	"time"
)

// Heartbeat writes a liveness timestamp to a well-known file so external
// monitoring can detect a stalled crawler.
type Heartbeat struct {
	path string
}

// NewHeartbeat creates a Heartbeat writing to path.
func NewHeartbeat(path string) *Heartbeat {
	return &Heartbeat{path: path}
}

// Update overwrites the heartbeat file with the current unix timestamp.
func (h *Heartbeat) Update() error {
	stamp := fmt.Sprintf("%d", time.Now().Unix())
	if err := os.WriteFile(h.path, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("heartbeat: write %s: %w", h.path, err)
	}
	return nil
}
