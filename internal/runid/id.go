// Package runid provides identifiers for segmentation runs.
package runid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new run ID.
// Format: run-<timestamp>-<random>
// Example: run-1701432000-a1b2c3d4
func Generate() string {
	return generateAt(time.Now())
}

func generateAt(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("run-%d-%s", now.Unix(), random[:8])
}
