package engine

import (
	"fmt"
	"time"
)

// RemoteFingerprint renders the stable (modified_time, size) pair described
// in §3: "Remote fingerprint: the pair (modified_time, size) rendered as a
// stable string; changes iff either side changes."
func RemoteFingerprint(modifiedTime time.Time, size int64) string {
	return fmt.Sprintf("%d:%d", modifiedTime.UTC().Unix(), size)
}
