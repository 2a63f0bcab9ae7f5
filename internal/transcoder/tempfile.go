package transcoder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// tempPath builds a collision-safe path inside the working temp directory.
// Concurrent requests transcode at the same time, so the name carries a
// nanosecond timestamp plus a random suffix.
func tempPath(dir, prefix, ext string) string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	name := fmt.Sprintf("%s_%d_%s.%s", prefix, time.Now().UnixNano(), hex.EncodeToString(suffix[:]), ext)
	return filepath.Join(dir, name)
}

// cleanupFiles removes temp files, logging (not failing) on errors. It runs
// on every exit path of a transcoding operation, including cancellation.
func cleanupFiles(log zerolog.Logger, paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("path", p).Err(err).Msg("Failed to cleanup temp file")
		}
	}
}
