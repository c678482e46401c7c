package agent

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// versionTag hashes the running binary and returns the first 16 hex digits.
// The control API uses the tag to tell client builds apart; it carries no
// security weight. Returns "dev" when the binary cannot be read, e.g. under
// `go run` on platforms without /proc/self/exe.
func versionTag() string {
	exe, err := os.Executable()
	if err != nil {
		return "dev"
	}
	f, err := os.Open(exe)
	if err != nil {
		return "dev"
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "dev"
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
