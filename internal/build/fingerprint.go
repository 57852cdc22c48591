package build

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

// Fingerprint digests the inputs that determine a build's outcome: the build
// command stages, the working directory, and the executable's current size
// and modification time when it exists. A cached Built record is only reused
// while the fingerprint matches, so editing a tool's source or changing its
// build command invalidates the cache without any bookkeeping.
func Fingerprint(desc tool.ToolDescriptor) string {
	h := blake3.New()

	_, _ = io.WriteString(h, desc.Name)
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, desc.BuildType.String())
	_, _ = io.WriteString(h, "\x00")
	for _, stage := range desc.BuildStages() {
		for _, arg := range stage {
			_, _ = io.WriteString(h, arg)
			_, _ = io.WriteString(h, "\x1f")
		}
		_, _ = io.WriteString(h, "\x00")
	}
	_, _ = io.WriteString(h, desc.ResolveWorkDir())
	_, _ = io.WriteString(h, "\x00")
	_, _ = io.WriteString(h, desc.ExecutablePath)

	if info, err := os.Stat(desc.ExecutablePath); err == nil {
		_, _ = fmt.Fprintf(h, "\x00%d\x00%d", info.Size(), info.ModTime().UnixNano())
	}

	return hex.EncodeToString(h.Sum(nil))
}
