package tlssession

import (
	"io"
	"os"

	"github.com/rdpgo/rdp-core/internal/common"
)

// openKeyLog opens path for appending NSS-format key-log lines, wrapping
// it in a synchronized writer since concurrent writers are not otherwise
// guaranteed atomic (§6). An empty path disables key-logging.
func openKeyLog(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &syncedKeyLog{f: f, w: common.SynchronizeWriter(f)}, nil
}

type syncedKeyLog struct {
	f *os.File
	w io.Writer
}

func (s *syncedKeyLog) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *syncedKeyLog) Close() error                { return s.f.Close() }
