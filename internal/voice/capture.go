// ABOUTME: Caller-owned captured audio handle with exactly-once resource release
// ABOUTME: Derives the upload filename extension from the captured content type

package voice

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Recorder is the interface to the capture subsystem. Implementations live
// outside this module; tests use fixture files.
type Recorder interface {
	// Record captures audio until the context is cancelled and returns a
	// handle to the captured data. Ownership of the handle transfers to
	// the caller, who must Release it.
	Record(ctx context.Context) (*Capture, error)
}

// Capture is a handle to locally captured audio backed by a temporary file.
// Ownership transfers to the conversation coordinator at hand-off; the owner
// must call Release exactly once, after which the handle must not be reused.
type Capture struct {
	path        string
	contentType string

	releaseOnce sync.Once
	released    atomic.Bool
}

// NewCapture wraps a captured audio file. The file is owned by the returned
// handle and removed on Release.
func NewCapture(path, contentType string) *Capture {
	return &Capture{path: path, contentType: contentType}
}

// Path returns the local file path backing the capture.
func (c *Capture) Path() string {
	return c.path
}

// ContentType returns the captured MIME type, e.g. "audio/webm;codecs=opus".
func (c *Capture) ContentType() string {
	return c.contentType
}

// FileName returns the upload filename with the extension derived from the
// content type.
func (c *Capture) FileName() string {
	return "voice_message." + Extension(c.contentType)
}

// LocalURL returns a URL for immediate optimistic playback of the capture
// before the server-issued audio URL replaces it.
func (c *Capture) LocalURL() string {
	return "file://" + c.path
}

// Open opens the backing file for reading. The caller closes the reader;
// closing does not release the capture.
func (c *Capture) Open() (io.ReadCloser, error) {
	return os.Open(c.path)
}

// Release removes the backing file. Exactly one call has effect; later calls
// are no-ops. Returns the removal error from the effective call, if any.
func (c *Capture) Release() error {
	var err error
	c.releaseOnce.Do(func() {
		c.released.Store(true)
		err = os.Remove(c.path)
	})
	return err
}

// Released reports whether Release has been called. Safe to call from any
// goroutine while another releases.
func (c *Capture) Released() bool {
	return c.released.Load()
}

// Extension maps a captured content type to an upload file extension.
// Unrecognized types fall back to webm, the common capture default.
func Extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "mp4"):
		return "mp4"
	case strings.Contains(contentType, "wav"):
		return "wav"
	case strings.Contains(contentType, "ogg"):
		return "ogg"
	default:
		return "webm"
	}
}
