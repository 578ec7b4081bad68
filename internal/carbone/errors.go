package carbone

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrFileAccess matches every *FileAccessError.
	ErrFileAccess = errors.New("file access error")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrRemoteRendering matches every *RemoteRenderingError.
	ErrRemoteRendering = errors.New("remote rendering error")
)

// FileAccessError reports an unreadable template or an unwritable output path.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() []error { return []error{ErrFileAccess, e.Err} }

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("call rendering service %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// RemoteRenderingError carries a non-200 answer verbatim.
type RemoteRenderingError struct {
	StatusCode int
	Body       string
}

func (e *RemoteRenderingError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("remote rendering failed: status %d: %s", e.StatusCode, body)
}

func (e *RemoteRenderingError) Unwrap() error { return ErrRemoteRendering }
