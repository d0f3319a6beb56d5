// Package audio holds the canonical representation of a piece of audio that
// is ready to be submitted for analysis, whichever way it entered the system.
package audio

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoFile is returned by FromFile when nothing was selected.
var ErrNoFile = errors.New("no file provided")

// RawFile is a file as picked by the user, before it becomes an artifact.
type RawFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Artifact is one finalized, submittable unit of audio plus its metadata.
type Artifact struct {
	ID        uuid.UUID
	Name      string
	SizeBytes int64
	MimeType  string
	Data      []byte
	Handle    Handle
}

// New wraps data verbatim and allocates a playable handle for it. The caller
// owns the handle and must release it when the artifact is discarded.
func New(handles *Handles, name, mimeType string, data []byte) *Artifact {
	return &Artifact{
		ID:        uuid.New(),
		Name:      name,
		SizeBytes: int64(len(data)),
		MimeType:  mimeType,
		Data:      data,
		Handle:    handles.Allocate(data, mimeType),
	}
}

// FromFile wraps a user-picked file. No transcoding or codec validation is
// performed.
func FromFile(handles *Handles, f *RawFile) (*Artifact, error) {
	if f == nil {
		return nil, ErrNoFile
	}

	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = detectMimeType(f.Name, f.Data)
	}

	return New(handles, f.Name, mimeType, f.Data), nil
}

// FromPath reads a file from disk and wraps it like FromFile.
func FromPath(handles *Handles, path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return FromFile(handles, &RawFile{
		Name: filepath.Base(path),
		Data: data,
	})
}

// FormatSize renders a byte count the way the upload widget displays it.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
	}
}

// audioTypes is consulted before the platform mime table.
var audioTypes = map[string]string{
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

func detectMimeType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
