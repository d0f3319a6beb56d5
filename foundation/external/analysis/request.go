package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/superfeelapi/pitchFeedback/foundation/audio"
)

const (
	// Path is appended to the configured base URL.
	Path = "/analyze-audio"

	// FileField is the multipart field carrying the audio.
	FileField = "file"

	defaultMimeType = "application/octet-stream"
)

// Payload is the encoded multipart body for one artifact.
type Payload struct {
	Body        *bytes.Buffer
	ContentType string
}

// EncodePayload writes the artifact's bytes, filename and mime type into a
// multipart body with a single file field.
func EncodePayload(a *audio.Artifact) (Payload, error) {
	if a == nil {
		return Payload{}, errors.New("artifact is nil")
	}

	body := bytes.Buffer{}
	writer := multipart.NewWriter(&body)

	mimeType := a.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, escapeQuotes(a.Name)))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return Payload{}, err
	}

	if _, err := part.Write(a.Data); err != nil {
		return Payload{}, err
	}

	if err := writer.Close(); err != nil {
		return Payload{}, err
	}

	return Payload{Body: &body, ContentType: writer.FormDataContentType()}, nil
}

// NewRequest builds the POST request for the analysis endpoint.
func NewRequest(ctx context.Context, endpoint string, a *audio.Artifact) (*http.Request, error) {
	payload, err := EncodePayload(a)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload.Body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	return req, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
