package annotation

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
)

// ErrNotDataURI is returned when a string lacks the data: scheme.
var ErrNotDataURI = errors.New("not a data URI")

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// ParseDataURI splits a base64 data URI into its media type and payload.
// Percent-encoded (non base64) payloads are taken verbatim.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, ErrNotDataURI
	}

	header, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found {
		return "", nil, fmt.Errorf("data URI has no payload separator")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "image/jpg" {
		mediaType = MediaTypeJPEG
	}

	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		return mediaType, []byte(payload), nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		// some encoders drop the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
	}

	return mediaType, data, nil
}

// SniffMediaType identifies PNG and JPEG payloads by their magic bytes and
// returns an empty string for anything else.
func SniffMediaType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return MediaTypePNG
	case bytes.HasPrefix(data, jpegMagic):
		return MediaTypeJPEG
	default:
		return ""
	}
}
