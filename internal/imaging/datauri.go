package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ToDataURI encodes binary data as a base64 data URL tagged with its MIME
// type. The round trip through FromDataURI is lossless.
func ToDataURI(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FromDataURI decodes a base64 data URL back into bytes and MIME type.
func FromDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("not a data URL")
	}

	rest := uri[len("data:"):]
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return nil, "", fmt.Errorf("malformed data URL: missing payload")
	}

	header := rest[:sep]
	payload := rest[sep+1:]

	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URL encoding: %s", header)
	}
	mimeType := strings.TrimSuffix(header, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL payload: %w", err)
	}

	return data, mimeType, nil
}
