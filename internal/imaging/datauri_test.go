package imaging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/artvault/internal/imaging"
)

func TestDataURI(t *testing.T) {
	t.Run("round trip is lossless", func(t *testing.T) {
		payload := []byte{0x00, 0xFF, 0x10, 0x42, 0x00}

		uri := imaging.ToDataURI(payload, "image/jpeg")
		data, mimeType, err := imaging.FromDataURI(uri)

		require.NoError(t, err)
		assert.Equal(t, payload, data)
		assert.Equal(t, "image/jpeg", mimeType)
	})

	t.Run("defaults the mime type", func(t *testing.T) {
		uri := imaging.ToDataURI([]byte("x"), "")
		assert.Contains(t, uri, "data:application/octet-stream;base64,")
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		cases := []string{
			"",
			"image/png;base64,AAAA",
			"data:image/png,AAAA",
			"data:image/png;base64,@@@not-base64@@@",
		}
		for _, uri := range cases {
			_, _, err := imaging.FromDataURI(uri)
			assert.Error(t, err, "uri: %q", uri)
		}
	})
}
