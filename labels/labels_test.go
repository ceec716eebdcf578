package labels

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, name := range []string{"KEKW", "monkaS", "2024-01-02 Just Chatting?/!", "ÄÖÜ pog"} {
		got, err := Decode(Encode(name))
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
}

func TestDecodeStandardAlphabet(t *testing.T) {
	// "LUL" in the standard alphabet, as written by older tooling.
	got, err := Decode("TFVM")
	require.NoError(t, err)
	assert.Equal(t, "LUL", got)
}

func TestDecodeFailure(t *testing.T) {
	_, err := Decode("not base64!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	_, err = Decode("")
	assert.True(t, errors.Is(err, ErrDecode))

	// valid base64, invalid utf-8
	_, err = Decode("/w==")
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeOrFallsBack(t *testing.T) {
	assert.Equal(t, "plain_name", DecodeOr("plain_name"))
	assert.Equal(t, "KEKW", DecodeOr(Encode("KEKW")))
}
