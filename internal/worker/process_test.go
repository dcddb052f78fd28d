package worker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitedBufferCapsCapture(t *testing.T) {
	var buf limitedBuffer

	n, err := buf.Write(bytes.Repeat([]byte("x"), maxStderrCapture+500))
	assert.NoError(t, err)
	assert.Equal(t, maxStderrCapture+500, n, "writes report full consumption")
	assert.Len(t, buf.String(), maxStderrCapture)

	// Further writes are swallowed without error.
	n, err = buf.Write([]byte("more"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, buf.String(), maxStderrCapture)
}

func TestLimitedBufferTrimsWhitespace(t *testing.T) {
	var buf limitedBuffer
	buf.Write([]byte("  error: device not found  \n"))
	assert.Equal(t, "error: device not found", buf.String())
}

func TestLimitedBufferPartialFit(t *testing.T) {
	var buf limitedBuffer
	buf.Write(bytes.Repeat([]byte("a"), maxStderrCapture-2))
	buf.Write([]byte("bbbb"))
	s := buf.String()
	assert.Len(t, s, maxStderrCapture)
	assert.True(t, strings.HasSuffix(s, "bb"), "only the remaining capacity is kept")
}
