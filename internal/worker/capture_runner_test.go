package worker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 4d795f4e6574 is hex for "My_Net".
const sampleHashLine = "WPA*02*0c5f2a1b3e4d5c6f7a8b9c0d1e2f3a4b*a0b1c2d3e4f5*112233445566*4d795f4e6574*000000000000000000000000000000000000000000000000000000000000000000*0103*02"

func TestParseHashLine(t *testing.T) {
	network, ok := parseHashLine(sampleHashLine)
	require.True(t, ok)
	assert.Equal(t, "My_Net", network.ESSID)
	assert.Equal(t, "a0:b1:c2:d3:e4:f5", network.BSSID)
}

func TestParseHashLineRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"wrong magic", "EAP*02*aa*bb*cc*dd"},
		{"too few fields", "WPA*02*aa"},
		{"essid not hex", "WPA*02*aa*a0b1c2d3e4f5*112233445566*zznothex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseHashLine(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestFormatMAC(t *testing.T) {
	assert.Equal(t, "a0:b1:c2:d3:e4:f5", formatMAC("a0b1c2d3e4f5"))
	// Unexpected lengths pass through untouched.
	assert.Equal(t, "a0b1", formatMAC("a0b1"))
}

func TestParseHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.hc22000")
	content := sampleHashLine + "\n" +
		sampleHashLine + "\n" + // duplicate network, counted once
		"WPA*02*ff*deadbeef0102*112233445566*4f74686572*00*0103*02\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	networks, count, err := parseHashFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "every hash line counts")
	require.Len(t, networks, 2, "duplicate networks are collapsed")
	assert.Equal(t, "My_Net", networks[0].ESSID)
	assert.Equal(t, "Other", networks[1].ESSID)
}

func TestParseHashFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.hc22000")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0644))

	networks, count, err := parseHashFile(path)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, networks)
}
