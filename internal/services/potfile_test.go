package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPotfileRecordAndDeduplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.potfile")
	s, err := NewPotfileService(path)
	require.NoError(t, err)

	written, err := s.Record("HomeNet", "aa:bb:cc:dd:ee:ff", "hunter2")
	require.NoError(t, err)
	assert.True(t, written)

	// Same entry again is a no-op.
	written, err = s.Record("HomeNet", "aa:bb:cc:dd:ee:ff", "hunter2")
	require.NoError(t, err)
	assert.False(t, written)

	// Same network, different password is a new entry.
	written, err = s.Record("HomeNet", "aa:bb:cc:dd:ee:ff", "hunter3")
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff:HomeNet:hunter2\naa:bb:cc:dd:ee:ff:HomeNet:hunter3\n", string(data))
}

func TestPotfileSeedsFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeded.potfile")
	require.NoError(t, os.WriteFile(path,
		[]byte("aa:bb:cc:dd:ee:ff:HomeNet:hunter2\n"), 0644))

	s, err := NewPotfileService(path)
	require.NoError(t, err)

	written, err := s.Record("HomeNet", "aa:bb:cc:dd:ee:ff", "hunter2")
	require.NoError(t, err)
	assert.False(t, written, "entries from disk must be deduplicated")
}

func TestPotfileCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "pot")
	_, err := NewPotfileService(path)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
