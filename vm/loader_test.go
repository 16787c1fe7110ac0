package vm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.nbvm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadImageValidProgram(t *testing.T) {
	code := asmOp(asmPush(nil, 7), Halt)
	path := writeTempImage(t, buildImage(code, 0))

	got, entry, err := LoadImage(path, NopLogger())
	require.NoError(t, err)
	assert.Equal(t, code, got)
	assert.Equal(t, uint32(0), entry)
}

func TestLoadImageMissingFile(t *testing.T) {
	_, _, err := LoadImage(filepath.Join(t.TempDir(), "missing.nbvm"), NopLogger())
	require.Error(t, err)
	assert.Equal(t, FileNotFound, KindOf(err))
}

func TestLoadImageTooSmall(t *testing.T) {
	path := writeTempImage(t, []byte{0x4E, 0x42, 0x56, 0x4D})
	_, _, err := LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, KindOf(err))
}

func TestLoadImageBadMagic(t *testing.T) {
	img := buildImage([]byte{byte(Halt)}, 0)
	img[0] = 0x00
	path := writeTempImage(t, img)

	_, _, err := LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, KindOf(err))
}

func TestLoadImageBadVersion(t *testing.T) {
	img := buildImage([]byte{byte(Halt)}, 0)
	img[headerVersionOff] = 0x02
	path := writeTempImage(t, img)

	_, _, err := LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, KindOf(err))
}

func TestLoadImageCodeSizeExceedsFile(t *testing.T) {
	img := buildImage([]byte{byte(Halt)}, 0)
	img[headerCodeSizeOff] = 0xFF
	path := writeTempImage(t, img)

	_, _, err := LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, KindOf(err))
}

func TestLoadImageEntryPointOutOfBounds(t *testing.T) {
	img := buildImage([]byte{byte(Halt), byte(Halt)}, 9)
	path := writeTempImage(t, img)

	_, _, err := LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, KindOf(err))
}

func TestLoadImageTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.nbvm")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(maxBytecodeSize+1))
	require.NoError(t, f.Close())

	_, _, err = LoadImage(path, NopLogger())
	require.Error(t, err)
	assert.Equal(t, FileTooLarge, KindOf(err))
}
