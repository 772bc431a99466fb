package rangepatch

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(errReader{}), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestReadBuffer(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "in.bin")
		require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 0xff}, 0o600))

		b, err := ReadBuffer(FileSource(path))
		require.NoError(t, err)
		assert.Equal(t, path, b.Name())
		assert.Equal(t, 4, b.Len())
		assert.Equal(t, []byte{1, 2}, b.Slice(Range{1, 3}))
	})

	t.Run("bytes", func(t *testing.T) {
		b, err := ReadBuffer(BytesSource{Label: "mem", Data: []byte("abc")})
		require.NoError(t, err)
		assert.Equal(t, "mem", b.Name())
		assert.Equal(t, []byte("abc"), b.Bytes())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadBuffer(FileSource(filepath.Join(t.TempDir(), "missing")))

		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, "open", ioErr.Op)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("read failure", func(t *testing.T) {
		_, err := ReadBuffer(brokenSource{})

		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, "read", ioErr.Op)
		assert.Contains(t, err.Error(), "read broken: reading source: device gone")
	})
}

func TestNewBufferCopies(t *testing.T) {
	data := []byte("abc")
	b := NewBuffer("x", data)
	data[0] = 'z'
	assert.Equal(t, []byte("abc"), b.Bytes())
}
