package rangepatch

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Source is anything a Buffer can be loaded from. Name ends up in the patch header.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource reads a file from disk. The path doubles as the source name.
type FileSource string

func (f FileSource) Name() string { return string(f) }

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// BytesSource wraps an in-memory byte slice.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Name() string { return b.Label }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// Buffer is an immutable, named copy of an input. Nothing in this package writes to
// the bytes after ReadBuffer returns.
type Buffer struct {
	name string
	data []byte
}

// NewBuffer copies data into a new Buffer.
func NewBuffer(name string, data []byte) *Buffer {
	return &Buffer{name: name, data: clone(data)}
}

func (b *Buffer) Name() string  { return b.name }
func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

// Slice returns the bytes covered by r.
func (b *Buffer) Slice(r Range) []byte {
	return b.data[r.Start:r.End]
}

// IOError reports a failure to read an input or write the patch artifact.
type IOError struct {
	Op   string // "open", "read" or "write"
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ReadBuffer loads src fully into memory.
func ReadBuffer(src Source) (*Buffer, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, &IOError{Op: "open", Name: src.Name(), Err: errors.WithStack(err)}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &IOError{Op: "read", Name: src.Name(), Err: errors.Wrap(err, "reading source")}
	}

	return &Buffer{name: src.Name(), data: data}, nil
}

func clone(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
