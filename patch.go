// Package rangepatch generates and applies byte-level patch files. Common runs between
// the old and new input are found by expanding same-valued anchor bytes, searched in
// parallel per byte value, and the patch is the delete/insert/skip script that walks
// both inputs in order.
//
// A patch is two header lines naming the old and new input, followed by operations:
//
//	-[N]        drop N bytes of the old input
//	+[N]<data>  insert the N bytes that follow
//	S[N]        copy N bytes from the old input
package rangepatch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrBadHeader  = errors.New("malformed patch header")
	ErrPatchRange = errors.New("operation exceeds old input")
)

// MakePatch reads both sources, computes the patch, and writes it to patch. Both
// inputs are read before any matching starts. If writing fails, the returned Report
// is still complete.
func MakePatch(ctx context.Context, before, after Source, patch io.Writer, o ...FuncOption) (Report, error) {
	oldBuf, err := ReadBuffer(before)
	if err != nil {
		return Report{}, err
	}
	newBuf, err := ReadBuffer(after)
	if err != nil {
		return Report{}, err
	}

	res, err := Diff(ctx, oldBuf.Bytes(), newBuf.Bytes(), o...)
	if err != nil {
		return Report{}, err
	}

	if err := WritePatch(patch, oldBuf.Name(), newBuf.Name(), res.Ops); err != nil {
		return res.Report, err
	}

	return res.Report, nil
}

// WritePatch writes the header and ops to w.
func WritePatch(w io.Writer, oldName, newName string, ops []Op) error {
	if strings.ContainsAny(oldName, "\r\n") || strings.ContainsAny(newName, "\r\n") {
		return fmt.Errorf("%w: name contains a line break", ErrBadHeader)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%s\n", oldName, newName)

	for _, op := range ops {
		bw.WriteByte(byte(op.Kind))
		bw.WriteByte('[')
		bw.WriteString(strconv.Itoa(op.Count))
		bw.WriteByte(']')
		if op.Kind == OpInsert {
			bw.Write(op.Data)
		}
	}

	if err := bw.Flush(); err != nil {
		return &IOError{Op: "write", Name: "patch", Err: err}
	}
	return nil
}

// Header holds the input names recorded in a patch.
type Header struct {
	OldName, NewName string
}

// ApplyPatch rebuilds the new input from before and patch.
func ApplyPatch(before, patch []byte) ([]byte, error) {
	patchBR := newTrackedReader(patch)
	if _, err := readHeader(patchBR); err != nil {
		return nil, err
	}

	return applyOps(before, patchBR)
}

// ReadHeader returns the input names recorded in patch.
func ReadHeader(patch []byte) (Header, error) {
	return readHeader(newTrackedReader(patch))
}

func readHeader(r *trackedReader) (Header, error) {
	var h Header
	var err error

	if h.OldName, err = readLine(r); err != nil {
		return h, err
	}
	if h.NewName, err = readLine(r); err != nil {
		return h, err
	}
	return h, nil
}

func readLine(r *trackedReader) (string, error) {
	var line []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: missing line break, pos: %d", ErrBadHeader, r.pos())
		}
		if c == '\n' {
			return string(line), nil
		}
		line = append(line, c)
	}
}

// ApplyOps applies ops directly, without a patch header.
func ApplyOps(before []byte, ops []Op) ([]byte, error) {
	after := new(bytes.Buffer)
	oc := 0

	for _, op := range ops {
		switch op.Kind {
		case OpDelete, OpSkip:
			if op.Count > len(before)-oc {
				return nil, fmt.Errorf("%w: %c at old offset %d", ErrPatchRange, op.Kind, oc)
			}
			if op.Kind == OpSkip {
				after.Write(before[oc : oc+op.Count])
			}
			oc += op.Count
		case OpInsert:
			if op.Count != len(op.Data) {
				return nil, fmt.Errorf("insert of %d bytes carries %d bytes of data", op.Count, len(op.Data))
			}
			after.Write(op.Data)
		default:
			return nil, fmt.Errorf("unexpected operation byte: %x", byte(op.Kind))
		}
	}

	if err := checkConsumed(oc, before); err != nil {
		return nil, err
	}
	return after.Bytes(), nil
}

// checkConsumed fails unless the operations walked the whole old input. Every
// encoded patch does, so a shorter walk means the patch was cut off.
func checkConsumed(oc int, before []byte) error {
	if oc != len(before) {
		return fmt.Errorf("%w: patch ends at old offset %d of %d", io.ErrUnexpectedEOF, oc, len(before))
	}
	return nil
}

func applyOps(before []byte, patchBR *trackedReader) ([]byte, error) {
	after := new(bytes.Buffer)
	oc := 0

	for {
		op, tl, err := readOp(patchBR)
		if err == io.EOF {
			if err := checkConsumed(oc, before); err != nil {
				return nil, err
			}
			return after.Bytes(), nil
		} else if err != nil {
			return nil, err
		}

		switch op {
		case OpSkip:
			if tl > len(before)-oc {
				return nil, fmt.Errorf("%w, pos: %d", ErrPatchRange, patchBR.pos())
			}
			after.Write(before[oc : oc+tl])
			oc += tl
		case OpDelete:
			if tl > len(before)-oc {
				return nil, fmt.Errorf("%w, pos: %d", ErrPatchRange, patchBR.pos())
			}
			oc += tl
		case OpInsert:
			if _, err := io.CopyN(after, patchBR, int64(tl)); err != nil {
				return nil, io.ErrUnexpectedEOF
			}
		}
	}
}

// readOp reads one "<op>[<decimal count>]" token. A clean end of patch returns io.EOF.
func readOp(r *trackedReader) (OpKind, int, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	op := OpKind(c)
	switch op {
	case OpDelete, OpInsert, OpSkip:
	default:
		return 0, 0, fmt.Errorf("error decoding operation %q, pos: %d", string(c), r.pos())
	}

	if c, err = r.ReadByte(); err != nil {
		return 0, 0, io.ErrUnexpectedEOF
	} else if c != '[' {
		return 0, 0, fmt.Errorf("expected '[' after operation, pos: %d", r.pos())
	}

	s := make([]byte, 0, 10)
	for {
		c, err := r.ReadByte()
		if err != nil {
			return 0, 0, io.ErrUnexpectedEOF
		}
		switch {
		case c >= '0' && c <= '9':
			s = append(s, c)
			if len(s) > 18 {
				return 0, 0, fmt.Errorf("operation length too long, pos: %d", r.pos())
			}
		case c == ']':
			if len(s) == 0 {
				return 0, 0, fmt.Errorf("missing operation length, pos: %d", r.pos())
			}
			l, err := strconv.Atoi(string(s))
			if err != nil {
				return 0, 0, fmt.Errorf("error decoding length: %w, pos: %d", err, r.pos())
			}
			return op, l, nil
		default:
			return 0, 0, fmt.Errorf("error decoding length %q, pos: %d", string(c), r.pos())
		}
	}
}

type trackedReader struct {
	*bytes.Reader
}

func newTrackedReader(b []byte) *trackedReader {
	return &trackedReader{
		Reader: bytes.NewReader(b),
	}
}

func (t *trackedReader) pos() int64 {
	return t.Size() - int64(t.Len())
}
