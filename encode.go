package rangepatch

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// OpKind identifies a patch operation by its opcode byte.
type OpKind byte

const (
	OpDelete OpKind = '-'
	OpInsert OpKind = '+'
	OpSkip   OpKind = 'S'
)

// Op is one patch operation. Data holds the literal bytes of an insert and is nil
// otherwise.
type Op struct {
	Kind  OpKind
	Count int
	Data  []byte
}

// String renders op in the patch wire format, e.g. "S[5]" or "+[3]abc".
func (op Op) String() string {
	var sb strings.Builder
	op.appendTo(&sb)
	return sb.String()
}

func (op Op) appendTo(sb *strings.Builder) {
	sb.WriteByte(byte(op.Kind))
	sb.WriteByte('[')
	sb.WriteString(strconv.Itoa(op.Count))
	sb.WriteByte(']')
	if op.Kind == OpInsert {
		sb.Write(op.Data)
	}
}

// FormatOps renders ops as they appear after the patch header.
func FormatOps(ops []Op) string {
	var sb strings.Builder
	for _, op := range ops {
		op.appendTo(&sb)
	}
	return sb.String()
}

// Report summarizes an edit script.
type Report struct {
	OldSize   int
	NewSize   int
	Deleted   int
	Inserted  int
	Same      int
	OldDigest uint64 // xxhash64 of the old buffer
	NewDigest uint64 // xxhash64 of the new buffer
}

// Encode walks matches (sorted by Old.Start, resolved) and emits the operations that
// turn old into new.
func Encode(old, new []byte, matches []Match) ([]Op, Report) {
	var ops []Op
	rep := Report{
		OldSize:   len(old),
		NewSize:   len(new),
		OldDigest: xxhash.Sum64(old),
		NewDigest: xxhash.Sum64(new),
	}

	oc, nc := 0, 0
	emitDelete := func(n int) {
		ops = append(ops, Op{Kind: OpDelete, Count: n})
		rep.Deleted += n
		oc += n
	}
	emitInsert := func(end int) {
		ops = append(ops, Op{Kind: OpInsert, Count: end - nc, Data: new[nc:end]})
		rep.Inserted += end - nc
		nc = end
	}

	for _, m := range matches {
		if oc != m.Old.Start {
			emitDelete(m.Old.Start - oc)
		}
		if nc != m.New.Start {
			emitInsert(m.New.Start)
		}
		ops = append(ops, Op{Kind: OpSkip, Count: m.Size})
		rep.Same += m.Size
		oc, nc = m.Old.End, m.New.End
	}

	if oc != len(old) {
		emitDelete(len(old) - oc)
	}
	if nc != len(new) {
		emitInsert(len(new))
	}

	return ops, rep
}

// encodedLen is the number of bytes ops occupy in a patch.
func encodedLen(ops []Op) int {
	var total int

	for _, op := range ops {
		// opcode, brackets and decimal count
		total += 3 + len(strconv.Itoa(op.Count))

		if op.Kind == OpInsert {
			total += op.Count
		}
	}

	return total
}
