package rangepatch

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diffs converts ops into diff-match-patch diffs, resolving skipped and deleted
// text from before.
func Diffs(before []byte, ops []Op) ([]diffmatchpatch.Diff, error) {
	diffs := make([]diffmatchpatch.Diff, 0, len(ops))
	oc := 0

	for _, op := range ops {
		switch op.Kind {
		case OpDelete, OpSkip:
			if op.Count > len(before)-oc {
				return nil, fmt.Errorf("%w: %c at old offset %d", ErrPatchRange, op.Kind, oc)
			}
			t := diffmatchpatch.DiffEqual
			if op.Kind == OpDelete {
				t = diffmatchpatch.DiffDelete
			}
			diffs = append(diffs, diffmatchpatch.Diff{Type: t, Text: string(before[oc : oc+op.Count])})
			oc += op.Count
		case OpInsert:
			diffs = append(diffs, diffmatchpatch.Diff{Type: diffmatchpatch.DiffInsert, Text: string(op.Data)})
		}
	}

	return diffs, nil
}

// PrettyText renders ops against before with ANSI colors: deletions red, insertions
// green, unchanged text plain.
func PrettyText(before []byte, ops []Op) (string, error) {
	diffs, err := Diffs(before, ops)
	if err != nil {
		return "", err
	}

	return diffmatchpatch.New().DiffPrettyText(diffs), nil
}

// Distance is the Levenshtein distance implied by ops, counted in runes.
func Distance(before []byte, ops []Op) (int, error) {
	diffs, err := Diffs(before, ops)
	if err != nil {
		return 0, err
	}

	return diffmatchpatch.New().DiffLevenshtein(diffs), nil
}
