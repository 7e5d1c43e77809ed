package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wI2L/jsondiff"
)

// Diff returns the RFC 6902 operations that turn from into to. Applying
// them with Patch reproduces to.
func Diff(from, to *Node) ([]Operation, error) {
	p, err := jsondiff.CompareJSON(Serialize(from), Serialize(to))
	if err != nil {
		return nil, fmt.Errorf("compare documents: %w", err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var ops []Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, err
	}
	// jsondiff decodes values into float64; take them from the target
	// document instead so number literals keep their shape. Appends to the
	// same array are the tail of that array in to, in order.
	appends := make(map[string]int)
	for _, op := range ops {
		if parent, ok := appendParent(op); ok {
			appends[parent]++
		}
	}
	appended := make(map[string]int)
	for i := range ops {
		if !ops[i].takesValue() {
			continue
		}
		path := ops[i].Path
		if parent, ok := appendParent(ops[i]); ok {
			if arr, found := to.Lookup(parent); found && arr.Kind == ArrayKind {
				path = parent + "/" + strconv.Itoa(len(arr.Values)-appends[parent]+appended[parent])
			}
			appended[parent]++
		}
		if v, ok := to.Lookup(path); ok {
			ops[i].Value = v
		} else if ops[i].Value == nil {
			ops[i].Value = Null()
		}
	}
	return ops, nil
}

func appendParent(op Operation) (string, bool) {
	if op.Op != "add" {
		return "", false
	}
	return strings.CutSuffix(op.Path, "/-")
}
