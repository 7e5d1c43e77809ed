package document

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Operation is one RFC 6902 operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value *Node  `json:"value,omitempty"`
}

var supportedOps = map[string]bool{
	"add":     true,
	"remove":  true,
	"replace": true,
	"move":    true,
	"copy":    true,
	"test":    true,
}

func (o Operation) takesValue() bool {
	return o.Op == "add" || o.Op == "replace" || o.Op == "test"
}

// HasFrom reports whether the operation carries a from pointer. Move and
// copy always do, even when it is the root pointer "".
func (o Operation) HasFrom() bool {
	return o.From != "" || o.Op == "move" || o.Op == "copy"
}

// MarshalJSON writes "from" whenever HasFrom reports it.
func (o Operation) MarshalJSON() ([]byte, error) {
	type wire struct {
		Op    string  `json:"op"`
		Path  string  `json:"path"`
		From  *string `json:"from,omitempty"`
		Value *Node   `json:"value,omitempty"`
	}
	w := wire{Op: o.Op, Path: o.Path, Value: o.Value}
	if o.HasFrom() {
		from := o.From
		w.From = &from
	}
	return json.Marshal(w)
}

// Patch applies ops to target in order using the RFC 6902 implementation
// of github.com/evanphx/json-patch. The first failing operation aborts the
// patch with a *PatchError and target is left untouched.
//
// Keys that exist in target keep their order in the result; keys added by
// the patch follow them.
func Patch(target *Node, ops []Operation) (*Node, error) {
	ops = append([]Operation(nil), ops...)
	for i, op := range ops {
		if !supportedOps[op.Op] {
			return nil, &PatchError{
				Index: i,
				Op:    op.Op,
				Path:  op.Path,
				Kind:  PatchInvalidOperation,
				Err:   fmt.Errorf("unsupported operation %q", op.Op),
			}
		}
		if op.takesValue() && op.Value == nil {
			ops[i].Value = Null()
		}
	}

	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	decoded, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, &PatchError{Index: -1, Kind: PatchInvalidOperation, Err: err}
	}

	// Applied one at a time so a failure can name its operation.
	doc := Serialize(target)
	for i := range decoded {
		doc, err = jsonpatch.Patch{decoded[i]}.Apply(doc)
		if err != nil {
			return nil, &PatchError{
				Index: i,
				Op:    ops[i].Op,
				Path:  ops[i].Path,
				Kind:  classifyPatchError(err),
				Err:   err,
			}
		}
	}
	patched, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return restoreOrder(target, patched), nil
}

// restoreOrder reorders the object keys of patched to follow orig. Array
// elements are only matched when the array kept its length; otherwise
// positions no longer line up and the patched order stands.
func restoreOrder(orig, patched *Node) *Node {
	switch {
	case kindOf(orig) == ObjectKind && kindOf(patched) == ObjectKind:
		res := &Node{
			Kind:   ObjectKind,
			Keys:   make([]string, 0, len(patched.Keys)),
			Values: make([]*Node, 0, len(patched.Values)),
		}
		seen := make(map[string]bool, len(patched.Keys))
		for i, k := range orig.Keys {
			if v, ok := patched.Get(k); ok {
				res.Keys = append(res.Keys, k)
				res.Values = append(res.Values, restoreOrder(orig.Values[i], v))
				seen[k] = true
			}
		}
		for i, k := range patched.Keys {
			if !seen[k] {
				res.Keys = append(res.Keys, k)
				res.Values = append(res.Values, patched.Values[i])
			}
		}
		return res
	case kindOf(orig) == ArrayKind && kindOf(patched) == ArrayKind:
		if len(orig.Values) != len(patched.Values) {
			return patched
		}
		res := &Node{Kind: ArrayKind, Values: make([]*Node, len(patched.Values))}
		for i, v := range patched.Values {
			res.Values[i] = restoreOrder(orig.Values[i], v)
		}
		return res
	}
	return patched
}

// DecodeOperations parses a JSON array of RFC 6902 operations.
func DecodeOperations(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func classifyPatchError(err error) PatchErrorKind {
	switch {
	case errors.Is(err, jsonpatch.ErrTestFailed):
		return PatchTestFailed
	case errors.Is(err, jsonpatch.ErrMissing):
		return PatchPathNotFound
	case errors.Is(err, jsonpatch.ErrInvalidIndex):
		return PatchInvalidIndex
	case errors.Is(err, jsonpatch.ErrUnknownType), errors.Is(err, jsonpatch.ErrInvalid):
		return PatchInvalidOperation
	default:
		return PatchFailed
	}
}
