package document

// Merge applies patch onto target and returns the merged document.
//
// For every key of patch, in order:
//   - null deletes the key from target;
//   - booleans, numbers and strings overwrite the key;
//   - an array is appended to an existing array, fails with a
//     *TypeConflictError against an existing object, and replaces anything
//     else;
//   - an object is merged recursively into an existing object and replaces
//     anything else.
//
// Overwritten keys keep their position; new keys are appended in patch
// order. Array elements are never matched against each other, so merging
// the same array twice appends it twice.
//
// The patch root must be an object. Neither input is modified; the result
// may share unchanged subtrees with both.
func Merge(target, patch *Node) (*Node, error) {
	if kindOf(patch) != ObjectKind {
		return nil, &InvalidRootShapeError{Kind: kindOf(patch)}
	}
	return mergeObject(target, patch, "")
}

// mergeObject merges patch into target. A target that is not an object is
// treated as empty, which also strips tombstones from a freshly inserted
// patch subtree.
func mergeObject(target, patch *Node, path string) (*Node, error) {
	res := &Node{Kind: ObjectKind}
	if kindOf(target) == ObjectKind {
		res.Keys = make([]string, len(target.Keys), len(target.Keys)+len(patch.Keys))
		res.Values = make([]*Node, len(target.Values), len(target.Values)+len(patch.Keys))
		copy(res.Keys, target.Keys)
		copy(res.Values, target.Values)
	}

	pos := make(map[string]int, len(res.Keys))
	for i, k := range res.Keys {
		pos[k] = i
	}
	set := func(key string, v *Node) {
		if i, ok := pos[key]; ok {
			res.Values[i] = v
			return
		}
		pos[key] = len(res.Keys)
		res.Keys = append(res.Keys, key)
		res.Values = append(res.Values, v)
	}

	removed := false
	for i, key := range patch.Keys {
		v := patch.Values[i]
		var existing *Node
		if j, ok := pos[key]; ok {
			existing = res.Values[j]
		}

		switch kindOf(v) {
		case NullKind:
			if j, ok := pos[key]; ok {
				// compacted below so positions in pos stay valid
				res.Values[j] = nil
				delete(pos, key)
				removed = true
			}
		case BoolKind, NumberKind, StringKind:
			set(key, v)
		case ArrayKind:
			switch {
			case existing == nil:
				set(key, v)
			case existing.Kind == ArrayKind:
				set(key, concat(existing, v))
			case existing.Kind == ObjectKind:
				return nil, &TypeConflictError{
					Path: path + "/" + escapeToken(key),
					Key:  key,
					From: ObjectKind,
					To:   ArrayKind,
				}
			default:
				set(key, v)
			}
		case ObjectKind:
			merged, err := mergeObject(existing, v, path+"/"+escapeToken(key))
			if err != nil {
				return nil, err
			}
			set(key, merged)
		}
	}

	if removed {
		compact(res)
	}
	return res, nil
}

func concat(a, b *Node) *Node {
	values := make([]*Node, 0, len(a.Values)+len(b.Values))
	values = append(values, a.Values...)
	values = append(values, b.Values...)
	return &Node{Kind: ArrayKind, Values: values}
}

func compact(obj *Node) {
	keys := obj.Keys[:0]
	values := obj.Values[:0]
	for i, v := range obj.Values {
		if v == nil {
			continue
		}
		keys = append(keys, obj.Keys[i])
		values = append(values, v)
	}
	obj.Keys = keys
	obj.Values = values
}
