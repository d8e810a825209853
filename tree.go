package consulkv

import "strings"

// Tree is a nested mapping reconstructed from a flat set of slash-delimited
// keys. Every value is either a string (leaf) or a Tree (branch).
type Tree map[string]any

// Flatten inverts the fold: every leaf becomes a (key, value) pair with its
// path segments rejoined on "/". For any conflict-free key set,
// buildTree followed by Flatten reproduces the original pairs.
func (t Tree) Flatten() map[string]string {
	out := map[string]string{}
	t.flatten("", out)
	return out
}

func (t Tree) flatten(prefix string, out map[string]string) {
	for k, v := range t {
		key := k
		if prefix != "" {
			key = prefix + "/" + k
		}
		switch val := v.(type) {
		case Tree:
			val.flatten(key, out)
		case string:
			out[key] = val
		}
	}
}

// buildTree folds flat records into a Tree. The scope prefix is stripped from
// each key before splitting, so the tree is rooted at the queried subtree.
// A path that is needed both as a leaf and as a branch fails the fold.
func buildTree(records []Record, scope string) (Tree, error) {
	root := Tree{}
	for _, rec := range records {
		segs := splitKey(strings.TrimPrefix(rec.Key, scope))
		if len(segs) == 0 {
			// the scope key itself holds a value, nowhere to place it
			continue
		}
		node := root
		for i, seg := range segs[:len(segs)-1] {
			child, ok := node[seg]
			if !ok {
				next := Tree{}
				node[seg] = next
				node = next
				continue
			}
			branch, ok := child.(Tree)
			if !ok {
				return nil, &TreeConflictError{Path: joinKey(segs[:i+1])}
			}
			node = branch
		}
		leaf := segs[len(segs)-1]
		if _, ok := node[leaf].(Tree); ok {
			return nil, &TreeConflictError{Path: joinKey(segs)}
		}
		node[leaf] = string(rec.Value)
	}
	return root, nil
}

// splitKey splits a slash-delimited key into path segments. Empty segments
// from leading, trailing or doubled separators are dropped, so joining the
// segments back reproduces the key in normalized form.
func splitKey(key string) []string {
	var segs []string
	for _, s := range strings.Split(key, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinKey(segs []string) string { return strings.Join(segs, "/") }

// normalizePrefix brings a prefix to canonical form: no leading slash, a
// single trailing slash, empty stays empty.
func normalizePrefix(prefix string) string {
	segs := splitKey(prefix)
	if len(segs) == 0 {
		return ""
	}
	return joinKey(segs) + "/"
}
