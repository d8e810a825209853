package consulkv

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Source loads configuration structs from KV subtrees. Paths are subprefixes
// resolved against the client's prefix and merged in order, later paths
// overriding earlier ones. An empty Paths loads the whole prefix.
type Source struct {
	Client *Client
	Paths  []string
}

// Load fetches the configured subtrees, deep-merges them and decodes the
// result into v, a pointer to a struct or map. Struct fields map by
// lowercase name or `mapstructure` tag; scalar KV values coerce weakly, so
// "8080" fills an int field and "true" a bool.
func (s *Source) Load(ctx context.Context, v any) error {
	if s.Client == nil {
		return errors.New("client is required")
	}

	paths := s.Paths
	if len(paths) == 0 {
		paths = []string{""}
	}

	merged := Tree{}
	for _, p := range paths {
		tree, err := s.Client.GetTree(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to load subtree %q: %w", p, err)
		}
		merged = mergeTrees(merged, tree)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(merged)); err != nil {
		return fmt.Errorf("failed to decode tree: %w", err)
	}
	return nil
}

// mergeTrees deep-merges b over a. Branches merge recursively, anything else
// from b replaces whatever a had at that segment.
func mergeTrees(a, b Tree) Tree {
	out := Tree{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		branch, bok := v.(Tree)
		existing, aok := out[k].(Tree)
		if bok && aok {
			out[k] = mergeTrees(existing, branch)
			continue
		}
		out[k] = v
	}
	return out
}
