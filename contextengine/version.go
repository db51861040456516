package contextengine

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/coordmesh/core/types"
)

// hashContent returns a stable content hash for a Value; the engine stores
// it as a ContextVersion's ContentHash. The Value is first canonicalized by
// valueWire (kind tags, tree entries sorted by key) and then marshalled, so
// equal content always hashes the same.
func hashContent(v types.Value) string {
	data, err := json.Marshal(valueWire(v))
	if err != nil {
		// Values are always built from JSON-safe scalars; a marshal failure
		// here means a caller put a non-serializable Scalar in, which is a
		// programmer error, not a runtime condition to recover from softly.
		panic(fmt.Sprintf("contextengine: hash content: %v", err))
	}
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// valueWire mirrors types.Value into a JSON-stable shape (Kind as a string,
// sorted tree keys) so hashContent doesn't depend on struct field order.
type wireValue struct {
	Kind  string      `json:"kind"`
	Scalar any        `json:"scalar,omitempty"`
	List  []wireValue `json:"list,omitempty"`
	Set   []wireValue `json:"set,omitempty"`
	Tree  []treeEntry `json:"tree,omitempty"`
}

type treeEntry struct {
	Key string    `json:"key"`
	Val wireValue `json:"val"`
}

func valueWire(v types.Value) wireValue {
	switch v.Kind {
	case types.KindList:
		list := make([]wireValue, len(v.List))
		for i, item := range v.List {
			list[i] = valueWire(item)
		}
		return wireValue{Kind: "list", List: list}
	case types.KindSet:
		set := make([]wireValue, len(v.Set))
		for i, item := range v.Set {
			set[i] = valueWire(item)
		}
		return wireValue{Kind: "set", Set: set}
	case types.KindTree:
		keys := make([]string, 0, len(v.Tree))
		for k := range v.Tree {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]treeEntry, len(keys))
		for i, k := range keys {
			entries[i] = treeEntry{Key: k, Val: valueWire(v.Tree[k])}
		}
		return wireValue{Kind: "tree", Tree: entries}
	default:
		return wireValue{Kind: "scalar", Scalar: v.Scalar}
	}
}

// reconstructAt replays the change log from the initial version up to (and
// including) targetVersionID, returning the resulting content tree. Versions
// must be supplied in creation order (oldest first), matching how
// store.Repository.ListContextVersions returns them.
func reconstructAt(versions []*types.ContextVersion, targetVersionID string) (types.Value, error) {
	content := types.NewTree(nil)
	found := false
	for _, v := range versions {
		content = applyChanges(content, v.Changes)
		if v.VersionID == targetVersionID {
			found = true
			break
		}
	}
	if !found {
		return types.Absent, types.NewError(types.NotFound, "version "+targetVersionID+" not found in history", nil)
	}
	return content, nil
}

func applyChanges(content types.Value, changes []types.ContextChange) types.Value {
	for _, c := range changes {
		switch c.Operation {
		case types.ChangeDelete:
			content = types.DeleteAtPath(content, c.Path)
		default: // CREATE, UPDATE, MERGE all resolve to a path write
			content = types.SetAtPath(content, c.Path, c.NewValue)
		}
	}
	return content
}

// VersionDiff is a change summary between two context versions.
type VersionDiff struct {
	Added    map[string]types.Value
	Removed  map[string]types.Value
	Modified map[string][2]types.Value
}

// compareVersions reconstructs both versions' content and diffs them.
func compareVersions(versions []*types.ContextVersion, fromID, toID string) (VersionDiff, error) {
	from, err := reconstructAt(versions, fromID)
	if err != nil {
		return VersionDiff{}, err
	}
	to, err := reconstructAt(versions, toID)
	if err != nil {
		return VersionDiff{}, err
	}
	diff := VersionDiff{
		Added:    map[string]types.Value{},
		Removed:  map[string]types.Value{},
		Modified: map[string][2]types.Value{},
	}
	types.Diff("/", from, to, diff.Added, diff.Removed, diff.Modified)
	return diff, nil
}
