package contextengine

import (
	"github.com/coordmesh/core/types"
)

// MergeResolution selects how conflicting leaves are resolved when two
// contexts are merged.
type MergeResolution string

const (
	ResolveSource MergeResolution = "source" // incoming context wins conflicts
	ResolveTarget MergeResolution = "target" // base context wins conflicts
	ResolveLatest MergeResolution = "latest" // most-recently-updated context wins
)

// mergeContents merges source's content into target's, honoring resolution;
// "latest" is resolved by the caller (engine.go) into a concrete side based
// on UpdatedAt before calling types.Merge, since Value itself has no
// timestamps to compare.
func mergeContents(targetContent, sourceContent types.Value, resolution MergeResolution) types.Value {
	switch resolution {
	case ResolveTarget:
		return types.Merge(targetContent, sourceContent, "target")
	default:
		return types.Merge(targetContent, sourceContent, "source")
	}
}

// resolveLatestSide picks ResolveSource or ResolveTarget for a "latest"
// merge by comparing the two contexts' UpdatedAt timestamps.
func resolveLatestSide(target, source *types.SharedContext) MergeResolution {
	if source.UpdatedAt.After(target.UpdatedAt) {
		return ResolveSource
	}
	return ResolveTarget
}
