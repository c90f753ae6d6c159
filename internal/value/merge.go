package value

import (
	"fmt"
	"regexp"
)

// MaxMergeDepth bounds recursion per spec §4.7 step 6; exceeding it is an
// Internal-class error, never a silent truncation.
const MaxMergeDepth = 100

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)

// ErrDepthExceeded is returned by MergeWithDefaults when recursion exceeds
// MaxMergeDepth.
var ErrDepthExceeded = fmt.Errorf("merge recursion exceeded depth %d", MaxMergeDepth)

// ErrInvalidKey is returned when a map key fails the spec §4.7 step 7 grammar
// (or contains ".." or a null byte).
type ErrInvalidKey struct{ Key string }

func (e *ErrInvalidKey) Error() string { return fmt.Sprintf("invalid key %q", e.Key) }

// TypeOverride records a path where override and default disagreed in kind
// (spec §4.7 step 5); the merge still proceeds, with override winning.
type TypeOverride struct {
	Path         string
	DefaultKind  Kind
	OverrideKind Kind
}

// MergeWithDefaults implements spec §4.7's merge_with_defaults:
//  1. override == null removes the key (null-pruning).
//  2. equal leaf values are retained in the merged doc (redundancy
//     elimination is a property of apply_provider_overrides_only, not of
//     this function).
//  3. two maps recurse key-by-key.
//  4. two lists: override replaces default wholesale.
//  5. differing kinds: override wins, recorded as a TypeOverride.
//  6. recursion deeper than MaxMergeDepth is an error.
//  7. keys must match keyPattern and must not contain ".." or NUL.
func MergeWithDefaults(defaults, override Value) (Value, []TypeOverride, error) {
	return mergeAt(defaults, override, "", 0)
}

func mergeAt(def, ov Value, path string, depth int) (Value, []TypeOverride, error) {
	if depth > MaxMergeDepth {
		return Value{}, nil, ErrDepthExceeded
	}

	if ov.IsNull() {
		return Value{}, nil, nil
	}

	if def.IsMap() && ov.IsMap() {
		var overrides []TypeOverride
		result := def
		for _, k := range ov.Keys() {
			if err := validateKey(k); err != nil {
				return Value{}, nil, err
			}
			childPath := joinPath(path, k)
			ovChild, _ := ov.Get(k)
			defChild, hasDef := def.Get(k)
			if !hasDef {
				defChild = Null()
				if ovChild.IsMap() {
					// Recurse into a new subtree as well, so its keys and
					// depth are checked like any other.
					defChild = NewMap(nil, map[string]Value{})
				}
			}
			if ovChild.IsNull() {
				result = result.Without(k)
				continue
			}
			merged, childOverrides, err := mergeAt(defChild, ovChild, childPath, depth+1)
			if err != nil {
				return Value{}, nil, err
			}
			overrides = append(overrides, childOverrides...)
			result = result.Set(k, merged)
		}
		return result, overrides, nil
	}

	if def.Kind() != ov.Kind() && !def.IsNull() {
		return ov, []TypeOverride{{Path: path, DefaultKind: def.Kind(), OverrideKind: ov.Kind()}}, nil
	}

	// Lists, scalars, and the def==null case: override replaces wholesale.
	return ov, nil, nil
}

func validateKey(k string) error {
	if k == "" || !keyPattern.MatchString(k) {
		return &ErrInvalidKey{Key: k}
	}
	for i := 0; i+1 < len(k); i++ {
		if k[i] == '.' && k[i+1] == '.' {
			return &ErrInvalidKey{Key: k}
		}
	}
	for i := 0; i < len(k); i++ {
		if k[i] == 0 {
			return &ErrInvalidKey{Key: k}
		}
	}
	return nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// ApplyProviderOverridesOnly implements spec §4.7's apply_provider_overrides_only:
// walk the fully-merged document `merged` and emit, for each leaf, only the
// paths that differ from the corresponding path in `baseline`
// (merge_with_defaults(defaults, {})). The result is the minimal override
// tree T such that MergeWithDefaults(defaults, T) == merged.
func ApplyProviderOverridesOnly(baseline, merged Value) Value {
	out, isEmpty := diffLeaf(baseline, merged)
	if isEmpty {
		return Null()
	}
	return out
}

// diffLeaf returns (value-to-emit, true-if-nothing-to-emit).
func diffLeaf(baseline, merged Value) (Value, bool) {
	if Equal(baseline, merged) {
		return Null(), true
	}

	if baseline.IsMap() && merged.IsMap() {
		keys := merged.Keys()
		result := NewMap(nil, map[string]Value{})
		any := false
		for _, k := range keys {
			mv, _ := merged.Get(k)
			bv, hasBase := baseline.Get(k)
			if !hasBase {
				bv = Null()
			}
			diffed, empty := diffLeaf(bv, mv)
			if empty {
				continue
			}
			result = result.Set(k, diffed)
			any = true
		}
		// Keys present in baseline but removed in merged => explicit null.
		for _, k := range baseline.Keys() {
			if _, stillPresent := merged.Get(k); !stillPresent {
				result = result.Set(k, Null())
				any = true
			}
		}
		if !any {
			return Null(), true
		}
		return result, false
	}

	// Lists/scalars/type-mismatches that differ: emit merged wholesale.
	return merged, false
}
