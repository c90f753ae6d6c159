package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapOf(pairs ...interface{}) Value {
	m := map[string]Value{}
	var keys []string
	for i := 0; i < len(pairs); i += 2 {
		k := pairs[i].(string)
		v := pairs[i+1].(Value)
		keys = append(keys, k)
		m[k] = v
	}
	return NewMap(keys, m)
}

func TestMergeWithDefaults_NullPrunesKey(t *testing.T) {
	defaults := mapOf("name", NewString("nginx"), "version", NewString("1.0"))
	override := mapOf("version", Null())

	merged, _, err := MergeWithDefaults(defaults, override)
	require.NoError(t, err)

	_, hasVersion := merged.Get("version")
	assert.False(t, hasVersion)
	name, _ := merged.Get("name")
	assert.Equal(t, "nginx", name.String())
}

func TestMergeWithDefaults_RecursesMaps(t *testing.T) {
	defaults := mapOf("packages", mapOf("default", mapOf("name", NewString("nginx"), "version", NewString("1.0"))))
	override := mapOf("packages", mapOf("default", mapOf("version", NewString("1.2"))))

	merged, _, err := MergeWithDefaults(defaults, override)
	require.NoError(t, err)

	pkgs, _ := merged.Get("packages")
	def, _ := pkgs.Get("default")
	name, _ := def.Get("name")
	version, _ := def.Get("version")
	assert.Equal(t, "nginx", name.String())
	assert.Equal(t, "1.2", version.String())
}

func TestMergeWithDefaults_ListsReplaceWholesale(t *testing.T) {
	defaults := mapOf("platforms", NewList([]Value{NewString("linux"), NewString("macos")}))
	override := mapOf("platforms", NewList([]Value{NewString("windows")}))

	merged, _, err := MergeWithDefaults(defaults, override)
	require.NoError(t, err)

	platforms, _ := merged.Get("platforms")
	require.Len(t, platforms.List(), 1)
	assert.Equal(t, "windows", platforms.List()[0].String())
}

func TestMergeWithDefaults_TypeMismatchRecorded(t *testing.T) {
	defaults := mapOf("port", NewInt(80))
	override := mapOf("port", NewString("many"))

	merged, overrides, err := MergeWithDefaults(defaults, override)
	require.NoError(t, err)

	port, _ := merged.Get("port")
	assert.Equal(t, KindString, port.Kind())
	require.Len(t, overrides, 1)
	assert.Equal(t, "port", overrides[0].Path)
}

func TestMergeWithDefaults_RejectsBadKeys(t *testing.T) {
	defaults := NewMap(nil, map[string]Value{})
	override := mapOf("a..b", NewString("x"))

	_, _, err := MergeWithDefaults(defaults, override)
	require.Error(t, err)
}

func TestMergeWithDefaults_DepthBound(t *testing.T) {
	// Build override nested deeper than MaxMergeDepth.
	cur := NewString("leaf")
	for i := 0; i < MaxMergeDepth+5; i++ {
		cur = mapOf("n", cur)
	}
	_, _, err := MergeWithDefaults(NewMap(nil, map[string]Value{}), cur)
	require.ErrorIs(t, err, ErrDepthExceeded)
}

// TestRoundTripLaw checks P2: merge_with_defaults(D, apply_provider_overrides_only(D, M)) == M.
func TestRoundTripLaw(t *testing.T) {
	defaults := mapOf(
		"version", NewString("0.1"),
		"packages", mapOf("default", mapOf("name", NewString("nginx"), "version", NewString("1.0"))),
	)
	full := mapOf(
		"version", NewString("0.1"),
		"packages", mapOf("default", mapOf("name", NewString("apache2"), "version", NewString("2.4"))),
	)

	baseline, _, err := MergeWithDefaults(defaults, NewMap(nil, map[string]Value{}))
	require.NoError(t, err)

	overridesOnly := ApplyProviderOverridesOnly(baseline, full)
	merged, _, err := MergeWithDefaults(defaults, overridesOnly)
	require.NoError(t, err)

	assert.True(t, Equal(merged, full))
}

func TestApplyProviderOverridesOnly_EmptyWhenIdentical(t *testing.T) {
	defaults := mapOf("version", NewString("0.1"))
	baseline, _, err := MergeWithDefaults(defaults, NewMap(nil, map[string]Value{}))
	require.NoError(t, err)

	result := ApplyProviderOverridesOnly(baseline, baseline)
	assert.True(t, result.IsNull())
}

func TestEqual(t *testing.T) {
	a := mapOf("x", NewInt(1), "y", NewList([]Value{NewString("a")}))
	b := mapOf("x", NewInt(1), "y", NewList([]Value{NewString("a")}))
	c := mapOf("x", NewInt(2))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}
