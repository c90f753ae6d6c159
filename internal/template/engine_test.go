package template

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Options{CacheSize: 16})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngine_Render_SubstitutesAndAppliesDirectives(t *testing.T) {
	e := newTestEngine(t)
	raw := []byte(`
name: $package
$platform: linux
service: systemd
$endif: true
`)
	vars := map[string]interface{}{
		"package":   "curl",
		"platforms": []interface{}{"linux"},
	}

	v, warnings, err := e.Render(context.Background(), raw, vars)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	got := v.ToGo().(map[string]interface{})
	if got["name"] != "curl" || got["service"] != "systemd" {
		t.Fatalf("got %v", got)
	}
}

func TestEngine_Render_CachesParseByContentHash(t *testing.T) {
	e := newTestEngine(t)
	raw := []byte(`name: $package`)

	if _, _, err := e.Render(context.Background(), raw, map[string]interface{}{"package": "a"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Render(context.Background(), raw, map[string]interface{}{"package": "b"}); err != nil {
		t.Fatal(err)
	}

	stats := e.CacheStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected one miss then one hit on identical source, got %+v", stats)
	}
}

func TestEngine_RegisterTemplate_EnablesInclude(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterTemplate("base", []byte(`
port: 8080
protocol: tcp
`))

	raw := []byte(`
$include: base
protocol: udp
`)
	v, _, err := e.Render(context.Background(), raw, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	got := v.ToGo().(map[string]interface{})
	if got["protocol"] != "udp" {
		t.Fatalf("expected override to win, got %v", got)
	}
}

func TestEngine_RenderMultiple_FansOutAcrossTemplates(t *testing.T) {
	e := newTestEngine(t)
	templates := map[string][]byte{
		"apt":    []byte(`manager: apt`),
		"brew":   []byte(`manager: brew`),
		"winget": []byte(`manager: winget`),
	}

	values, warnings, err := e.RenderMultiple(context.Background(), templates, map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	for key, want := range map[string]string{"apt": "apt", "brew": "brew", "winget": "winget"} {
		got := values[key].ToGo().(map[string]interface{})
		if got["manager"] != want {
			t.Fatalf("%s: got %v", key, got)
		}
	}
}

func TestEngine_Render_ContextDeadlineExceeded(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, _, err := e.Render(ctx, []byte(`name: a`), map[string]interface{}{})
	if err == nil || !strings.Contains(err.Error(), "context deadline exceeded") {
		t.Fatalf("expected a deadline error, got %v", err)
	}
}

func TestEngine_Render_UnresolvedVariableProducesWarningNotError(t *testing.T) {
	e := newTestEngine(t)
	v, warnings, err := e.Render(context.Background(), []byte(`name: $missing`), map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	got := v.ToGo().(map[string]interface{})
	if got["name"] != "$missing" {
		t.Fatalf("expected the unresolved placeholder to pass through literally, got %v", got["name"])
	}
}
