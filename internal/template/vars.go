package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// dollarVarPattern matches the bare "$name" substitution form anywhere in a
// string; it is not anchored. Directive keys like "$if" never reach it,
// since directive processing consumes those before substitution ever sees
// the string value.
var dollarVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// dollarPathPattern matches "${path.to.value}" and "${path.to.value | default}".
var dollarPathPattern = regexp.MustCompile(`\$\{\s*([A-Za-z0-9_.]+)\s*(?:\|\s*([^}]*?)\s*)?\}`)

// doubleBracePattern matches the forward-compatible "{{ name }}" /
// "{{ name | filter }}" substitution syntax (spec §4.7).
var doubleBracePattern = regexp.MustCompile(`\{\{\s*[^}]+\s*\}\}`)

var sprigFuncs = sprig.TxtFuncMap()

// substitutionWarning records an unresolved variable reference, logged by
// the caller as a warning rather than failing the render.
type substitutionWarning struct {
	Expression string
}

// substituteString applies spec §4.7's three substitution syntaxes in
// sequence: ${path|default} (dotted path + optional default) and bare
// $name are resolved directly against ctx; {{ name | filter }} delegates
// to text/template with sprig's function map, so sprig's filters
// (lower/upper/title/replace/join/split/…) and text/template's len work;
// there is no filter named json or yaml.
func substituteString(s string, ctx map[string]interface{}) (string, []substitutionWarning) {
	var warnings []substitutionWarning

	s = dollarPathPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := dollarPathPattern.FindStringSubmatch(match)
		path, def := groups[1], groups[2]
		val, ok := lookupPath(ctx, path)
		if ok {
			return toDisplayString(val)
		}
		if def != "" {
			return def
		}
		warnings = append(warnings, substitutionWarning{Expression: match})
		return match
	})

	s = dollarVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1:]
		val, ok := ctx[name]
		if !ok {
			warnings = append(warnings, substitutionWarning{Expression: match})
			return match
		}
		return toDisplayString(val)
	})

	if doubleBracePattern.MatchString(s) {
		rendered, err := renderDoubleBrace(s, ctx)
		if err == nil {
			s = rendered
		} else {
			warnings = append(warnings, substitutionWarning{Expression: s})
		}
	}

	return s, warnings
}

// doubleBraceHeadPattern captures the variable name that opens a
// "{{ name | filter }}" expression.
var doubleBraceHeadPattern = regexp.MustCompile(`\{\{(\s*)([A-Za-z_][A-Za-z0-9_.]*)`)

func renderDoubleBrace(s string, ctx map[string]interface{}) (string, error) {
	// text/template reads a bare name as a function call; turn the leading
	// name into a lookup in ctx, and fail (so the caller warns) when absent.
	s = doubleBraceHeadPattern.ReplaceAllString(s, "{{$1.$2")
	tmpl, err := texttemplate.New("value").Funcs(sprigFuncs).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toDisplayString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// isPlaceholderOnly reports whether s consists of exactly one substitution
// placeholder and nothing else, so the interpreter can preserve the
// referenced value's native type (list/map/number) instead of stringifying
// it when a whole leaf is a single placeholder.
func isPlaceholderOnly(s string) (path string, isPath bool, ok bool) {
	if m := dollarPathPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		return m[1], true, true
	}
	trimmed := strings.TrimSpace(s)
	if m := dollarVarPattern.FindStringSubmatch(trimmed); m != nil && "$"+m[1] == trimmed {
		return m[1], false, true
	}
	return "", false, false
}
