package template

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example42/saidata-gen/internal/value"
)

// Warning is a non-fatal issue surfaced during rendering: an unresolved
// variable, an unknown $include target, a malformed directive. Rendering
// always produces a best-effort result alongside its warnings rather than
// failing outright, mirroring the Fetcher set's "skip the record, keep
// going" philosophy.
type Warning struct {
	Message string
}

// TemplateFunction is a registered handler for the $function directive.
type TemplateFunction func(args []interface{}) (interface{}, error)

// env carries everything directive interpretation needs beyond the
// current node and substitution context: named templates for $include,
// registered functions for $function, the running warning list, and a
// recursion-depth counter enforcing the same bound the merge engine uses
// (spec §4.7 step 6).
type env struct {
	named    map[string]*yaml.Node
	funcs    map[string]TemplateFunction
	warnings *[]Warning
	depth    int
}

const maxInterpretDepth = 100

func (e *env) warn(format string, args ...interface{}) {
	*e.warnings = append(*e.warnings, Warning{Message: fmt.Sprintf(format, args...)})
}

// interpret converts a parsed YAML node tree into a value.Value, resolving
// variable substitution and directive keys along the way.
func interpret(node *yaml.Node, ctx map[string]interface{}, e *env) (value.Value, error) {
	if node == nil {
		return value.Null(), nil
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > maxInterpretDepth {
		return value.Value{}, fmt.Errorf("template: recursion depth exceeds %d", maxInterpretDepth)
	}

	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return value.Null(), nil
		}
		return interpret(node.Content[0], ctx, e)
	case yaml.ScalarNode:
		return interpretScalar(node, ctx, e)
	case yaml.SequenceNode:
		items := make([]value.Value, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := interpret(child, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.NewList(items), nil
	case yaml.MappingNode:
		return interpretMapping(pairsOf(node), ctx, e)
	case yaml.AliasNode:
		return interpret(node.Alias, ctx, e)
	default:
		return value.Null(), nil
	}
}

func interpretScalar(node *yaml.Node, ctx map[string]interface{}, e *env) (value.Value, error) {
	raw := node.Value

	if node.Tag == "!!null" || (node.Tag == "" && raw == "") {
		return value.Null(), nil
	}

	if path, isPath, ok := isPlaceholderOnly(raw); ok {
		var (
			resolved interface{}
			present  bool
		)
		if isPath {
			resolved, present = lookupPath(ctx, path)
		} else {
			resolved, present = ctx[path]
		}
		if present {
			return value.FromGo(resolved), nil
		}
		// Unresolved: substituteString below applies any default or
		// reports the placeholder once.
	}

	substituted, warnings := substituteString(raw, ctx)
	for _, w := range warnings {
		e.warn("unresolved variable %q", w.Expression)
	}

	switch node.Tag {
	case "!!int":
		if n, err := strconv.ParseInt(substituted, 10, 64); err == nil {
			return value.NewInt(n), nil
		}
	case "!!float":
		if f, err := strconv.ParseFloat(substituted, 64); err == nil {
			return value.NewFloat(f), nil
		}
	case "!!bool":
		if b, err := strconv.ParseBool(substituted); err == nil {
			return value.NewBool(b), nil
		}
	}
	return value.NewString(substituted), nil
}

// pair is one key/value entry from a YAML mapping node, preserving
// document order (a plain map[string]interface{} would not).
type pair struct {
	Key       string
	KeyNode   *yaml.Node
	ValueNode *yaml.Node
}

func pairsOf(node *yaml.Node) []pair {
	pairs := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, pair{Key: node.Content[i].Value, KeyNode: node.Content[i], ValueNode: node.Content[i+1]})
	}
	return pairs
}

var blockOpeners = map[string]bool{"$if": true, "$platform": true, "$for": true}
var blockClosers = map[string]bool{"$endif": true, "$endfor": true}

// scanUntil finds the first pair at the same nesting depth whose key is in
// terminators, skipping over any nested $if/$platform/$for...$endif/$endfor
// blocks along the way.
func scanUntil(pairs []pair, start int, terminators map[string]bool) (bodyEnd int, terminatorKey string, terminatorIndex int) {
	depth := 0
	i := start
	for i < len(pairs) {
		k := pairs[i].Key
		if depth == 0 && terminators[k] {
			return i, k, i
		}
		if blockOpeners[k] {
			depth++
		} else if blockClosers[k] {
			depth--
		}
		i++
	}
	return i, "", i
}

// interpretMapping walks pairs sequentially, expanding directive blocks in
// place and recursively interpreting ordinary key/value pairs.
func interpretMapping(pairs []pair, ctx map[string]interface{}, e *env) (value.Value, error) {
	var keys []string
	m := make(map[string]value.Value)
	set := func(k string, v value.Value) {
		if _, exists := m[k]; !exists {
			keys = append(keys, k)
		}
		m[k] = v
	}

	i := 0
	for i < len(pairs) {
		p := pairs[i]
		switch p.Key {
		case "$if", "$platform":
			consumed, result, err := interpretIfChain(pairs, i, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			for _, rp := range result {
				set(rp.Key, rp.Value)
			}
			i = consumed

		case "$for":
			consumed, result, err := interpretFor(pairs, i, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			for _, rp := range result {
				set(rp.Key, rp.Value)
			}
			i = consumed

		case "$include":
			name := strings.TrimSpace(p.ValueNode.Value)
			named, ok := e.named[name]
			if !ok {
				e.warn("$include: unknown template %q", name)
				i++
				continue
			}
			base, err := interpret(named, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			// Subsequent sibling keys (until the next directive or end of
			// this mapping) are the override body (spec §4.7 $include).
			bodyEnd, _, _ := scanUntil(pairs, i+1, map[string]bool{
				"$if": true, "$platform": true, "$for": true, "$include": true,
				"$provider_override": true, "$function": true,
			})
			overrides, err := interpretMapping(pairs[i+1:bodyEnd], ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			merged, _, err := value.MergeWithDefaults(base, overrides)
			if err != nil {
				return value.Value{}, err
			}
			if merged.IsMap() {
				for _, k := range merged.Keys() {
					v, _ := merged.Get(k)
					set(k, v)
				}
			}
			i = bodyEnd

		case "$provider_override":
			pathV, valueV, err := interpretProviderOverride(p.ValueNode, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			applyDeepSet(&keys, m, pathV, valueV)
			i++

		case "$function":
			outKey, result, err := interpretFunctionCall(p.ValueNode, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			if outKey != "" {
				set(outKey, result)
			}
			i++

		case "$elif", "$else", "$endif", "$endfor":
			// Orphaned terminator (malformed template); skip rather than fail.
			e.warn("unexpected directive %q with no matching opener", p.Key)
			i++

		default:
			keyStr, warnings := substituteString(p.Key, ctx)
			for _, w := range warnings {
				e.warn("unresolved variable in key %q", w.Expression)
			}
			v, err := interpret(p.ValueNode, ctx, e)
			if err != nil {
				return value.Value{}, err
			}
			set(keyStr, v)
			i++
		}
	}

	return value.NewMap(keys, m), nil
}

// interpretIfChain processes one $if/$platform ... $elif* ... $else? ...
// $endif block starting at pairs[start], returning the index just past the
// block and the flattened, already-interpreted pairs of whichever branch
// was selected (none, if no branch matched and there is no $else).
func interpretIfChain(pairs []pair, start int, ctx map[string]interface{}, e *env) (int, []resultPair, error) {
	var branches []ifBranch
	cur := start
	for {
		opener := pairs[cur]
		expr := opener.ValueNode.Value
		if opener.Key == "$platform" {
			expr = strings.TrimSpace(expr) + " in platforms"
		}
		bodyStart := cur + 1
		end, termKey, termIdx := scanUntil(pairs, bodyStart, map[string]bool{"$elif": true, "$else": true, "$endif": true})
		branches = append(branches, ifBranch{cond: expr, start: bodyStart, end: end})

		switch termKey {
		case "$elif":
			cur = termIdx
			continue
		case "$else":
			elseStart := termIdx + 1
			elseEnd, _, elseEndIdx := scanUntil(pairs, elseStart, map[string]bool{"$endif": true})
			branches = append(branches, ifBranch{isElse: true, start: elseStart, end: elseEnd})
			next := elseEndIdx + 1
			return selectBranch(branches, pairs, next, ctx, e)
		default: // "$endif" or ran off the end (malformed, treat as closed)
			next := termIdx + 1
			return selectBranch(branches, pairs, next, ctx, e)
		}
	}
}

type resultPair struct {
	Key   string
	Value value.Value
}

// ifBranch is one candidate branch of an $if/$elif/$else chain: its
// condition (empty and isElse=true for the final $else) and the pair range
// of its body.
type ifBranch struct {
	cond       string
	isElse     bool
	start, end int
}

func selectBranch(branches []ifBranch, pairs []pair, next int, ctx map[string]interface{}, e *env) (int, []resultPair, error) {
	for _, br := range branches {
		if br.isElse || evalCondition(br.cond, ctx) {
			sub, err := interpretMapping(pairs[br.start:br.end], ctx, e)
			if err != nil {
				return next, nil, err
			}
			var out []resultPair
			if sub.IsMap() {
				for _, k := range sub.Keys() {
					v, _ := sub.Get(k)
					out = append(out, resultPair{Key: k, Value: v})
				}
			}
			return next, out, nil
		}
	}
	return next, nil, nil
}

// interpretFor expands a $for: "<var> in <path>" ... $endfor block: for
// each item in the iterable, the body is interpreted with ctx extended by
// {var: item}, and body keys are substituted first so each iteration can
// contribute distinctly-named keys (e.g. "$name_config" -> "foo_config").
func interpretFor(pairs []pair, start int, ctx map[string]interface{}, e *env) (int, []resultPair, error) {
	opener := pairs[start]
	varName, iterPath, ok := splitOnce(opener.ValueNode.Value, " in ")
	if !ok {
		e.warn("$for: malformed clause %q", opener.ValueNode.Value)
		end, _, _ := scanUntil(pairs, start+1, map[string]bool{"$endfor": true})
		return end + 1, nil, nil
	}
	varName = strings.TrimSpace(varName)
	iterPath = strings.TrimSpace(iterPath)

	bodyStart := start + 1
	bodyEnd, _, termIdx := scanUntil(pairs, bodyStart, map[string]bool{"$endfor": true})
	next := termIdx + 1

	iterable, present := lookupPath(ctx, iterPath)
	if !present {
		e.warn("$for: iterable %q not found", iterPath)
		return next, nil, nil
	}

	items := toIterableItems(iterable)
	var out []resultPair
	for _, item := range items {
		loopCtx := make(map[string]interface{}, len(ctx)+1)
		for k, v := range ctx {
			loopCtx[k] = v
		}
		loopCtx[varName] = item

		substitutedPairs := make([]pair, bodyEnd-bodyStart)
		for idx, p := range pairs[bodyStart:bodyEnd] {
			// Bind "$<var>_suffix" keys to the loop variable first; the bare
			// $name pattern would otherwise read "<var>_suffix" as one name.
			key := strings.ReplaceAll(p.Key, "$"+varName+"_", toDisplayString(item)+"_")
			substitutedKey, _ := substituteString(key, loopCtx)
			np := p
			np.Key = substitutedKey
			substitutedPairs[idx] = np
		}

		sub, err := interpretMapping(substitutedPairs, loopCtx, e)
		if err != nil {
			return next, nil, err
		}
		if sub.IsMap() {
			for _, k := range sub.Keys() {
				v, _ := sub.Get(k)
				out = append(out, resultPair{Key: k, Value: v})
			}
		}
	}
	return next, out, nil
}

func toIterableItems(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case map[string]interface{}:
		items := make([]interface{}, 0, len(t))
		for k := range t {
			items = append(items, k)
		}
		return items
	default:
		return nil
	}
}

// interpretProviderOverride expects $provider_override's value to be a
// mapping {path: <dotted.path>, value: <anything>} — a structured
// rendering of "sets a deep key in the result" that stays unambiguous in
// YAML, rather than overloading a single scalar with both a path and a
// value.
func interpretProviderOverride(node *yaml.Node, ctx map[string]interface{}, e *env) (string, value.Value, error) {
	if node.Kind != yaml.MappingNode {
		e.warn("$provider_override: expected a mapping with path/value keys")
		return "", value.Value{}, nil
	}
	pairs := pairsOf(node)
	var pathStr string
	var valueNode *yaml.Node
	for _, p := range pairs {
		switch p.Key {
		case "path":
			pathStr = p.ValueNode.Value
		case "value":
			valueNode = p.ValueNode
		}
	}
	v, err := interpret(valueNode, ctx, e)
	if err != nil {
		return "", value.Value{}, err
	}
	return pathStr, v, nil
}

// applyDeepSet sets value at dotted path within the in-progress mapping
// (keys/m), creating intermediate maps as needed.
func applyDeepSet(keys *[]string, m map[string]value.Value, path string, v value.Value) {
	if path == "" {
		return
	}
	segments := strings.Split(path, ".")
	head := segments[0]
	if len(segments) == 1 {
		if _, exists := m[head]; !exists {
			*keys = append(*keys, head)
		}
		m[head] = v
		return
	}
	existing, ok := m[head]
	if !ok || !existing.IsMap() {
		existing = value.NewMap(nil, map[string]value.Value{})
		if !ok {
			*keys = append(*keys, head)
		}
	}
	childKeys := append([]string(nil), existing.Keys()...)
	childMap := make(map[string]value.Value, len(childKeys))
	for _, k := range childKeys {
		cv, _ := existing.Get(k)
		childMap[k] = cv
	}
	applyDeepSet(&childKeys, childMap, strings.Join(segments[1:], "."), v)
	m[head] = value.NewMap(childKeys, childMap)
}

// interpretFunctionCall expects $function's value to be a mapping
// {name: <registered function>, args: [...], as: <output key>}.
func interpretFunctionCall(node *yaml.Node, ctx map[string]interface{}, e *env) (string, value.Value, error) {
	if node.Kind != yaml.MappingNode {
		e.warn("$function: expected a mapping with name/args/as keys")
		return "", value.Value{}, nil
	}
	pairs := pairsOf(node)
	var name, as string
	var argsNode *yaml.Node
	for _, p := range pairs {
		switch p.Key {
		case "name":
			name = p.ValueNode.Value
		case "as":
			as = p.ValueNode.Value
		case "args":
			argsNode = p.ValueNode
		}
	}

	fn, ok := e.funcs[name]
	if !ok {
		e.warn("$function: unregistered function %q", name)
		return as, value.Null(), nil
	}

	var args []interface{}
	if argsNode != nil {
		argsValue, err := interpret(argsNode, ctx, e)
		if err != nil {
			return as, value.Value{}, err
		}
		for _, item := range argsValue.List() {
			args = append(args, item.ToGo())
		}
	}

	result, err := fn(args)
	if err != nil {
		e.warn("$function: %s: %v", name, err)
		return as, value.Null(), nil
	}
	return as, value.FromGo(result), nil
}
