// Package template implements the layered metadata template engine: it
// resolves the directive grammar ($if/$elif/$else/$endif, $for/$endfor,
// $platform, $include, $provider_override, $function) and the three
// variable-substitution syntaxes ($name, ${path|default}, {{name|filter}})
// over the tagged-union internal/value.Value tree, rather than over Go's
// text/template AST. text/template plus sprig's function map is retained
// only for the forward-compatible {{ }} pipe-filter substitution form.
package template

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example42/saidata-gen/internal/value"
)

// Options configures a new Engine.
type Options struct {
	CacheSize int
	Logger    *slog.Logger
	Functions map[string]TemplateFunction
}

// Engine renders layered YAML templates (defaults.yaml, provider override
// files, include fragments) into resolved value.Value trees.
type Engine struct {
	cache  *parseCache
	logger *slog.Logger

	mu    sync.RWMutex
	named map[string][]byte

	funcsOnce sync.Once
	funcs     map[string]TemplateFunction
	baseFuncs map[string]TemplateFunction
}

// NewEngine builds an Engine with a bounded parse cache and the given
// registered functions available to $function.
func NewEngine(opts Options) (*Engine, error) {
	cache, err := newParseCache(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("template: building parse cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:     cache,
		logger:    logger,
		named:     make(map[string][]byte),
		baseFuncs: opts.Functions,
	}, nil
}

func (e *Engine) ensureFuncs() map[string]TemplateFunction {
	e.funcsOnce.Do(func() {
		e.funcs = make(map[string]TemplateFunction, len(e.baseFuncs))
		for k, v := range e.baseFuncs {
			e.funcs[k] = v
		}
	})
	return e.funcs
}

// RegisterTemplate stores raw YAML source under name so later $include
// directives can reference it. Safe to call concurrently with Render.
func (e *Engine) RegisterTemplate(name string, raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.named[name] = append([]byte(nil), raw...)
}

// Render parses raw (caching the parse by content hash) and interprets it
// against vars, returning the resolved value tree plus any non-fatal
// warnings (unresolved variables, unknown includes, malformed directives).
// ctx bounds how long directive interpretation may run; interpretation
// itself has no I/O, so this only guards against pathological recursion.
func (e *Engine) Render(ctx context.Context, raw []byte, vars map[string]interface{}) (value.Value, []Warning, error) {
	root, err := e.parse(raw)
	if err != nil {
		return value.Value{}, nil, err
	}

	named, err := e.parsedNamedTemplates()
	if err != nil {
		return value.Value{}, nil, err
	}

	type outcome struct {
		v    value.Value
		warn []Warning
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		warnings := []Warning{}
		env := &env{named: named, funcs: e.ensureFuncs(), warnings: &warnings}
		v, err := interpret(root, vars, env)
		done <- outcome{v: v, warn: warnings, err: err}
	}()

	select {
	case <-ctx.Done():
		return value.Value{}, nil, ctx.Err()
	case out := <-done:
		return out.v, out.warn, out.err
	}
}

// RenderMultiple renders several independent templates concurrently (one
// goroutine per entry), mirroring the teacher engine's fan-out execution
// for a batch of notification templates — here it is a batch of provider
// override files sharing one variable context.
func (e *Engine) RenderMultiple(ctx context.Context, templates map[string][]byte, vars map[string]interface{}) (map[string]value.Value, map[string][]Warning, error) {
	type result struct {
		key  string
		v    value.Value
		warn []Warning
		err  error
	}

	results := make(chan result, len(templates))
	var wg sync.WaitGroup
	for key, raw := range templates {
		wg.Add(1)
		go func(key string, raw []byte) {
			defer wg.Done()
			v, warn, err := e.Render(ctx, raw, vars)
			results <- result{key: key, v: v, warn: warn, err: err}
		}(key, raw)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	values := make(map[string]value.Value, len(templates))
	warnings := make(map[string][]Warning, len(templates))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("template %q: %w", r.key, r.err)
			}
			continue
		}
		values[r.key] = r.v
		if len(r.warn) > 0 {
			warnings[r.key] = r.warn
		}
	}
	return values, warnings, firstErr
}

func (e *Engine) parse(raw []byte) (*yaml.Node, error) {
	key := cacheKey(raw)
	if node, ok := e.cache.get(key); ok {
		return node, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("template: parsing yaml: %w", err)
	}
	e.cache.set(key, &doc)
	return &doc, nil
}

func (e *Engine) parsedNamedTemplates() (map[string]*yaml.Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*yaml.Node, len(e.named))
	for name, raw := range e.named {
		node, err := e.parse(raw)
		if err != nil {
			return nil, fmt.Errorf("template: parsing named template %q: %w", name, err)
		}
		out[name] = node
	}
	return out, nil
}

// InvalidateCache drops every cached parse, forcing the next Render of each
// template to re-parse from source. Useful after reloading template files.
func (e *Engine) InvalidateCache() {
	e.cache.invalidate()
}

// CacheStats reports the engine's parse cache hit ratio.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.stats()
}
