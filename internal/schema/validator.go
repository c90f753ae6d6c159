package schema

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/example42/saidata-gen/internal/value"
)

// topLevelKeys is the closed key set spec.md §3 defines for the metadata
// document. Anything else present is a warning, not an error — the schema
// is allowed to grow, but a generator emitting an unknown key is worth
// flagging.
var topLevelKeys = map[string]bool{
	"version": true, "packages": true, "services": true, "directories": true,
	"files": true, "processes": true, "ports": true, "containers": true,
	"charts": true, "repos": true, "urls": true, "language": true,
	"description": true, "category": true, "license": true, "platforms": true,
}

// recordContainers are the top-level keys whose value is a mapping from
// slot name to a leaf record (checked against recordFactories). urls,
// language and platforms hold plain scalars/lists instead of records and
// are checked separately; description/category/license/version are scalar
// fields.
var recordContainers = map[string]bool{
	"packages": true, "services": true, "directories": true, "files": true,
	"processes": true, "ports": true, "containers": true, "charts": true,
	"repos": true,
}

// Validator checks a metadata document against the schema without mutating
// it. Implementations must be safe for concurrent use.
type Validator interface {
	// ValidateDocument validates a complete document (defaults.yaml):
	// version is required.
	ValidateDocument(doc value.Value) *Result
	// ValidateOverride validates a provider override partial
	// (providers/<p>.yaml): any key may be absent, since absence means
	// "inherit" — only the shape of whatever keys are present is checked.
	ValidateOverride(doc value.Value) *Result
}

// DocumentValidator is the default Validator, backed by go-playground's
// struct-tag validator for leaf records.
type DocumentValidator struct {
	validate *validator.Validate
}

// New builds a DocumentValidator.
func New() *DocumentValidator {
	return &DocumentValidator{validate: validator.New()}
}

// ValidateDocument implements Validator.
func (d *DocumentValidator) ValidateDocument(doc value.Value) *Result {
	return d.validate(doc, true)
}

// ValidateOverride implements Validator.
func (d *DocumentValidator) ValidateOverride(doc value.Value) *Result {
	return d.validate(doc, false)
}

func (d *DocumentValidator) validate(doc value.Value, requireVersion bool) *Result {
	result := NewResult()

	if !doc.IsMap() {
		result.AddError("", "document root must be a mapping", "")
		return result
	}

	for _, key := range doc.Keys() {
		if !topLevelKeys[key] {
			result.AddWarning(key, fmt.Sprintf("unrecognized top-level key %q", key), "remove it or check for a typo")
		}
	}

	if requireVersion {
		version, ok := doc.Get("version")
		if !ok || version.IsNull() || strings.TrimSpace(version.String()) == "" {
			result.AddError("version", "version is required", "set a non-empty version string")
		}
	}

	for key := range recordContainers {
		container, ok := doc.Get(key)
		if !ok || container.IsNull() {
			continue
		}
		d.validateContainer(key, container, result)
	}

	if urls, ok := doc.Get("urls"); ok && !urls.IsNull() {
		d.validateURLs(urls, result)
	}

	if platforms, ok := doc.Get("platforms"); ok && !platforms.IsNull() && !platforms.IsList() {
		result.AddError("platforms", "platforms must be a list of platform names", "")
	}

	if language, ok := doc.Get("language"); ok && !language.IsNull() && !language.IsList() {
		result.AddError("language", "language must be a list", "")
	}

	for _, scalarKey := range []string{"description", "category", "license"} {
		if v, ok := doc.Get(scalarKey); ok && !v.IsNull() && (v.IsMap() || v.IsList()) {
			result.AddError(scalarKey, fmt.Sprintf("%s must be a scalar string", scalarKey), "")
		}
	}

	return result
}

func (d *DocumentValidator) validateContainer(key string, container value.Value, result *Result) {
	if !container.IsMap() {
		result.AddError(key, fmt.Sprintf("%s must be a mapping of slot name to record", key), "")
		return
	}

	factory := recordFactories[key]
	for _, slot := range container.Keys() {
		leaf, _ := container.Get(slot)
		path := fmt.Sprintf("%s.%s", key, slot)
		if leaf.IsNull() {
			continue
		}
		if !leaf.IsMap() {
			result.AddError(path, "record must be a mapping", "")
			continue
		}

		record := factory()
		if err := mapstructure.Decode(leaf.ToGo(), record); err != nil {
			result.AddError(path, fmt.Sprintf("does not match the expected record shape: %v", err), "")
			continue
		}
		if err := d.validate.Struct(record); err != nil {
			for _, fe := range validationErrors(err) {
				result.AddError(
					fmt.Sprintf("%s.%s", path, strings.ToLower(fe.Field())),
					fmt.Sprintf("failed %q validation", fe.Tag()),
					"",
				)
			}
		}
	}
}

func (d *DocumentValidator) validateURLs(urls value.Value, result *Result) {
	if !urls.IsMap() {
		result.AddError("urls", "urls must be a mapping of name to URL string", "")
		return
	}
	for _, slot := range urls.Keys() {
		leaf, _ := urls.Get(slot)
		if leaf.IsNull() {
			continue
		}
		path := fmt.Sprintf("urls.%s", slot)
		if leaf.Kind() != value.KindString {
			result.AddError(path, "url entry must be a string", "")
			continue
		}
		if _, err := url.ParseRequestURI(leaf.String()); err != nil {
			result.AddWarning(path, fmt.Sprintf("does not look like a valid URL: %v", err), "")
		}
	}
}

func validationErrors(err error) validator.ValidationErrors {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	return ve
}
