package adapter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// OptionKind tells the CLI how to expose an option.
type OptionKind int

const (
	Flag OptionKind = iota
	Text
	Path
	List
	Select
)

// Option declares one backend option. Names are matched after
// normalization, so "init_path" and "init-path" refer to the same option.
type Option struct {
	Name        string
	Short       []string
	Description string
	Kind        OptionKind
	Default     any
	Choices     []string
}

// Options is a flat bag of option values from flags, profiles and the
// environment. Values are untrusted and may be strings of any shape.
type Options map[string]any

// NormalizeName lower-cases name and uses dashes as word separators.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimLeft(name, "-")), "_", "-")
}

// Normalize returns a copy of o with normalized keys.
func (o Options) Normalize() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[NormalizeName(k)] = v
	}
	return out
}

// Unknown returns the sorted option names in o that no decl declares.
func (o Options) Unknown(decls []Option) []string {
	known := make(map[string]bool, len(decls))
	for _, d := range decls {
		known[NormalizeName(d.Name)] = true
	}
	var out []string
	for k := range o {
		if !known[NormalizeName(k)] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode fills out from the declared defaults overlaid with opts, then
// validates it. out must be a pointer to a struct whose fields carry
// `option:"<normalized name>"` tags and optional `validate` tags.
// Unknown options are ignored. Failures are config errors.
func Decode(opts Options, decls []Option, out any) error {
	in := make(map[string]any, len(decls))
	for _, d := range decls {
		if d.Default != nil {
			in[NormalizeName(d.Name)] = d.Default
		}
	}
	for k, v := range opts.Normalize() {
		if v == nil {
			continue
		}
		in[k] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "option",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("option decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return NewConfigError(ConfigErrorTitle, err)
	}
	if err := validate.Struct(out); err != nil {
		return NewConfigError(ConfigErrorTitle, err)
	}
	return nil
}
