package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/sadopc/sqlharbor/internal/adapter"
)

const (
	// EnvPrefix prefixes environment overrides. SQLHARBOR_ADAPTER and
	// SQLHARBOR_CONN_STR select the connection; SQLHARBOR_OPT_<NAME> sets
	// an adapter option.
	EnvPrefix = "SQLHARBOR_"

	// ProjectFile is read from the working directory when present. It
	// holds a single profile.
	ProjectFile = ".sqlharbor.yaml"

	// DefaultAdapter is used when nothing selects one.
	DefaultAdapter = "sqlite"

	// OptionAnnotation marks flags that carry adapter options.
	OptionAnnotation = "sqlharbor_adapter_option"
)

// ErrUnknownProfile is returned when the requested profile is not configured.
var ErrUnknownProfile = errors.New("unknown profile")

// Selection is the resolved adapter, connection strings and option bag for
// one run.
type Selection struct {
	Profile string         `koanf:"-"`
	Adapter string         `koanf:"adapter"`
	ConnStr []string       `koanf:"conn_str"`
	Options map[string]any `koanf:"options"`
}

// ResolveInput carries everything Resolve layers besides the config file.
type ResolveInput struct {
	// Profile names a configured profile; empty selects DefaultProfile.
	Profile string
	// ProjectDir is searched for ProjectFile. Empty skips it.
	ProjectDir string
	// Flags holds the command's flags. Only changed flags are applied.
	Flags *pflag.FlagSet
	// ConnStr holds positional connection strings, which win over all
	// other layers when present.
	ConnStr []string
}

// MarkOption annotates the named flag as an adapter option so Resolve
// files it under the option bag.
func MarkOption(flags *pflag.FlagSet, name string) error {
	return flags.SetAnnotation(name, OptionAnnotation, []string{"true"})
}

// Resolve layers, lowest first: built-in defaults, the profile, the
// project file, SQLHARBOR_ environment variables, changed flags and
// positional connection strings.
func (c *Config) Resolve(in ResolveInput) (*Selection, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"adapter": DefaultAdapter,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	name := in.Profile
	if name == "" {
		name = c.DefaultProfile
	}
	if name != "" {
		p, ok := c.Profiles[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownProfile, name)
		}
		if err := k.Load(confmap.Provider(profileMap(p), "."), nil); err != nil {
			return nil, fmt.Errorf("load profile %q: %w", name, err)
		}
	}

	if in.ProjectDir != "" {
		path := filepath.Join(in.ProjectDir, ProjectFile)
		if _, err := os.Stat(path); err == nil {
			pk := koanf.New(".")
			if err := pk.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
			var p Profile
			if err := pk.Unmarshal("", &p); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := k.Load(confmap.Provider(profileMap(p), "."), nil); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if in.Flags != nil {
		cb := func(f *pflag.Flag) (string, interface{}) { return flagKey(in.Flags, f) }
		if err := k.Load(posflag.ProviderWithFlag(in.Flags, ".", k, cb), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	if len(in.ConnStr) > 0 {
		if err := k.Load(confmap.Provider(map[string]interface{}{
			"conn_str": in.ConnStr,
		}, "."), nil); err != nil {
			return nil, fmt.Errorf("load connection strings: %w", err)
		}
	}

	sel := &Selection{Profile: name}
	if err := k.Unmarshal("", sel); err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	if sel.Options == nil {
		sel.Options = map[string]any{}
	}
	return sel, nil
}

// profileMap turns p into the nested map koanf expects. Option names are
// normalized so that profile, environment and flag spellings merge.
func profileMap(p Profile) map[string]interface{} {
	m := map[string]interface{}{}
	if p.Adapter != "" {
		m["adapter"] = p.Adapter
	}
	if len(p.ConnStr) > 0 {
		m["conn_str"] = p.ConnStr
	}
	if len(p.Options) > 0 {
		opts := make(map[string]interface{}, len(p.Options))
		for k, v := range p.Options {
			opts[adapter.NormalizeName(k)] = v
		}
		m["options"] = opts
	}
	return m
}

// envKey maps SQLHARBOR_ variables to koanf keys. Unrecognized variables
// are dropped.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	switch {
	case key == "adapter", key == "conn_str":
		return key
	case strings.HasPrefix(key, "opt_"):
		return "options." + adapter.NormalizeName(strings.TrimPrefix(key, "opt_"))
	default:
		return ""
	}
}

// flagKey maps changed flags to koanf keys: --adapter selects the adapter
// and annotated flags become options.
func flagKey(flags *pflag.FlagSet, f *pflag.Flag) (string, interface{}) {
	if !f.Changed {
		return "", nil
	}
	if f.Name == "adapter" {
		return "adapter", f.Value.String()
	}
	if _, ok := f.Annotations[OptionAnnotation]; ok {
		return "options." + adapter.NormalizeName(f.Name), posflag.FlagVal(flags, f)
	}
	return "", nil
}
