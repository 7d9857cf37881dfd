package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/sadopc/sqlharbor/internal/adapter"
	"github.com/sadopc/sqlharbor/internal/config"
)

type optionFlag struct {
	opt      adapter.Option
	adapters []string
}

// addOptionFlags registers every adapter option as a flag. Options that
// several adapters share become a single flag.
func addOptionFlags(flags *pflag.FlagSet) error {
	var order []string
	byName := map[string]*optionFlag{}
	for _, name := range adapter.Names() {
		for _, o := range adapter.Declarations(name) {
			key := adapter.NormalizeName(o.Name)
			f, ok := byName[key]
			if !ok {
				f = &optionFlag{opt: o}
				byName[key] = f
				order = append(order, key)
			}
			f.adapters = append(f.adapters, name)
		}
	}

	for _, name := range order {
		if flags.Lookup(name) != nil {
			continue
		}
		f := byName[name]
		usage := optionUsage(f)
		short := freeShorthand(flags, f.opt.Short)
		switch f.opt.Kind {
		case adapter.Flag:
			flags.BoolP(name, short, false, usage)
		case adapter.List:
			flags.StringSliceP(name, short, nil, usage)
		default:
			flags.StringP(name, short, "", usage)
		}
		if err := config.MarkOption(flags, name); err != nil {
			return err
		}
	}
	return nil
}

func optionUsage(f *optionFlag) string {
	var b strings.Builder
	b.WriteString(f.opt.Description)
	if len(f.opt.Choices) > 0 {
		fmt.Fprintf(&b, "; one of %s", strings.Join(f.opt.Choices, ", "))
	}
	if f.opt.Default != nil && f.opt.Kind != adapter.Flag {
		fmt.Fprintf(&b, "; default %v", f.opt.Default)
	}
	fmt.Fprintf(&b, " [%s]", strings.Join(f.adapters, ", "))
	return b.String()
}

// freeShorthand returns the first single-letter alias not yet taken.
func freeShorthand(flags *pflag.FlagSet, aliases []string) string {
	for _, a := range aliases {
		a = strings.TrimPrefix(a, "-")
		if len(a) != 1 {
			continue
		}
		if flags.ShorthandLookup(a) == nil {
			return a
		}
	}
	return ""
}

func kindName(k adapter.OptionKind) string {
	switch k {
	case adapter.Flag:
		return "flag"
	case adapter.Text:
		return "text"
	case adapter.Path:
		return "path"
	case adapter.List:
		return "list"
	case adapter.Select:
		return "select"
	default:
		return "unknown"
	}
}
