package main

import (
	"flag"
	"fmt"
	"strings"
)

// parseArgs parses fs over args, allowing flags and positional arguments to
// be interleaved. Everything after "--" is positional.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(pos, rest...), nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// liftGlobals splits off common flags given before the action, as in
// "metatool --url URL files". It returns the action, the flags and the
// arguments that followed the action.
func liftGlobals(args []string) (action string, globals, rest []string, err error) {
	fs := flag.NewFlagSet("metatool", flag.ContinueOnError)
	var c common
	c.register(fs)

	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-" || !strings.HasPrefix(a, "-") {
			return a, globals, args[i+1:], nil
		}
		name := strings.TrimLeft(a, "-")
		if name == "h" || name == "help" {
			return "help", globals, args[i+1:], nil
		}
		if name == "" {
			return "", nil, nil, fmt.Errorf("missing action before %q", a)
		}
		hasValue := false
		if k, _, ok := strings.Cut(name, "="); ok {
			name, hasValue = k, true
		}
		f := fs.Lookup(name)
		if f == nil {
			return "", nil, nil, fmt.Errorf("unknown flag before the action: %s", a)
		}
		globals = append(globals, a)
		if hasValue || isBoolFlag(f) {
			continue
		}
		if i+1 == len(args) {
			return "", nil, nil, fmt.Errorf("flag needs an argument: %s", a)
		}
		i++
		globals = append(globals, args[i])
	}
	return "", globals, nil, nil
}

// withGlobals appends lifted flags to the action's arguments, ahead of any
// "--" so they are still parsed as flags.
func withGlobals(rest, globals []string) []string {
	if len(globals) == 0 {
		return rest
	}
	out := make([]string, 0, len(rest)+len(globals))
	for i, a := range rest {
		if a == "--" {
			out = append(out, globals...)
			return append(out, rest[i:]...)
		}
		out = append(out, a)
	}
	return append(out, globals...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
