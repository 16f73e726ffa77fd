package config

import (
	"flag"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// invertedBoolValue implements flag.Value and the unexported boolFlag
// interface so that `-no-x` (with no `=value`) is accepted the same way a
// plain `flag.Bool` would be.
type invertedBoolValue struct{ dest *bool }

func (v invertedBoolValue) String() string {
	if v.dest == nil {
		return "false"
	}
	return strconv.FormatBool(!*v.dest)
}

func (v invertedBoolValue) Set(s string) error {
	if s == "" {
		*v.dest = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*v.dest = !b
	return nil
}

func (v invertedBoolValue) IsBoolFlag() bool { return true }

// InvertedBoolFlag registers a `-no-<name>` flag whose value is the inverse
// of dest, defaulting dest to defaultVal. This mirrors the teacher's
// convention of spelling disable-flags as negatives (e.g. `-no-mist`)
// rather than `-mist=false`, which reads awkwardly with boolean flags that
// default to true.
func InvertedBoolFlag(fs *flag.FlagSet, dest *bool, name string, defaultVal bool, usage string) {
	*dest = defaultVal
	fs.Var(invertedBoolValue{dest: dest}, "no-"+name, usage)
}

// URLVarFlag registers a flag that parses into a *url.URL. dest starts as
// the parsed defaultVal (nil when defaultVal is empty) and is set to nil
// when the flag is given the empty string.
func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, defaultVal, usage string) {
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = nil
			return nil
		}
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid URL %q for -%s: %w", s, name, err)
		}
		*dest = u
		return nil
	})
	if defaultVal != "" {
		if u, err := url.Parse(defaultVal); err == nil {
			*dest = u
		}
	}
}

// CommaInt64SliceFlag registers a flag parsed as a comma-separated list of
// int64s, used for the owner-gated auth list (spec.md §6).
func CommaInt64SliceFlag(fs *flag.FlagSet, dest *[]int64, name string, defaultVal []int64, usage string) {
	*dest = defaultVal
	fs.Func(name, usage, func(s string) error {
		if s == "" {
			*dest = nil
			return nil
		}
		var out []int64
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q in -%s: %w", part, name, err)
			}
			out = append(out, id)
		}
		*dest = out
		return nil
	})
}
