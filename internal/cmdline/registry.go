package cmdline

import (
	"errors"
	"fmt"
)

// maxOptions bounds the option count of a single command.
const maxOptions = 64

// Registry holds the command groups known to the shell.
type Registry struct {
	groups []*Group
}

// NewRegistry returns a registry over groups, in display order.
func NewRegistry(groups ...*Group) *Registry {
	return &Registry{groups: groups}
}

// Groups returns the groups in display order.
func (r *Registry) Groups() []*Group {
	return r.groups
}

// FindCommand returns the named command, or nil.
func (r *Registry) FindCommand(name string) *CmdDef {
	for _, g := range r.groups {
		for _, c := range g.Commands {
			if c.Name == name {
				return c
			}
		}
	}
	return nil
}

// FindGroup returns the group whose keyword or name is name, or nil.
// Keywords take precedence.
func (r *Registry) FindGroup(name string) *Group {
	for _, g := range r.groups {
		if g.Keyword == name {
			return g
		}
	}
	for _, g := range r.groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Validate checks every command definition and returns all problems found.
func (r *Registry) Validate() error {
	var errs []error
	for _, g := range r.groups {
		seen := make(map[string]bool, len(g.Commands))
		for _, c := range g.Commands {
			if seen[c.Name] {
				errs = append(errs, fmt.Errorf("%w: duplicate command '%s' in group '%s'", ErrInvalidDef, c.Name, g.Keyword))
			}
			seen[c.Name] = true
			if _, _, err := optMasks(c); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// optMasks computes the options that positional tokens may fill and the
// options that must be present.
func optMasks(c *CmdDef) (needArg, required Bitset, err error) {
	if len(c.Opts) > maxOptions {
		return nil, nil, fmt.Errorf("%w: command '%s' has more than %d options", ErrInvalidDef, c.Name, maxOptions)
	}
	needArg = NewBitset(len(c.Opts))
	required = NewBitset(len(c.Opts))

	names := make(map[string]bool, len(c.Opts))
	optional := false
	for i := range c.Opts {
		opt := &c.Opts[i]
		if names[opt.Name] {
			return nil, nil, fmt.Errorf("%w: command '%s' defines option '%s' twice", ErrInvalidDef, c.Name, opt.Name)
		}
		names[opt.Name] = true

		if opt.Kind == OptBool && opt.Required() {
			return nil, nil, fmt.Errorf("%w: command '%s': bool option '%s' cannot be required", ErrInvalidDef, c.Name, opt.Name)
		}
		if !opt.Positional() {
			if opt.Required() {
				required.Set(i)
			}
			continue
		}

		needArg.Set(i)
		if opt.Required() {
			if optional {
				return nil, nil, fmt.Errorf("%w: command '%s': required option '%s' follows an optional one", ErrInvalidDef, c.Name, opt.Name)
			}
			required.Set(i)
		} else {
			optional = true
		}
		if opt.Kind == OptArgv && i != len(c.Opts)-1 {
			return nil, nil, fmt.Errorf("%w: command '%s': argv option '%s' must be last", ErrInvalidDef, c.Name, opt.Name)
		}
	}
	return needArg, required, nil
}
