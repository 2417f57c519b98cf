package cmdline

import (
	"fmt"
	"strconv"
)

// Accessors return (value, true, nil) when the option was given and holds
// a valid value, (zero, false, nil) when it was not given and is optional,
// and a non-nil error when the value is malformed, a required option is
// missing, or the command has no such option.

func (c *Cmd) lookup(name string) (*Opt, error) {
	def, _ := c.Def.Opt(name)
	if def == nil {
		return nil, fmt.Errorf("%w: command '%s' has no option '%s'", ErrInvalidDef, c.Def.Name, name)
	}
	for _, o := range c.Opts {
		if o.Def.Name == name {
			return o, nil
		}
	}
	if def.Required() {
		return nil, errorf("command '%s' requires --%s option", c.Def.Name, name)
	}
	return nil, nil
}

func (c *Cmd) numeric(name string, parse func(string) error) (bool, error) {
	o, err := c.lookup(name)
	if err != nil || o == nil {
		return false, err
	}
	if err := parse(o.Value); err != nil {
		return false, errorf("numeric value '%s' for <%s> option is malformed or out of range", o.Value, name)
	}
	return true, nil
}

// OptInt returns the value of an int option.
func (c *Cmd) OptInt(name string) (int, bool, error) {
	var v int64
	ok, err := c.numeric(name, func(s string) (err error) {
		v, err = strconv.ParseInt(s, 10, strconv.IntSize)
		return err
	})
	return int(v), ok, err
}

// OptUint returns the value of an unsigned int option.
func (c *Cmd) OptUint(name string) (uint, bool, error) {
	var v uint64
	ok, err := c.numeric(name, func(s string) (err error) {
		v, err = strconv.ParseUint(s, 10, strconv.IntSize)
		return err
	})
	return uint(v), ok, err
}

// OptLongLong returns the value of a 64-bit option.
func (c *Cmd) OptLongLong(name string) (int64, bool, error) {
	var v int64
	ok, err := c.numeric(name, func(s string) (err error) {
		v, err = strconv.ParseInt(s, 10, 64)
		return err
	})
	return v, ok, err
}

// OptULongLong returns the value of an unsigned 64-bit option.
func (c *Cmd) OptULongLong(name string) (uint64, bool, error) {
	var v uint64
	ok, err := c.numeric(name, func(s string) (err error) {
		v, err = strconv.ParseUint(s, 10, 64)
		return err
	})
	return v, ok, err
}

// OptString returns the value of a string or data option. Empty values are
// rejected unless the option allows them.
func (c *Cmd) OptString(name string) (string, bool, error) {
	o, err := c.lookup(name)
	if err != nil || o == nil {
		return "", false, err
	}
	if o.Value == "" && o.Def.Flags&FlagEmptyOk == 0 {
		return "", false, errorf("option --%s: empty string is not allowed", name)
	}
	return o.Value, true, nil
}

// OptBool reports whether a flag was given.
func (c *Cmd) OptBool(name string) bool {
	o, err := c.lookup(name)
	return err == nil && o != nil
}

// OptArgv returns the argv option following prev, or nil when there are no
// more. Pass nil to get the first.
func (c *Cmd) OptArgv(prev *Opt) *Opt {
	start := 0
	if prev != nil {
		for i, o := range c.Opts {
			if o == prev {
				start = i + 1
				break
			}
		}
	}
	for _, o := range c.Opts[start:] {
		if o.Def.Kind == OptArgv {
			return o
		}
	}
	return nil
}

// ArgvValues returns every argv value in input order.
func (c *Cmd) ArgvValues() []string {
	var out []string
	for o := c.OptArgv(nil); o != nil; o = c.OptArgv(o) {
		out = append(out, o.Value)
	}
	return out
}

// ParseKeycode parses a key code written in decimal, octal (leading 0) or
// hex (leading 0x).
func ParseKeycode(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil || v < 0 {
		return 0, errorf("invalid keycode: '%s'", s)
	}
	return int(v), nil
}
