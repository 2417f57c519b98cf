package cmdline

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Opt is an option given on the command line.
type Opt struct {
	Def *OptDef
	// Value is empty for OptBool options.
	Value string
}

// Cmd is a parsed command ready for dispatch.
type Cmd struct {
	Def  *CmdDef
	Opts []*Opt
}

// Name returns the command name.
func (c *Cmd) Name() string {
	return c.Def.Name
}

// Parse reads every command from src. On any error the whole input is
// rejected and no commands are returned.
func Parse(reg *Registry, src Source) ([]*Cmd, error) {
	var cmds []*Cmd
	for {
		cmd, more, err := parseOne(reg, src)
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if !more {
			return cmds, nil
		}
	}
}

// isOptionToken reports whether tok has the --name form.
func isOptionToken(tok string) bool {
	if len(tok) < 3 || !strings.HasPrefix(tok, "--") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(tok[2:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// parseOne parses up to the next command separator. more is false once the
// input is exhausted.
func parseOne(reg *Registry, src Source) (cmd *Cmd, more bool, err error) {
	tok, err := src.Next()
	if err != nil {
		return nil, false, err
	}
	switch tok.Kind {
	case TokEnd:
		return nil, false, nil
	case TokSubcmdEnd:
		return nil, true, nil
	}

	def := reg.FindCommand(tok.Value)
	if def == nil {
		return nil, false, errorf("unknown command: '%s'", tok.Value)
	}
	needArg, required, err := optMasks(def)
	if err != nil {
		return nil, false, err
	}
	seen := NewBitset(len(def.Opts))
	cmd = &Cmd{Def: def}
	dataOnly := false

	for {
		tok, err := src.Next()
		if err != nil {
			return nil, false, err
		}
		if tok.Kind == TokEnd || tok.Kind == TokSubcmdEnd {
			if err := checkRequired(def, required, seen); err != nil {
				return nil, false, err
			}
			return cmd, tok.Kind == TokSubcmdEnd, nil
		}

		switch {
		case !dataOnly && isOptionToken(tok.Value):
			name, value, hasValue := strings.Cut(tok.Value[2:], "=")
			opt, idx := def.Opt(name)
			if opt == nil || opt.Kind == OptArgv {
				return nil, false, errorf("command '%s' doesn't support option --%s", def.Name, name)
			}
			if seen.Test(idx) {
				return nil, false, errorf("option --%s already seen", name)
			}
			seen.Set(idx)

			if opt.Kind == OptBool {
				if hasValue {
					return nil, false, errorf("invalid '=' after option --%s", name)
				}
				cmd.Opts = append(cmd.Opts, &Opt{Def: opt})
				continue
			}
			if !hasValue {
				next, err := src.Next()
				if err != nil {
					return nil, false, err
				}
				if next.Kind != TokArg {
					kind := "string"
					if opt.Kind == OptInt {
						kind = "number"
					}
					return nil, false, errorf("expected syntax: --%s <%s>", name, kind)
				}
				value = next.Value
			}
			needArg.Clear(idx)
			cmd.Opts = append(cmd.Opts, &Opt{Def: opt, Value: value})

		case !dataOnly && tok.Value == "--":
			dataOnly = true

		case dataOnly && tok.Value == "--":
			dataOnly = false

		default:
			// An argv option stays in needArg so it keeps collecting.
			idx := needArg.First()
			if idx < 0 {
				return nil, false, errorf("unexpected data '%s'", tok.Value)
			}
			opt := &def.Opts[idx]
			if opt.Kind != OptArgv {
				needArg.Clear(idx)
			}
			seen.Set(idx)
			cmd.Opts = append(cmd.Opts, &Opt{Def: opt, Value: tok.Value})
		}
	}
}

func checkRequired(def *CmdDef, required, seen Bitset) error {
	missing := required.AndNot(seen)
	if missing.Empty() {
		return nil
	}
	var errs []error
	for i := range def.Opts {
		if !missing.Test(i) {
			continue
		}
		opt := &def.Opts[i]
		if opt.Kind == OptData || opt.Kind == OptArgv {
			errs = append(errs, errorf("command '%s' requires <%s> option", def.Name, opt.Name))
		} else {
			errs = append(errs, errorf("command '%s' requires --%s option", def.Name, opt.Name))
		}
	}
	return errors.Join(errs...)
}
