package shell

import (
	"fmt"
	"io"

	"github.com/jbweber/virsh/internal/cmdline"
)

// Help prints help for name, or for every group when name is empty. name is
// tried as a command, then as a group keyword or name.
func (c *Control) Help(name string) error {
	if name == "" {
		PrintGroups(c.Out, c.reg)
		return nil
	}
	if def := c.reg.FindCommand(name); def != nil {
		PrintCommandHelp(c.Out, def)
		return nil
	}
	if g := c.reg.FindGroup(name); g != nil {
		PrintGroup(c.Out, g)
		return nil
	}
	return fmt.Errorf("command or command group '%s' doesn't exist", name)
}

// PrintGroups lists every group and its commands.
func PrintGroups(w io.Writer, reg *cmdline.Registry) {
	for _, g := range reg.Groups() {
		PrintGroup(w, g)
	}
}

// PrintGroup lists the commands of g with their one-line help.
func PrintGroup(w io.Writer, g *cmdline.Group) {
	fmt.Fprintf(w, " %s (help keyword '%s'):\n", g.Name, g.Keyword)
	for _, c := range g.Commands {
		fmt.Fprintf(w, "    %-30s %s\n", c.Name, c.Info.Help)
	}
	fmt.Fprintln(w)
}

// PrintCommandHelp renders the manual page of def.
func PrintCommandHelp(w io.Writer, def *cmdline.CmdDef) {
	fmt.Fprintf(w, "  NAME\n    %s - %s\n", def.Name, def.Info.Help)

	// shortopt is set once a positional option can also be named, which
	// changes how a trailing argv option is shown.
	shortopt := false
	fmt.Fprintf(w, "\n  SYNOPSIS\n    %s", def.Name)
	for i := range def.Opts {
		opt := &def.Opts[i]
		fmt.Fprintf(w, " %s", synopsis(opt, &shortopt))
	}
	fmt.Fprintln(w)

	if def.Info.Desc != "" {
		fmt.Fprintf(w, "\n  DESCRIPTION\n    %s\n", def.Info.Desc)
	}

	if len(def.Opts) > 0 {
		fmt.Fprintf(w, "\n  OPTIONS\n")
		for i := range def.Opts {
			opt := &def.Opts[i]
			fmt.Fprintf(w, "    %-15s  %s\n", optionUsage(opt, shortopt), opt.Help)
		}
	}
	fmt.Fprintln(w)
}

func synopsis(opt *cmdline.OptDef, shortopt *bool) string {
	named := opt.Flags&cmdline.FlagRequiresValue == 0
	switch opt.Kind {
	case cmdline.OptBool:
		return fmt.Sprintf("[--%s]", opt.Name)
	case cmdline.OptInt:
		if named {
			*shortopt = true
		}
		if opt.Required() {
			return fmt.Sprintf("<%s>", opt.Name)
		}
		return fmt.Sprintf("[--%s <number>]", opt.Name)
	case cmdline.OptString:
		if named {
			*shortopt = true
		}
		if opt.Required() {
			return fmt.Sprintf("--%s <string>", opt.Name)
		}
		return fmt.Sprintf("[--%s <string>]", opt.Name)
	case cmdline.OptData:
		if named {
			*shortopt = true
		}
		if opt.Required() {
			return fmt.Sprintf("<%s>", opt.Name)
		}
		return fmt.Sprintf("[<%s>]", opt.Name)
	case cmdline.OptArgv:
		switch {
		case *shortopt && opt.Required():
			return fmt.Sprintf("{[--%s] <string>}...", opt.Name)
		case *shortopt:
			return fmt.Sprintf("[[--%s] <string>]...", opt.Name)
		case opt.Required():
			return fmt.Sprintf("<%s>...", opt.Name)
		default:
			return fmt.Sprintf("[<%s>]...", opt.Name)
		}
	}
	return opt.Name
}

func optionUsage(opt *cmdline.OptDef, shortopt bool) string {
	switch opt.Kind {
	case cmdline.OptBool:
		return "--" + opt.Name
	case cmdline.OptInt:
		if opt.Required() {
			return fmt.Sprintf("[--%s] <number>", opt.Name)
		}
		return fmt.Sprintf("--%s <number>", opt.Name)
	case cmdline.OptString:
		return fmt.Sprintf("--%s <string>", opt.Name)
	case cmdline.OptData:
		return fmt.Sprintf("[--%s] <string>", opt.Name)
	case cmdline.OptArgv:
		if shortopt {
			return fmt.Sprintf("[--%s] <string>", opt.Name)
		}
		return fmt.Sprintf("<%s>", opt.Name)
	}
	return opt.Name
}
