package shell

import (
	"sort"
	"strings"

	"github.com/jbweber/virsh/internal/cmdline"
)

// Completer rewrites line when the user asks for completion at pos. ok is
// false when nothing changes.
type Completer func(line string, pos int) (newLine string, newPos int, ok bool)

// CompleteCommands returns the command names starting with prefix, in
// registration order.
func CompleteCommands(reg *cmdline.Registry, prefix string) []string {
	var out []string
	for _, g := range reg.Groups() {
		for _, c := range g.Commands {
			if strings.HasPrefix(c.Name, prefix) {
				out = append(out, c.Name)
			}
		}
	}
	return out
}

// CompleteOptions returns "--NAME" for each named option of command that
// starts with prefix. Positional data and argv options are not offered.
func CompleteOptions(reg *cmdline.Registry, command, prefix string) []string {
	def := reg.FindCommand(command)
	if def == nil {
		return nil
	}
	var out []string
	for _, opt := range def.Opts {
		if opt.Kind == cmdline.OptData || opt.Kind == cmdline.OptArgv {
			continue
		}
		name := "--" + opt.Name
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// RegistryCompleter completes command names at the start of the line and
// option names after it.
func RegistryCompleter(reg *cmdline.Registry) Completer {
	return func(line string, pos int) (string, int, bool) {
		head := line[:pos]
		start := strings.LastIndexAny(head, " \t;") + 1
		word := head[start:]

		var candidates []string
		if cmdStart(head[:start]) {
			candidates = CompleteCommands(reg, word)
		} else {
			fields := strings.Fields(head[strings.LastIndex(head, ";")+1:])
			if len(fields) == 0 {
				return line, pos, false
			}
			candidates = CompleteOptions(reg, fields[0], word)
		}
		if len(candidates) == 0 {
			return line, pos, false
		}

		fill := commonPrefix(candidates)
		if len(candidates) == 1 {
			fill += " "
		}
		if fill == word {
			return line, pos, false
		}
		return head[:start] + fill + line[pos:], start + len(fill), true
	}
}

// cmdStart reports whether the text before a word leaves the word in
// command position.
func cmdStart(before string) bool {
	before = strings.TrimRight(before, " \t")
	return before == "" || strings.HasSuffix(before, ";")
}

func commonPrefix(words []string) string {
	sorted := append([]string(nil), words...)
	sort.Strings(sorted)
	first, last := sorted[0], sorted[len(sorted)-1]
	i := 0
	for i < len(first) && i < len(last) && first[i] == last[i] {
		i++
	}
	return first[:i]
}
