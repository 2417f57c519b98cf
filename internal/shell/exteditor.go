package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// editorSafe are the characters a path may hold and still be passed to the
// editor without a shell.
const editorSafe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-/_.:@"

// EditorCommand returns the command that edits file with $VISUAL, $EDITOR
// or vi. Editor values holding anything beyond a plain path run through
// sh -c.
func EditorCommand(getenv func(string) string, file string) *exec.Cmd {
	editor := getenv("VISUAL")
	if editor == "" {
		editor = getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	if !safe(editor) || !safe(file) {
		return exec.Command("/bin/sh", "-c", editor+" "+shellQuote(file))
	}
	return exec.Command(editor, file)
}

// RunEditor opens file in the user's editor attached to the terminal.
func (c *Control) RunEditor(file string) error {
	cmd := EditorCommand(os.Getenv, file)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	c.logger.Debugf("running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: edit failed: %w", strings.Join(cmd.Args, " "), err)
	}
	return nil
}

// CreateTempXML writes contents to a new virsh*.xml file in $TMPDIR and
// returns its path. The caller removes it.
func CreateTempXML(contents string) (string, error) {
	f, err := os.CreateTemp(os.Getenv("TMPDIR"), "virsh*.xml")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	if err := f.Chmod(0600); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to set permissions on %s: %w", f.Name(), err)
	}
	if _, err := f.WriteString(contents); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// ReadTempXML returns the contents of the edited file.
func ReadTempXML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	if s != "" && safe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func safe(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune(editorSafe, r)
	}) < 0
}
