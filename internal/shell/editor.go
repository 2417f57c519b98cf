package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Editor reads interactive input lines.
type Editor interface {
	// ReadLine shows prompt and returns the next line without its
	// terminator. io.EOF means the input is exhausted.
	ReadLine(prompt string) (string, error)
	// AddHistory records a line the caller accepted. Editors that keep
	// history on their own ignore it.
	AddHistory(line string)
	LoadHistory(path string) error
	SaveHistory(path string) error
	SetCompleter(Completer)
	Close() error
}

// NewEditor returns a line editor with completion when in and out are
// terminals, and a plain line reader otherwise.
func NewEditor(in, out *os.File, historySize int) Editor {
	if isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd()) {
		return newTermEditor(in, out, historySize)
	}
	return newMinEditor(in, out, historySize)
}

type termEditor struct {
	*history
	fd       int
	term     *term.Terminal
	complete Completer
}

func newTermEditor(in, out *os.File, historySize int) *termEditor {
	e := &termEditor{history: newHistory(historySize), fd: int(in.Fd())}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	e.term = term.NewTerminal(rw, "")
	e.term.AutoCompleteCallback = e.autoComplete
	e.term.History = e.history
	return e
}

// AddHistory is a no-op: the terminal records every line ReadLine
// returns.
func (e *termEditor) AddHistory(string) {}

func (e *termEditor) SetCompleter(c Completer) {
	e.complete = c
}

func (e *termEditor) autoComplete(line string, pos int, key rune) (string, int, bool) {
	if key != '\t' || e.complete == nil {
		return "", 0, false
	}
	return e.complete(line, pos)
}

// ReadLine holds the terminal in raw mode only while reading, so command
// output and SIGINT behave normally between prompts.
func (e *termEditor) ReadLine(prompt string) (string, error) {
	state, err := term.MakeRaw(e.fd)
	if err != nil {
		return "", fmt.Errorf("failed to set terminal raw mode: %w", err)
	}
	defer func() { _ = term.Restore(e.fd, state) }()

	if w, h, err := term.GetSize(e.fd); err == nil {
		_ = e.term.SetSize(w, h)
	}
	e.term.SetPrompt(prompt)
	return e.term.ReadLine()
}

func (e *termEditor) Close() error {
	return nil
}

type minEditor struct {
	*history
	r   *bufio.Reader
	out io.Writer
}

func newMinEditor(in io.Reader, out io.Writer, historySize int) *minEditor {
	return &minEditor{history: newHistory(historySize), r: bufio.NewReader(in), out: out}
}

func (e *minEditor) SetCompleter(Completer) {}

func (e *minEditor) ReadLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)
	line, err := e.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (e *minEditor) Close() error {
	return nil
}
