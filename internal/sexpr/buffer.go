package sexpr

import (
	"fmt"
	"strings"
)

// Buffer accumulates the textual form of an expression.
type Buffer struct {
	b strings.Builder
}

// Open starts a list with the given head atom.
func (b *Buffer) Open(head string) {
	b.b.WriteByte('(')
	b.b.WriteString(head)
	b.b.WriteByte(' ')
}

// Close ends the innermost list.
func (b *Buffer) Close() {
	b.b.WriteByte(')')
}

// Raw appends s verbatim.
func (b *Buffer) Raw(s string) {
	b.b.WriteString(s)
}

// Rawf appends formatted text verbatim.
func (b *Buffer) Rawf(format string, args ...any) {
	fmt.Fprintf(&b.b, format, args...)
}

// Escaped appends s with quote escaping applied, for use inside a quoted
// value the caller opened.
func (b *Buffer) Escaped(s string) {
	b.b.WriteString(Escape(s))
}

// Quoted appends (key 'value').
func (b *Buffer) Quoted(key, value string) {
	b.b.WriteByte('(')
	b.b.WriteString(key)
	b.b.WriteByte(' ')
	b.b.WriteString(Quote(value))
	b.b.WriteByte(')')
}

// Pair appends (key value) without quoting value.
func (b *Buffer) Pair(key string, value any) {
	fmt.Fprintf(&b.b, "(%s %v)", key, value)
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return b.b.Len()
}

func (b *Buffer) String() string {
	return b.b.String()
}
