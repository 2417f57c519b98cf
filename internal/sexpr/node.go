package sexpr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	// KindNil is the empty list.
	KindNil Kind = iota
	// KindAtom is a string value.
	KindAtom
	// KindCons is a pair of car and cdr.
	KindCons
)

// ErrSyntax is wrapped by every error returned from Parse.
var ErrSyntax = errors.New("malformed s-expression")

// Node is one element of an s-expression tree.
type Node struct {
	Kind  Kind
	Value string
	Car   *Node
	Cdr   *Node
}

// Nil returns a new empty list.
func Nil() *Node {
	return &Node{Kind: KindNil}
}

// Atom returns a new atom holding value.
func Atom(value string) *Node {
	return &Node{Kind: KindAtom, Value: value}
}

// Cons returns a new pair.
func Cons(car, cdr *Node) *Node {
	return &Node{Kind: KindCons, Car: car, Cdr: cdr}
}

// List builds a proper list from items.
func List(items ...*Node) *Node {
	l := Nil()
	for i := len(items) - 1; i >= 0; i-- {
		l = Cons(items[i], l)
	}
	return l
}

// IsAtom reports whether n is an atom.
func (n *Node) IsAtom() bool { return n != nil && n.Kind == KindAtom }

// IsCons reports whether n is a cons cell.
func (n *Node) IsCons() bool { return n != nil && n.Kind == KindCons }

// IsNil reports whether n is nil or the empty list.
func (n *Node) IsNil() bool { return n == nil || n.Kind == KindNil }

// Head returns the atom value at the head of a list, or "" when n is not a
// list starting with an atom.
func (n *Node) Head() string {
	if !n.IsCons() || !n.Car.IsAtom() {
		return ""
	}
	return n.Car.Value
}

// Items returns the elements of the list starting at n. An improper tail is
// ignored.
func (n *Node) Items() []*Node {
	var items []*Node
	for cur := n; cur.IsCons(); cur = cur.Cdr {
		items = append(items, cur.Car)
	}
	return items
}

// String renders n in the same syntax Parse accepts.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch {
	case n.IsNil():
		b.WriteString("()")
	case n.IsAtom():
		if needsQuote(n.Value) {
			b.WriteString(Quote(n.Value))
		} else {
			b.WriteString(n.Value)
		}
	default:
		b.WriteByte('(')
		for cur := n; ; {
			cur.Car.write(b)
			cur = cur.Cdr
			if !cur.IsCons() {
				if !cur.IsNil() {
					b.WriteString(" . ")
					cur.write(b)
				}
				break
			}
			b.WriteByte(' ')
		}
		b.WriteByte(')')
	}
}

func needsQuote(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\r\n()'\"\\")
}

// Quote wraps s in single quotes, escaping backslashes and single quotes.
func Quote(s string) string {
	return "'" + Escape(s) + "'"
}

// Escape backslash-escapes the characters that are special inside a quoted
// value.
func Escape(s string) string {
	if !strings.ContainsAny(s, `\'`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' || s[i] == '\'' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Parse reads a single expression from s. Anything other than whitespace
// after the expression is an error.
func Parse(s string) (*Node, error) {
	p := &parser{src: s}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected data after expression")
	}
	return n, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrSyntax, fmt.Sprintf(format, args...), p.pos)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) expr() (*Node, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; c {
	case '(':
		p.pos++
		return p.list()
	case ')':
		return nil, p.errorf("unexpected ')'")
	case '\'', '"':
		p.pos++
		return p.quoted(c)
	default:
		return p.bare(), nil
	}
}

func (p *parser) list() (*Node, error) {
	var items []*Node
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("missing ')'")
		}
		if p.src[p.pos] == ')' {
			p.pos++
			return List(items...), nil
		}
		item, err := p.expr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func (p *parser) quoted(quote byte) (*Node, error) {
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == quote:
			return Atom(b.String()), nil
		case c == '\\' && p.pos < len(p.src):
			b.WriteByte(p.src[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
	return nil, p.errorf("missing closing %c", quote)
}

func (p *parser) bare() *Node {
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n', '(', ')':
			return Atom(p.src[start:p.pos])
		}
		p.pos++
	}
	return Atom(p.src[start:])
}
