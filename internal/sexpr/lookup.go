package sexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissing is returned by NodeCopy when the path does not resolve to a
// value.
var ErrMissing = errors.New("no such node")

// Path addresses a node by the head atoms of nested lists.
type Path []string

// ParsePath splits a slash separated path.
func ParsePath(s string) Path {
	return Path(strings.Split(s, "/"))
}

// P builds a path from segments.
func P(segments ...string) Path {
	return Path(segments)
}

// Child returns a copy of p extended with segments.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// lookupKey returns the list whose head matches the last path segment.
func lookupKey(root *Node, p Path) *Node {
	if len(p) == 0 || root.Head() != p[0] {
		return nil
	}
	cur := root
	for _, seg := range p[1:] {
		var found *Node
		for it := cur.Cdr; it.IsCons(); it = it.Cdr {
			if it.Car.IsCons() && it.Car.Head() == seg {
				found = it.Car
				break
			}
		}
		if found == nil {
			return nil
		}
		cur = found
	}
	return cur
}

// Lookup returns the tail following the head atom of the list addressed by
// p, or nil when the list is missing or has nothing after its head.
func Lookup(root *Node, p Path) *Node {
	n := lookupKey(root, p)
	if n == nil || !n.Cdr.IsCons() {
		return nil
	}
	return n.Cdr
}

// Has reports whether the list addressed by p exists, even when it holds
// nothing but its head.
func Has(root *Node, p Path) bool {
	return lookupKey(root, p) != nil
}

// Value returns the first atom after the head of the list addressed by p.
func Value(root *Node, p Path) (string, bool) {
	n := Lookup(root, p)
	if n == nil || !n.Car.IsAtom() {
		return "", false
	}
	return n.Car.Value, true
}

// Valuef is Value with the path built from a format string.
func Valuef(root *Node, format string, args ...any) (string, bool) {
	return Value(root, ParsePath(fmt.Sprintf(format, args...)))
}

// NodeCopy returns the value addressed by p, or ErrMissing.
func NodeCopy(root *Node, p Path) (string, error) {
	v, ok := Value(root, p)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, p)
	}
	return v, nil
}

// Int returns the decimal value addressed by p. Absent and unparsable
// values both yield 0.
func Int(root *Node, p Path) int {
	v, ok := Value(root, p)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// U64 is the unsigned 64-bit counterpart of Int.
func U64(root *Node, p Path) uint64 {
	v, ok := Value(root, p)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
