// Package sexpr implements the s-expression dialect spoken by the Xen
// daemon (xend).
//
// An expression is a tree of Nodes. Each node is an atom (a string value),
// a cons cell (car/cdr pair) or nil. Lists are chains of cons cells ending
// in nil, so (a (b c)) is:
//
//	Cons(Atom a, Cons(Cons(Atom b, Cons(Atom c, Nil)), Nil))
//
// Path Lookup:
//
// Values are addressed with slash separated paths. The first segment must
// equal the head atom of the root list; every following segment selects the
// first child list whose head atom matches:
//
//	root, _ := sexpr.Parse("(domain (name web) (image (hvm (kernel /usr/lib/xen/boot/hvmloader))))")
//	name, _ := sexpr.Value(root, sexpr.ParsePath("domain/name"))          // "web"
//	kernel, _ := sexpr.Value(root, sexpr.P("domain", "image", "hvm", "kernel"))
//
// Numeric accessors (Int, U64) return 0 both when the path is missing and
// when the value is not a decimal number.
//
// Writing:
//
// Buffer builds an expression textually. Quoted values are wrapped in
// single quotes with backslash and single quote escaped by a backslash,
// which Parse reverses.
package sexpr
