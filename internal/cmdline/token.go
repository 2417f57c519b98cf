package cmdline

// TokenKind classifies a token produced by a Source.
type TokenKind int

const (
	// TokArg is a word of input.
	TokArg TokenKind = iota
	// TokSubcmdEnd separates two commands on one line.
	TokSubcmdEnd
	// TokEnd marks the end of input.
	TokEnd
	// TokError is returned together with a non-nil error.
	TokError
)

func (k TokenKind) String() string {
	switch k {
	case TokArg:
		return "arg"
	case TokSubcmdEnd:
		return "subcmd-end"
	case TokEnd:
		return "end"
	default:
		return "error"
	}
}

// Token is one unit of input.
type Token struct {
	Kind  TokenKind
	Value string
}

// Source yields tokens until TokEnd. Once TokEnd has been returned every
// further call returns TokEnd again.
type Source interface {
	Next() (Token, error)
}

// argvSource walks a pre-split argument vector.
type argvSource struct {
	args []string
	pos  int
}

// NewArgvSource returns a Source over args. It never yields TokSubcmdEnd.
func NewArgvSource(args []string) Source {
	return &argvSource{args: args}
}

func (s *argvSource) Next() (Token, error) {
	if s.pos >= len(s.args) {
		return Token{Kind: TokEnd}, nil
	}
	arg := s.args[s.pos]
	s.pos++
	return Token{Kind: TokArg, Value: arg}, nil
}

// stringSource splits a command line.
type stringSource struct {
	src string
	pos int
}

// NewStringSource returns a Source over a command line. Words are separated
// by spaces and tabs and commands by an unquoted ';'. Single quotes keep
// their contents verbatim, double quotes allow backslash escapes, and a
// backslash outside quotes escapes the next character.
func NewStringSource(line string) Source {
	return &stringSource{src: line}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func (s *stringSource) Next() (Token, error) {
	for s.pos < len(s.src) && isBlank(s.src[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.src) {
		return Token{Kind: TokEnd}, nil
	}
	if s.src[s.pos] == ';' {
		s.pos++
		return Token{Kind: TokSubcmdEnd}, nil
	}

	var (
		out         []byte
		singleQuote bool
		doubleQuote bool
	)
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if !singleQuote && !doubleQuote && (isBlank(c) || c == ';') {
			break
		}
		switch {
		case !doubleQuote && c == '\'':
			singleQuote = !singleQuote
			s.pos++
			continue
		case !singleQuote && c == '"':
			doubleQuote = !doubleQuote
			s.pos++
			continue
		case !singleQuote && c == '\\':
			s.pos++
			if s.pos >= len(s.src) {
				return Token{Kind: TokError}, errorf(`dangling \`)
			}
			c = s.src[s.pos]
		}
		out = append(out, c)
		s.pos++
	}

	if doubleQuote {
		return Token{Kind: TokError}, errorf(`missing "`)
	}
	if singleQuote {
		return Token{Kind: TokError}, errorf(`missing '`)
	}
	return Token{Kind: TokArg, Value: string(out)}, nil
}
