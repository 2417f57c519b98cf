package cmdline

// OptKind is the kind of value an option takes.
type OptKind int

const (
	// OptBool is a flag without a value.
	OptBool OptKind = iota
	// OptInt takes a number.
	OptInt
	// OptString takes a string.
	OptString
	// OptData is a positional datum.
	OptData
	// OptArgv collects every remaining positional token. At most one is
	// allowed per command and it must be defined last.
	OptArgv
)

func (k OptKind) String() string {
	switch k {
	case OptBool:
		return "bool"
	case OptInt:
		return "number"
	case OptString:
		return "string"
	case OptData:
		return "data"
	case OptArgv:
		return "argv"
	default:
		return "unknown"
	}
}

// OptFlag modifies how an option is parsed.
type OptFlag uint

const (
	// FlagRequired means the option must be present.
	FlagRequired OptFlag = 1 << iota
	// FlagRequiresValue means the option can only be given as --name value,
	// never positionally.
	FlagRequiresValue
	// FlagEmptyOk accepts an empty string as a value.
	FlagEmptyOk
)

// OptDef describes one option of a command.
type OptDef struct {
	Name  string
	Kind  OptKind
	Flags OptFlag
	Help  string
}

// Required reports whether the option must be given.
func (o *OptDef) Required() bool {
	return o.Flags&FlagRequired != 0
}

// Positional reports whether bare tokens can fill the option.
func (o *OptDef) Positional() bool {
	return o.Kind != OptBool && o.Flags&FlagRequiresValue == 0
}

// CmdFlag modifies how a command is dispatched.
type CmdFlag uint

const (
	// CmdNoConnect lets the command run without a hypervisor connection.
	CmdNoConnect CmdFlag = 1 << iota
)

// Info is the help text of a command.
type Info struct {
	Help string
	Desc string
}

// CmdDef describes a command.
type CmdDef struct {
	Name  string
	Opts  []OptDef
	Info  Info
	Flags CmdFlag

	// Handler is opaque here; the shell package gives it a type.
	Handler any
}

// NoConnect reports whether the command runs without a connection.
func (c *CmdDef) NoConnect() bool {
	return c.Flags&CmdNoConnect != 0
}

// Opt returns the definition of the named option and its index.
func (c *CmdDef) Opt(name string) (*OptDef, int) {
	for i := range c.Opts {
		if c.Opts[i].Name == name {
			return &c.Opts[i], i
		}
	}
	return nil, -1
}

// Group is a named set of commands shown together in help output.
type Group struct {
	Name     string
	Keyword  string
	Commands []*CmdDef
}
