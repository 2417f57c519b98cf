package xend

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/jbweber/virsh/internal/sexpr"
)

// parseChr decodes a character device string such as "pty", "/dev/ttyS0",
// "tcp:host:4555,server,nowait" or "udp:host:1@bind:2". tty is used as the
// path of pty devices.
func parseChr(value, tty string) (*Chr, error) {
	chr := &Chr{}
	if strings.HasPrefix(value, "/") {
		chr.Type = ChrDev
	} else {
		prefix := value
		if p, rest, ok := strings.Cut(value, ":"); ok {
			prefix, value = p, rest
		}
		if strings.HasPrefix(prefix, "telnet") {
			chr.Type = ChrTCP
			chr.Telnet = true
		} else {
			switch t := ChrType(prefix); t {
			case ChrNull, ChrVC, ChrPTY, ChrDev, ChrFile, ChrPipe, ChrStdio, ChrUDP, ChrTCP, ChrUnix:
				chr.Type = t
			default:
				return nil, fmt.Errorf("%w: unknown chr device type '%s'", ErrInvalid, prefix)
			}
		}
	}

	switch chr.Type {
	case ChrPTY:
		chr.Path = tty
	case ChrDev, ChrFile, ChrPipe:
		chr.Path = value
	case ChrTCP:
		host, rest, ok := strings.Cut(value, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed char device string", ErrInvalid)
		}
		chr.Host = host
		service, opts, hasOpts := strings.Cut(rest, ",")
		chr.Service = service
		chr.Listen = hasOpts && strings.Contains(","+opts, ",server")
	case ChrUDP:
		host, rest, ok := strings.Cut(value, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed char device string", ErrInvalid)
		}
		chr.ConnectHost = host
		service, bind, hasBind := strings.Cut(rest, "@")
		chr.ConnectService = service
		if hasBind {
			bhost, bservice, ok := strings.Cut(bind, ":")
			if !ok {
				return nil, fmt.Errorf("%w: malformed char device string", ErrInvalid)
			}
			chr.BindHost = bhost
			chr.BindService = bservice
		}
	case ChrUnix:
		path, opts, hasOpts := strings.Cut(value, ",")
		chr.Path = path
		chr.Listen = hasOpts && strings.Contains(","+opts, ",server")
	}
	return chr, nil
}

// formatChr writes the string form of chr, the inverse of parseChr.
func formatChr(b *sexpr.Buffer, chr Chr) error {
	switch chr.Type {
	case ChrNull, ChrVC, ChrStdio, ChrPTY:
		b.Raw(string(chr.Type))
	case ChrFile, ChrPipe:
		b.Raw(string(chr.Type) + ":")
		b.Escaped(chr.Path)
	case ChrDev:
		b.Escaped(chr.Path)
	case ChrTCP:
		proto := "tcp"
		if chr.Telnet {
			proto = "telnet"
		}
		listen := ""
		if chr.Listen {
			listen = ",server,nowait"
		}
		b.Rawf("%s:%s:%s%s", proto, chr.Host, chr.Service, listen)
	case ChrUDP:
		b.Rawf("udp:%s:%s@%s:%s", chr.ConnectHost, chr.ConnectService, chr.BindHost, chr.BindService)
	case ChrUnix:
		b.Raw("unix:")
		b.Escaped(chr.Path)
		if chr.Listen {
			b.Raw(",server,nowait")
		}
	default:
		return fmt.Errorf("%w: unexpected chr device type '%s'", ErrInvalid, chr.Type)
	}
	return nil
}

func parseMAC(s string) (string, error) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("%w: malformed mac address '%s'", ErrInvalid, s)
	}
	return hw.String(), nil
}

// parseAutoBase parses a signed integer in decimal, octal (leading 0) or
// hex (leading 0x).
func parseAutoBase(s string) (int, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
