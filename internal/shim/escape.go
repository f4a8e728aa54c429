package shim

import (
	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

// Escape turns a unit name into a single object path element. Alphanumerics
// pass through, every other byte and a leading digit become "_xx".
func Escape(name string) string {
	return sddbus.PathBusEscape(name)
}

// Unescape reverses Escape. A "_" that does not start a two digit hex
// sequence is dropped, as are decoded bytes that are not printable.
func Unescape(element string) string {
	if element == "_" {
		return ""
	}

	out := make([]byte, 0, len(element))
	for i := 0; i < len(element); i++ {
		c := element[i]
		if c != '_' {
			out = append(out, c)
			continue
		}
		if i+2 < len(element) && isHex(element[i+1]) && isHex(element[i+2]) {
			v := unhex(element[i+1])<<4 | unhex(element[i+2])
			if v > ' ' && v < 0x7f {
				out = append(out, v)
			}
			i += 2
		}
	}
	return string(out)
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
