package dnsutils

import "github.com/miekg/dns"

// EqualNames reports whether two domain names in text form are equal,
// ignoring ASCII case as required by RFC 1035.
func EqualNames(x, y string) bool {
	if len(x) != len(y) {
		return false
	}
	for i := 0; i < len(x); i++ {
		a := x[i]
		b := y[i]
		if 'A' <= a && a <= 'Z' {
			a += 0x20
		}
		if 'A' <= b && b <= 'Z' {
			b += 0x20
		}
		if a != b {
			return false
		}
	}
	return true
}

// CanonicalName returns the lowercase fully qualified form of s,
// suitable for use as a map key.
func CanonicalName(s string) string {
	return dns.CanonicalName(s)
}

// IsAncestorOrEqual reports whether owner is an ancestor of name
// (or the same name). Both must be fully qualified.
func IsAncestorOrEqual(owner, name string) bool {
	return dns.IsSubDomain(owner, name)
}

// RewriteSuffix applies a DNAME style substitution: the owner suffix of
// name is replaced by target. It reports false when owner is not an
// ancestor-or-equal of name.
func RewriteSuffix(name, owner, target string) (string, bool) {
	if !dns.IsSubDomain(owner, name) {
		return "", false
	}

	keep := dns.CountLabel(name) - dns.CountLabel(owner)
	if keep <= 0 {
		return target, true
	}

	// Offsets of each label start; name[:offs[keep]] keeps the leading
	// labels including their trailing dot.
	offs := dns.Split(name)
	if keep >= len(offs) {
		return target, true
	}
	return name[:offs[keep]] + target, true
}
