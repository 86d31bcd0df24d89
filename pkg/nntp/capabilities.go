package nntp

import "strings"

// Capabilities is the parsed result of a CAPABILITIES query: a mapping from
// upper-cased capability name to its argument tokens. Lookups are
// case-insensitive, matching spec §4's query semantics. Grounded on
// original_source/src/capabilities.rs, which this reimplements in the
// teacher's idiom.
type Capabilities struct {
	entries map[string][]string
}

// ParseCapabilities builds a Capabilities from the body lines of a 101
// CAPABILITIES reply.
func ParseCapabilities(lines []string) Capabilities {
	c := Capabilities{entries: make(map[string][]string, len(lines))}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToUpper(fields[0])
		c.entries[name] = fields[1:]
	}
	return c
}

// Has reports whether the named capability was advertised.
func (c Capabilities) Has(capability string) bool {
	_, ok := c.entries[strings.ToUpper(capability)]
	return ok
}

// Args returns the argument tokens of the named capability, or nil if it
// wasn't advertised.
func (c Capabilities) Args(capability string) []string {
	return c.entries[strings.ToUpper(capability)]
}

// HasArg reports whether the named capability was advertised with the
// given argument token (case-insensitive).
func (c Capabilities) HasArg(capability, arg string) bool {
	arg = strings.ToUpper(arg)
	for _, a := range c.Args(capability) {
		if strings.ToUpper(a) == arg {
			return true
		}
	}
	return false
}

// List returns every advertised capability name.
func (c Capabilities) List() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	return names
}
