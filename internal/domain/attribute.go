package domain

import (
	"fmt"
	"strings"
)

// AllSystemsAttributeID is the well-known attribute every computer carries.
// It is infrastructure: tag reconciliation treats it as implicitly present
// on both sides of a diff so it never shows up as a change.
const AllSystemsAttributeID int64 = 1

// Property sort classes. Basic properties are produced by the server from
// sync metadata, client properties are formulas executed on the agent, and
// server properties (tags) are assigned by operators.
const (
	SortBasic  = "basic"
	SortClient = "client"
	SortServer = "server"
)

// Property kinds control how a reported value expands into attributes.
const (
	KindNormal = "N" // single attribute with the exact value
	KindList   = "-" // comma-separated values, one attribute each
	KindLeft   = "L" // one attribute per left-anchored prefix ("a.b.c" -> "a", "a.b", "a.b.c")
	KindRight  = "R" // one attribute per right-anchored suffix
	KindJSON   = "J" // value stored verbatim, single attribute
)

// Property is a formula definition. Client-sort properties are shipped to
// the agent on get_properties and executed there; the agent reports results
// back through upload_computer_info.
type Property struct {
	ID       int64
	Prefix   string
	Name     string
	Enabled  bool
	Sort     string
	Kind     string
	Language string
	Code     string
}

// Attribute is an immutable (prefix, value) fact. The same prefix+value pair
// is never duplicated; attributes are created lazily on first observation and
// only ever referenced or unreferenced afterwards.
type Attribute struct {
	ID          int64
	PropertyID  int64
	Prefix      string
	Value       string
	Description string
}

func (a Attribute) String() string {
	return a.Prefix + "-" + a.Value
}

// ParseTag splits an operator-supplied "PREFIX-value" tag string.
// The prefix never contains a dash, the value may.
func ParseTag(tag string) (prefix, value string, err error) {
	idx := strings.Index(tag, "-")
	if idx <= 0 || idx == len(tag)-1 {
		return "", "", fmt.Errorf("malformed tag %q: want PREFIX-value", tag)
	}
	return tag[:idx], tag[idx+1:], nil
}

// ExpandValue turns a reported property value into the list of attribute
// values it implies, according to the property kind.
func ExpandValue(kind, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	switch kind {
	case KindList:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case KindLeft:
		return expandAnchored(value, true)
	case KindRight:
		return expandAnchored(value, false)
	default: // KindNormal, KindJSON
		return []string{value}
	}
}

// expandAnchored produces the cumulative dot-separated prefixes (left=true)
// or suffixes (left=false) of value, shortest first.
func expandAnchored(value string, left bool) []string {
	parts := strings.Split(value, ".")
	out := make([]string, 0, len(parts))
	for i := range parts {
		if left {
			out = append(out, strings.Join(parts[:i+1], "."))
		} else {
			out = append(out, strings.Join(parts[len(parts)-1-i:], "."))
		}
	}
	return out
}
