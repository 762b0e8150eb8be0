package domain

// AttributeSetDef is a named, server-defined grouping of computers: any
// computer whose accumulated attributes pass the include/exclude test gains
// a derived attribute (prefix "SET", value = set name) during the
// sync-attribute rebuild.
type AttributeSetDef struct {
	ID                   int64
	Name                 string
	Enabled              bool
	IncludedAttributeIDs []int64
	ExcludedAttributeIDs []int64
}

// Matches applies the set's include/exclude test.
func (s *AttributeSetDef) Matches(attrs AttrSet) bool {
	return attrs.Intersects(s.IncludedAttributeIDs) && !attrs.Intersects(s.ExcludedAttributeIDs)
}

// Derived-attribute property prefixes created by the server during the
// attribute rebuild, as opposed to client-reported formulas.
const (
	PrefixCID         = "CID" // per-computer synthetic attribute
	PrefixSet         = "SET" // attribute-set membership
	PrefixDomain      = "DMN" // domain membership
	PrefixDescription = "DSC" // operator-facing description
	PrefixIP          = "IP"
	PrefixPlatform    = "PLT"
	PrefixProject     = "PRJ"
	PrefixUser        = "USR"
)
