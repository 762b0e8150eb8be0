package domain

import (
	"sort"
	"time"
)

// AvailableDeployments computes which of the candidate deployments apply to
// a computer carrying the given attribute set, as of today. The filter
// pipeline, all clauses AND-ed:
//
//  1. same project, enabled
//  2. no domain, or the domain's own include/exclude test passes
//  3. no excluded attribute matches
//  4. a direct included-attribute match with start date reached, OR a
//     schedule stage match whose time horizon has been reached; the horizon
//     spreads rollout across the stage duration using the computer ID as a
//     stable slot.
//
// The result is ordered by deployment name and free of duplicates. An empty
// attribute set yields an empty result, not an error.
func AvailableDeployments(c *Computer, attrs AttrSet, candidates []*Deployment, today time.Time) []*Deployment {
	if attrs.Len() == 0 {
		return nil
	}

	var out []*Deployment
	for _, dep := range candidates {
		if dep.ProjectID != c.ProjectID || !dep.Enabled {
			continue
		}
		if dep.Domain != nil && !dep.Domain.Matches(attrs) {
			continue
		}
		if attrs.Intersects(dep.ExcludedAttributeIDs) {
			continue
		}
		if deploymentReaches(c, attrs, dep, today) {
			out = append(out, dep)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// deploymentReaches tests the direct and scheduled eligibility clauses.
func deploymentReaches(c *Computer, attrs AttrSet, dep *Deployment, today time.Time) bool {
	if attrs.Intersects(dep.IncludedAttributeIDs) && !dep.StartDate.After(today) {
		return true
	}
	if dep.Schedule == nil {
		return false
	}
	for _, delay := range dep.Schedule.Delays {
		if !attrs.Intersects(delay.AttributeIDs) {
			continue
		}
		duration := delay.Duration
		if duration < 1 {
			duration = 1
		}
		slot := int(c.ID % int64(duration))
		if !TimeHorizon(dep.StartDate, delay.Delay+slot).After(today) {
			return true
		}
	}
	return false
}

// EnabledFaultDefinitions selects the fault checks an attribute set
// subscribes to. Same shape as deployment eligibility, without schedule or
// domain clauses.
func EnabledFaultDefinitions(attrs AttrSet, candidates []*FaultDefinition) []*FaultDefinition {
	if attrs.Len() == 0 {
		return nil
	}

	var out []*FaultDefinition
	for _, def := range candidates {
		if !def.Enabled {
			continue
		}
		if !attrs.Intersects(def.IncludedAttributeIDs) {
			continue
		}
		if attrs.Intersects(def.ExcludedAttributeIDs) {
			continue
		}
		out = append(out, def)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EligibleLogicalDevices selects the logical devices targeted at the
// attribute set.
func EligibleLogicalDevices(attrs AttrSet, candidates []*LogicalDevice) []*LogicalDevice {
	if attrs.Len() == 0 {
		return nil
	}

	var out []*LogicalDevice
	for _, dev := range candidates {
		if attrs.Intersects(dev.AttributeIDs) {
			out = append(out, dev)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PolicyPackages merges the package lists of every enabled policy whose
// attribute test matches. Within a policy, groups apply in priority order;
// an exclusive policy stops at its first matching group.
func PolicyPackages(attrs AttrSet, policies []*Policy) (install, remove []string) {
	if attrs.Len() == 0 {
		return nil, nil
	}

	for _, pol := range policies {
		if !pol.Enabled {
			continue
		}
		if !attrs.Intersects(pol.IncludedAttributeIDs) || attrs.Intersects(pol.ExcludedAttributeIDs) {
			continue
		}

		groups := make([]PolicyGroup, len(pol.Groups))
		copy(groups, pol.Groups)
		sort.Slice(groups, func(i, j int) bool { return groups[i].Priority < groups[j].Priority })

		for _, g := range groups {
			if !attrs.Intersects(g.IncludedIDs) || attrs.Intersects(g.ExcludedIDs) {
				continue
			}
			install = append(install, g.PackagesToInstall...)
			remove = append(remove, g.PackagesToRemove...)
			if pol.Exclusive {
				break
			}
		}
	}

	return Dedupe(install), Dedupe(remove)
}

// Dedupe removes duplicates and empty strings, preserving first-seen order.
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
