package domain

import "time"

// PackageDelta is the net package change produced by a tag edit.
type PackageDelta struct {
	Install    []string `json:"install"`
	Remove     []string `json:"remove"`
	Preinstall []string `json:"preinstall"`
}

// DiffTags computes the install/remove/preinstall lists for a tag change
// from oldAttrs to newAttrs against the candidate deployments.
//
// Deployments that were reachable only through dropped attributes have their
// package effects inverted: what they installed becomes a removal candidate
// and vice versa. Deployments reachable through the new set (including
// attributes that persisted) apply directly. This asymmetry yields a correct
// net delta from a single pass.
func DiffTags(c *Computer, oldAttrs, newAttrs AttrSet, candidates []*Deployment, today time.Time) PackageDelta {
	oldOnly := oldAttrs.Minus(newAttrs)
	newOnly := newAttrs.Minus(oldAttrs)

	// No change at all conserves the computer's package state.
	if oldOnly.Len() == 0 && newOnly.Len() == 0 {
		return PackageDelta{Install: []string{}, Remove: []string{}, Preinstall: []string{}}
	}

	var install, remove, preinstall []string

	for _, dep := range AvailableDeployments(c, oldOnly, candidates, today) {
		remove = append(remove, dep.InstallablePackages()...)
		install = append(install, dep.RemovablePackages()...)
	}

	for _, dep := range AvailableDeployments(c, newAttrs, candidates, today) {
		remove = append(remove, dep.RemovablePackages()...)
		install = append(install, dep.PackagesToInstall...)
		install = append(install, dep.DefaultIncludedPackages...)
		preinstall = append(preinstall, dep.DefaultPreincludedPackages...)
	}

	return PackageDelta{
		Install:    Dedupe(install),
		Remove:     Dedupe(remove),
		Preinstall: Dedupe(preinstall),
	}
}
