package domain

import "testing"

func TestDiffTagsUnchangedSetIsEmpty(t *testing.T) {
	c := testComputer(1, 1)
	dep := testDeployment(1, "base", 1, 10)
	dep.PackagesToInstall = []string{"pkgA"}

	attrs := NewAttrSet(1, 10)
	got := DiffTags(c, attrs, attrs, []*Deployment{dep}, eligToday)

	if len(got.Install) != 0 || len(got.Remove) != 0 || len(got.Preinstall) != 0 {
		t.Errorf("unchanged tag set must conserve package state, got %+v", got)
	}
}

func TestDiffTagsRetag(t *testing.T) {
	// T1 -> D1 installs pkgA. T2 -> D2 installs pkgB and removes pkgA.
	// Retagging T1 to T2 must remove pkgA and install pkgB.
	c := testComputer(1, 1)

	d1 := testDeployment(1, "d1", 1, 10)
	d1.PackagesToInstall = []string{"pkgA"}

	d2 := testDeployment(2, "d2", 1, 20)
	d2.PackagesToInstall = []string{"pkgB"}
	d2.PackagesToRemove = []string{"pkgA"}

	candidates := []*Deployment{d1, d2}
	got := DiffTags(c, NewAttrSet(10), NewAttrSet(20), candidates, eligToday)

	if !slicesEqual(got.Remove, []string{"pkgA"}) {
		t.Errorf("Remove = %v, want [pkgA]", got.Remove)
	}
	if !slicesEqual(got.Install, []string{"pkgB"}) {
		t.Errorf("Install = %v, want [pkgB]", got.Install)
	}
	if len(got.Preinstall) != 0 {
		t.Errorf("Preinstall = %v, want empty", got.Preinstall)
	}
}

func TestDiffTagsLostEligibilityInverts(t *testing.T) {
	c := testComputer(1, 1)

	dep := testDeployment(1, "inverted", 1, 10)
	dep.PackagesToInstall = []string{"editor"}
	dep.DefaultIncludedPackages = []string{"runtime"}
	dep.DefaultPreincludedPackages = []string{"bootstrap"}
	dep.PackagesToRemove = []string{"legacy"}
	dep.DefaultExcludedPackages = []string{"banned"}

	got := DiffTags(c, NewAttrSet(10), NewAttrSet(), []*Deployment{dep}, eligToday)

	// Everything the deployment installed becomes a removal candidate, and
	// everything it removed comes back.
	if !slicesEqual(got.Remove, []string{"editor", "runtime", "bootstrap"}) {
		t.Errorf("Remove = %v", got.Remove)
	}
	if !slicesEqual(got.Install, []string{"legacy", "banned"}) {
		t.Errorf("Install = %v", got.Install)
	}
}

func TestDiffTagsRetainedAttributeKeepsEligibility(t *testing.T) {
	// An attribute present in both sets keeps its deployments applying
	// directly; they must not be treated as lost.
	c := testComputer(1, 1)
	dep := testDeployment(1, "kept", 1, 10)
	dep.PackagesToInstall = []string{"pkgA"}

	got := DiffTags(c, NewAttrSet(10, 11), NewAttrSet(10, 12), []*Deployment{dep}, eligToday)

	if len(got.Remove) != 0 {
		t.Errorf("Remove = %v, want empty", got.Remove)
	}
	if !slicesEqual(got.Install, []string{"pkgA"}) {
		t.Errorf("Install = %v, want [pkgA]", got.Install)
	}
}

func TestDiffTagsDeduplicates(t *testing.T) {
	c := testComputer(1, 1)
	d1 := testDeployment(1, "a", 1, 10)
	d1.PackagesToInstall = []string{"shared", "", "shared"}
	d2 := testDeployment(2, "b", 1, 10)
	d2.PackagesToInstall = []string{"shared", "extra"}

	got := DiffTags(c, NewAttrSet(), NewAttrSet(10), []*Deployment{d1, d2}, eligToday)
	if !slicesEqual(got.Install, []string{"shared", "extra"}) {
		t.Errorf("Install = %v, want [shared extra]", got.Install)
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays empty", nil, []string{}},
		{"drops empties", []string{"", "a", ""}, []string{"a"}},
		{"first occurrence wins", []string{"b", "a", "b", "a"}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dedupe(tt.in); !slicesEqual(got, tt.want) {
				t.Errorf("Dedupe(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
