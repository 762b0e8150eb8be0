package domain

import (
	"testing"
	"time"
)

var eligToday = date(2024, time.March, 1)

func testComputer(id, projectID int64) *Computer {
	return &Computer{ID: id, ProjectID: projectID, Status: StatusIntended}
}

func testDeployment(id int64, name string, projectID int64, included ...int64) *Deployment {
	return &Deployment{
		ID:                   id,
		Name:                 name,
		ProjectID:            projectID,
		Enabled:              true,
		StartDate:            date(2024, time.January, 1),
		IncludedAttributeIDs: included,
	}
}

func depNames(deps []*Deployment) []string {
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name)
	}
	return names
}

func TestAvailableDeployments(t *testing.T) {
	c := testComputer(42, 1)

	tests := []struct {
		name       string
		attrs      AttrSet
		candidates []*Deployment
		want       []string
	}{
		{
			name:       "direct attribute match",
			attrs:      NewAttrSet(10),
			candidates: []*Deployment{testDeployment(1, "base", 1, 10)},
			want:       []string{"base"},
		},
		{
			name:       "empty attribute set yields nothing",
			attrs:      NewAttrSet(),
			candidates: []*Deployment{testDeployment(1, "base", 1, 10)},
			want:       nil,
		},
		{
			name:       "project mismatch excludes",
			attrs:      NewAttrSet(10),
			candidates: []*Deployment{testDeployment(1, "base", 2, 10)},
			want:       nil,
		},
		{
			name:  "disabled deployment excluded",
			attrs: NewAttrSet(10),
			candidates: []*Deployment{func() *Deployment {
				d := testDeployment(1, "base", 1, 10)
				d.Enabled = false
				return d
			}()},
			want: nil,
		},
		{
			name:  "excluded attribute wins over included",
			attrs: NewAttrSet(10, 11),
			candidates: []*Deployment{func() *Deployment {
				d := testDeployment(1, "base", 1, 10)
				d.ExcludedAttributeIDs = []int64{11}
				return d
			}()},
			want: nil,
		},
		{
			name:  "future start date excludes direct clause",
			attrs: NewAttrSet(10),
			candidates: []*Deployment{func() *Deployment {
				d := testDeployment(1, "base", 1, 10)
				d.StartDate = eligToday.AddDate(0, 0, 7)
				return d
			}()},
			want: nil,
		},
		{
			name:  "domain include required",
			attrs: NewAttrSet(10),
			candidates: []*Deployment{func() *Deployment {
				d := testDeployment(1, "base", 1, 10)
				d.Domain = &DeploymentDomain{IncludedIDs: []int64{99}}
				return d
			}()},
			want: nil,
		},
		{
			name:  "domain exclusion rejects",
			attrs: NewAttrSet(10, 20),
			candidates: []*Deployment{func() *Deployment {
				d := testDeployment(1, "base", 1, 10)
				d.Domain = &DeploymentDomain{IncludedIDs: []int64{10}, ExcludedIDs: []int64{20}}
				return d
			}()},
			want: nil,
		},
		{
			name:  "ordered by name, duplicates impossible",
			attrs: NewAttrSet(10),
			candidates: []*Deployment{
				testDeployment(2, "zeta", 1, 10),
				testDeployment(1, "alpha", 1, 10),
				testDeployment(3, "mid", 1, 10),
			},
			want: []string{"alpha", "mid", "zeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := depNames(AvailableDeployments(c, tt.attrs, tt.candidates, eligToday))
			if !slicesEqual(got, tt.want) {
				t.Errorf("AvailableDeployments() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvailableDeploymentsIdempotent(t *testing.T) {
	c := testComputer(7, 1)
	attrs := NewAttrSet(10, 11)
	candidates := []*Deployment{
		testDeployment(1, "b", 1, 10),
		testDeployment(2, "a", 1, 11),
	}

	first := depNames(AvailableDeployments(c, attrs, candidates, eligToday))
	second := depNames(AvailableDeployments(c, attrs, candidates, eligToday))
	if !slicesEqual(first, second) {
		t.Errorf("second call differs: %v vs %v", first, second)
	}
	if attrs.Len() != 2 {
		t.Errorf("input attribute set was mutated, len = %d", attrs.Len())
	}
}

func TestScheduledRollout(t *testing.T) {
	// Stage opens at start date, four-day window. Slot = id mod 4 business
	// days after the stage delay.
	sched := &Schedule{
		ID: 1,
		Delays: []ScheduleDelay{
			{Delay: 0, Duration: 4, AttributeIDs: []int64{50}},
		},
	}
	dep := testDeployment(1, "staged", 1) // no direct inclusion
	dep.Schedule = sched
	dep.StartDate = date(2024, time.January, 8) // Monday

	attrs := NewAttrSet(50)
	today := date(2024, time.January, 9) // Tuesday, one business day in

	tests := []struct {
		computerID int64
		eligible   bool
	}{
		{computerID: 4, eligible: true},  // slot 0, opens Monday
		{computerID: 1, eligible: true},  // slot 1, opens Tuesday
		{computerID: 2, eligible: false}, // slot 2, opens Wednesday
		{computerID: 3, eligible: false}, // slot 3, opens Thursday
	}

	for _, tt := range tests {
		got := AvailableDeployments(testComputer(tt.computerID, 1), attrs, []*Deployment{dep}, today)
		if (len(got) == 1) != tt.eligible {
			t.Errorf("computer %d: eligible = %v, want %v", tt.computerID, len(got) == 1, tt.eligible)
		}
	}
}

func TestScheduleSlotMonotonic(t *testing.T) {
	// For a fixed stage, a lower slot never becomes eligible after a higher
	// one. Sweep a month of days and check the first-eligible day ordering.
	sched := &Schedule{
		Delays: []ScheduleDelay{{Delay: 2, Duration: 5, AttributeIDs: []int64{50}}},
	}
	dep := testDeployment(1, "staged", 1)
	dep.Schedule = sched
	dep.StartDate = date(2024, time.January, 8)
	attrs := NewAttrSet(50)

	firstEligible := make(map[int64]int) // computer id -> day index
	for id := int64(0); id < 5; id++ {
		firstEligible[id] = -1
		for day := 0; day < 31; day++ {
			today := dep.StartDate.AddDate(0, 0, day)
			if len(AvailableDeployments(testComputer(id, 1), attrs, []*Deployment{dep}, today)) == 1 {
				firstEligible[id] = day
				break
			}
		}
		if firstEligible[id] == -1 {
			t.Fatalf("computer %d never became eligible", id)
		}
	}

	for id := int64(1); id < 5; id++ {
		if firstEligible[id] < firstEligible[id-1] {
			t.Errorf("slot %d eligible on day %d, before slot %d (day %d)",
				id, firstEligible[id], id-1, firstEligible[id-1])
		}
	}
}

func TestScheduledAndDirectCountOnce(t *testing.T) {
	dep := testDeployment(1, "both", 1, 10)
	dep.Schedule = &Schedule{
		Delays: []ScheduleDelay{{Delay: 0, Duration: 1, AttributeIDs: []int64{10}}},
	}

	got := AvailableDeployments(testComputer(1, 1), NewAttrSet(10), []*Deployment{dep}, eligToday)
	if len(got) != 1 {
		t.Errorf("deployment matched by both clauses counted %d times", len(got))
	}
}

func TestEnabledFaultDefinitions(t *testing.T) {
	defs := []*FaultDefinition{
		{ID: 1, Name: "low disk", Enabled: true, IncludedAttributeIDs: []int64{10}},
		{ID: 2, Name: "cups down", Enabled: true, IncludedAttributeIDs: []int64{10}, ExcludedAttributeIDs: []int64{11}},
		{ID: 3, Name: "disabled", Enabled: false, IncludedAttributeIDs: []int64{10}},
		{ID: 4, Name: "other attr", Enabled: true, IncludedAttributeIDs: []int64{99}},
	}

	got := EnabledFaultDefinitions(NewAttrSet(10, 11), defs)
	if len(got) != 1 || got[0].Name != "low disk" {
		t.Errorf("EnabledFaultDefinitions() = %v, want [low disk]", got)
	}

	if got := EnabledFaultDefinitions(NewAttrSet(), defs); got != nil {
		t.Errorf("empty attribute set should yield nil, got %v", got)
	}
}

func TestPolicyPackages(t *testing.T) {
	policies := []*Policy{
		{
			ID: 1, Name: "office", Enabled: true, Exclusive: true,
			IncludedAttributeIDs: []int64{10},
			Groups: []PolicyGroup{
				{Priority: 2, IncludedIDs: []int64{10}, PackagesToInstall: []string{"libreoffice"}},
				{Priority: 1, IncludedIDs: []int64{10}, PackagesToInstall: []string{"onlyoffice"}, PackagesToRemove: []string{"abiword"}},
			},
		},
	}

	install, remove := PolicyPackages(NewAttrSet(10), policies)
	// Exclusive policy stops at the first matching group by priority.
	if !slicesEqual(install, []string{"onlyoffice"}) {
		t.Errorf("install = %v, want [onlyoffice]", install)
	}
	if !slicesEqual(remove, []string{"abiword"}) {
		t.Errorf("remove = %v, want [abiword]", remove)
	}
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
