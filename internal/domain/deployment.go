package domain

import "time"

// ScheduleDelay is one stage of a staged rollout. Delay is a business-day
// offset from the deployment start date; Duration is the rollout window in
// days, load-balanced by computer ID.
type ScheduleDelay struct {
	ID           int64
	ScheduleID   int64
	Delay        int
	Duration     int
	AttributeIDs []int64
}

// Schedule is an ordered sequence of rollout stages.
type Schedule struct {
	ID     int64
	Name   string
	Delays []ScheduleDelay
}

// DeploymentDomain restricts a deployment to computers matching its own
// include/exclude attribute test.
type DeploymentDomain struct {
	ID          int64
	Name        string
	IncludedIDs []int64
	ExcludedIDs []int64
}

// Matches applies the domain's include/exclude test to an attribute set.
func (d *DeploymentDomain) Matches(attrs AttrSet) bool {
	return attrs.Intersects(d.IncludedIDs) && !attrs.Intersects(d.ExcludedIDs)
}

// Deployment is an attribute-targeted bundle of package instructions,
// optionally staged through a Schedule. Domain and Schedule are resolved by
// the repository when the deployment is loaded.
type Deployment struct {
	ID        int64
	Name      string
	Slug      string
	ProjectID int64
	Enabled   bool
	StartDate time.Time

	Domain   *DeploymentDomain
	Schedule *Schedule

	IncludedAttributeIDs []int64
	ExcludedAttributeIDs []int64

	PackagesToInstall          []string
	PackagesToRemove           []string
	DefaultPreincludedPackages []string
	DefaultIncludedPackages    []string
	DefaultExcludedPackages    []string
}

// InstallablePackages is everything this deployment installs on an eligible
// computer. Losing eligibility reverses these into removal candidates.
func (d *Deployment) InstallablePackages() []string {
	out := make([]string, 0, len(d.PackagesToInstall)+len(d.DefaultIncludedPackages)+len(d.DefaultPreincludedPackages))
	out = append(out, d.PackagesToInstall...)
	out = append(out, d.DefaultIncludedPackages...)
	out = append(out, d.DefaultPreincludedPackages...)
	return out
}

// RemovablePackages is everything this deployment removes on an eligible
// computer.
func (d *Deployment) RemovablePackages() []string {
	out := make([]string, 0, len(d.PackagesToRemove)+len(d.DefaultExcludedPackages))
	out = append(out, d.PackagesToRemove...)
	out = append(out, d.DefaultExcludedPackages...)
	return out
}

// FaultDefinition is a named fault check shipped to eligible agents.
// Eligibility has the same shape as Deployment's attribute test, without
// scheduling or domain clauses.
type FaultDefinition struct {
	ID                   int64
	Name                 string
	Enabled              bool
	Language             string
	Code                 string
	IncludedAttributeIDs []int64
	ExcludedAttributeIDs []int64
}

// PolicyGroup is one priority band of a Policy, contributing its package
// lists when its attribute test matches.
type PolicyGroup struct {
	ID                int64
	Priority          int
	IncludedIDs       []int64
	ExcludedIDs       []int64
	PackagesToInstall []string
	PackagesToRemove  []string
}

// Policy drives package lists by attribute match outside any deployment.
// Exclusive policies stop at the first matching group.
type Policy struct {
	ID                   int64
	Name                 string
	Enabled              bool
	Exclusive            bool
	IncludedAttributeIDs []int64
	ExcludedAttributeIDs []int64
	Groups               []PolicyGroup
}
