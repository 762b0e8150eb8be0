// Package memory implements the store repositories in process memory.
// It backs the test suites and doubles as a zero-dependency store for
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/store"
)

// Store holds every table under one lock. The sync workload is one request
// at a time per computer; a single RWMutex is plenty here.
type Store struct {
	mu sync.RWMutex

	nextID map[string]int64

	platforms     map[int64]*domain.Platform
	projects      map[int64]*domain.Project
	computers     map[int64]*domain.Computer
	users         map[int64]*domain.User
	properties    map[int64]*domain.Property
	attributes    map[int64]*domain.Attribute
	attributeSets map[int64]*domain.AttributeSetDef
	domains       map[int64]*domain.DeploymentDomain
	deployments   map[int64]*domain.Deployment
	faultDefs     map[int64]*domain.FaultDefinition
	policies      map[int64]*domain.Policy
	devices       map[int64]*domain.LogicalDevice

	errors    []*domain.ErrorEvent
	faults    []*domain.Fault
	migs      []*domain.Migration
	statusLog []*domain.StatusLog
	syncs     []*domain.Synchronization
	pkgHist   []*domain.PackageHistory
}

// New builds an empty store seeded with the all-systems attribute (ID 1).
func New() (*Store, *store.Repositories) {
	s := &Store{
		nextID:        make(map[string]int64),
		platforms:     make(map[int64]*domain.Platform),
		projects:      make(map[int64]*domain.Project),
		computers:     make(map[int64]*domain.Computer),
		users:         make(map[int64]*domain.User),
		properties:    make(map[int64]*domain.Property),
		attributes:    make(map[int64]*domain.Attribute),
		attributeSets: make(map[int64]*domain.AttributeSetDef),
		domains:       make(map[int64]*domain.DeploymentDomain),
		deployments:   make(map[int64]*domain.Deployment),
		faultDefs:     make(map[int64]*domain.FaultDefinition),
		policies:      make(map[int64]*domain.Policy),
		devices:       make(map[int64]*domain.LogicalDevice),
	}

	prop := &domain.Property{ID: s.id("property"), Prefix: "SET", Name: "Attribute Sets", Enabled: true, Sort: domain.SortBasic, Kind: domain.KindNormal}
	s.properties[prop.ID] = prop
	all := &domain.Attribute{ID: domain.AllSystemsAttributeID, PropertyID: prop.ID, Prefix: "SET", Value: "ALL SYSTEMS"}
	s.attributes[all.ID] = all
	s.nextID["attribute"] = domain.AllSystemsAttributeID

	repos := &store.Repositories{
		Platforms:        &platformRepo{s},
		Projects:         &projectRepo{s},
		Computers:        &computerRepo{s},
		Users:            &userRepo{s},
		Properties:       &propertyRepo{s},
		Attributes:       &attributeRepo{s},
		AttributeSets:    &attributeSetRepo{s},
		Domains:          &domainRepo{s},
		Deployments:      &deploymentRepo{s},
		FaultDefinitions: &faultDefRepo{s},
		Policies:         &policyRepo{s},
		Devices:          &deviceRepo{s},
		Events:           &eventRepo{s},
	}
	return s, repos
}

func (s *Store) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// Seed helpers for tests. They take the write lock themselves.

func (s *Store) AddProject(p *domain.Project) *domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id("project")
	}
	s.projects[p.ID] = p
	return p
}

func (s *Store) AddPlatform(p *domain.Platform) *domain.Platform {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id("platform")
	}
	s.platforms[p.ID] = p
	return p
}

func (s *Store) AddComputer(c *domain.Computer) *domain.Computer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id("computer")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.computers[c.ID] = c
	return c
}

func (s *Store) AddProperty(p *domain.Property) *domain.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id("property")
	}
	s.properties[p.ID] = p
	return p
}

func (s *Store) AddAttribute(a *domain.Attribute) *domain.Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id("attribute")
	}
	s.attributes[a.ID] = a
	return a
}

func (s *Store) AddDeployment(d *domain.Deployment) *domain.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id("deployment")
	}
	s.deployments[d.ID] = d
	return d
}

func (s *Store) AddFaultDefinition(f *domain.FaultDefinition) *domain.FaultDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.id("faultdef")
	}
	s.faultDefs[f.ID] = f
	return f
}

func (s *Store) AddAttributeSet(a *domain.AttributeSetDef) *domain.AttributeSetDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id("attrset")
	}
	s.attributeSets[a.ID] = a
	return a
}

func (s *Store) AddDomain(d *domain.DeploymentDomain) *domain.DeploymentDomain {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id("domain")
	}
	s.domains[d.ID] = d
	return d
}

func (s *Store) AddDevice(d *domain.LogicalDevice) *domain.LogicalDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.id("device")
	}
	s.devices[d.ID] = d
	return d
}

func (s *Store) AddPolicy(p *domain.Policy) *domain.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id("policy")
	}
	s.policies[p.ID] = p
	return p
}

// Event accessors for test assertions.

func (s *Store) Errors() []*domain.ErrorEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.ErrorEvent(nil), s.errors...)
}

func (s *Store) Migrations() []*domain.Migration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Migration(nil), s.migs...)
}

func (s *Store) StatusLogs() []*domain.StatusLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.StatusLog(nil), s.statusLog...)
}

func (s *Store) Synchronizations() []*domain.Synchronization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Synchronization(nil), s.syncs...)
}

func (s *Store) Faults() []*domain.Fault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Fault(nil), s.faults...)
}

type platformRepo struct{ s *Store }

func (r *platformRepo) ByName(_ context.Context, name string) (*domain.Platform, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.platforms {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *platformRepo) Create(_ context.Context, p *domain.Platform) error {
	r.s.AddPlatform(p)
	return nil
}

type projectRepo struct{ s *Store }

func (r *projectRepo) ByID(_ context.Context, id int64) (*domain.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *projectRepo) ByName(_ context.Context, name string) (*domain.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.projects {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *projectRepo) Create(_ context.Context, p *domain.Project) error {
	r.s.AddProject(p)
	return nil
}

type computerRepo struct{ s *Store }

func copyComputer(c *domain.Computer) *domain.Computer {
	cp := *c
	cp.SyncAttributes = append([]int64(nil), c.SyncAttributes...)
	cp.TagIDs = append([]int64(nil), c.TagIDs...)
	return &cp
}

func (r *computerRepo) ByID(_ context.Context, id int64) (*domain.Computer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.computers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyComputer(c), nil
}

func (r *computerRepo) ByUUID(_ context.Context, uuid string) (*domain.Computer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.computers {
		if strings.EqualFold(c.UUID, uuid) {
			return copyComputer(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *computerRepo) ByMAC(_ context.Context, mac string) ([]*domain.Computer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Computer
	for _, c := range r.s.computers {
		if strings.HasSuffix(strings.ToUpper(c.UUID), strings.ToUpper(mac)) {
			out = append(out, copyComputer(c))
		}
	}
	sortComputers(out)
	return out, nil
}

func (r *computerRepo) ByName(_ context.Context, name string) ([]*domain.Computer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Computer
	for _, c := range r.s.computers {
		if c.Name == name {
			out = append(out, copyComputer(c))
		}
	}
	sortComputers(out)
	return out, nil
}

func sortComputers(cs []*domain.Computer) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}

func (r *computerRepo) Create(_ context.Context, c *domain.Computer) error {
	r.s.AddComputer(c)
	return nil
}

func (r *computerRepo) Update(_ context.Context, c *domain.Computer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.computers[c.ID]; !ok {
		return store.ErrNotFound
	}
	r.s.computers[c.ID] = copyComputer(c)
	return nil
}

func (r *computerRepo) ReplaceSyncAttributes(_ context.Context, computerID int64, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.computers[computerID]
	if !ok {
		return store.ErrNotFound
	}
	c.SyncAttributes = append([]int64(nil), ids...)
	return nil
}

func (r *computerRepo) SetTags(_ context.Context, computerID int64, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.computers[computerID]
	if !ok {
		return store.ErrNotFound
	}
	c.TagIDs = append([]int64(nil), ids...)
	return nil
}

func (r *computerRepo) ClearTargeting(_ context.Context, computerID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.computers[computerID]
	if !ok {
		return store.ErrNotFound
	}
	c.TagIDs = nil

	var cid int64
	want := fmt.Sprintf("%d", computerID)
	for _, a := range r.s.attributes {
		if a.Prefix == domain.PrefixCID && a.Value == want {
			cid = a.ID
			break
		}
	}
	if cid == 0 {
		return nil
	}

	drop := func(ids []int64) []int64 {
		out := ids[:0]
		for _, id := range ids {
			if id != cid {
				out = append(out, id)
			}
		}
		return out
	}
	for _, d := range r.s.deployments {
		d.IncludedAttributeIDs = drop(d.IncludedAttributeIDs)
		d.ExcludedAttributeIDs = drop(d.ExcludedAttributeIDs)
		if d.Schedule != nil {
			for i := range d.Schedule.Delays {
				d.Schedule.Delays[i].AttributeIDs = drop(d.Schedule.Delays[i].AttributeIDs)
			}
		}
	}
	for _, f := range r.s.faultDefs {
		f.IncludedAttributeIDs = drop(f.IncludedAttributeIDs)
		f.ExcludedAttributeIDs = drop(f.ExcludedAttributeIDs)
	}
	for _, a := range r.s.attributeSets {
		a.IncludedAttributeIDs = drop(a.IncludedAttributeIDs)
		a.ExcludedAttributeIDs = drop(a.ExcludedAttributeIDs)
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) GetOrCreate(_ context.Context, name, fullName string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	u := &domain.User{ID: r.s.id("user"), Name: name, FullName: fullName}
	r.s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

type propertyRepo struct{ s *Store }

func (r *propertyRepo) EnabledBySort(_ context.Context, sortKind string) ([]*domain.Property, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Property
	for _, p := range r.s.properties {
		if p.Enabled && p.Sort == sortKind {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out, nil
}

func (r *propertyRepo) ByPrefix(_ context.Context, prefix string) (*domain.Property, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.properties {
		if p.Prefix == prefix {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *propertyRepo) GetOrCreate(_ context.Context, prefix, name, sortKind string) (*domain.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.properties {
		if p.Prefix == prefix {
			cp := *p
			return &cp, nil
		}
	}
	p := &domain.Property{
		ID:      r.s.id("property"),
		Prefix:  prefix,
		Name:    name,
		Enabled: true,
		Sort:    sortKind,
		Kind:    "N",
	}
	r.s.properties[p.ID] = p
	cp := *p
	return &cp, nil
}

type attributeRepo struct{ s *Store }

func (r *attributeRepo) ByID(_ context.Context, id int64) (*domain.Attribute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attributes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *attributeRepo) ByPrefixAndValue(_ context.Context, prefix, value string) (*domain.Attribute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.lookupLocked(prefix, value)
}

func (r *attributeRepo) lookupLocked(prefix, value string) (*domain.Attribute, error) {
	for _, a := range r.s.attributes {
		if a.Prefix == prefix && a.Value == value {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *attributeRepo) ByProperty(_ context.Context, propertyID int64) ([]*domain.Attribute, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Attribute
	for _, a := range r.s.attributes {
		if a.PropertyID == propertyID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (r *attributeRepo) GetOrCreate(_ context.Context, propertyID int64, prefix, value, description string) (*domain.Attribute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, err := r.lookupLocked(prefix, value); err == nil {
		return existing, nil
	}
	a := &domain.Attribute{
		ID:          r.s.id("attribute"),
		PropertyID:  propertyID,
		Prefix:      prefix,
		Value:       value,
		Description: description,
	}
	r.s.attributes[a.ID] = a
	cp := *a
	return &cp, nil
}

type attributeSetRepo struct{ s *Store }

func (r *attributeSetRepo) All(_ context.Context) ([]*domain.AttributeSetDef, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.AttributeSetDef
	for _, a := range r.s.attributeSets {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type domainRepo struct{ s *Store }

func (r *domainRepo) All(_ context.Context) ([]*domain.DeploymentDomain, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.DeploymentDomain
	for _, d := range r.s.domains {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type deploymentRepo struct{ s *Store }

func (r *deploymentRepo) ByProject(_ context.Context, projectID int64) ([]*domain.Deployment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Deployment
	for _, d := range r.s.deployments {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type faultDefRepo struct{ s *Store }

func (r *faultDefRepo) All(_ context.Context) ([]*domain.FaultDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.FaultDefinition
	for _, f := range r.s.faultDefs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type policyRepo struct{ s *Store }

func (r *policyRepo) All(_ context.Context) ([]*domain.Policy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Policy
	for _, p := range r.s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type deviceRepo struct{ s *Store }

func (r *deviceRepo) All(_ context.Context) ([]*domain.LogicalDevice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.LogicalDevice
	for _, d := range r.s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type eventRepo struct{ s *Store }

func (r *eventRepo) AddError(_ context.Context, e *domain.ErrorEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.id("error")
	e.CreatedAt = time.Now()
	r.s.errors = append(r.s.errors, e)
	return nil
}

func (r *eventRepo) AddFault(_ context.Context, f *domain.Fault) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f.ID = r.s.id("fault")
	f.CreatedAt = time.Now()
	r.s.faults = append(r.s.faults, f)
	return nil
}

func (r *eventRepo) AddMigration(_ context.Context, m *domain.Migration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id("migration")
	m.CreatedAt = time.Now()
	r.s.migs = append(r.s.migs, m)
	return nil
}

func (r *eventRepo) AddStatusLog(_ context.Context, st *domain.StatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st.ID = r.s.id("statuslog")
	st.CreatedAt = time.Now()
	r.s.statusLog = append(r.s.statusLog, st)
	return nil
}

func (r *eventRepo) AddSynchronization(_ context.Context, sy *domain.Synchronization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sy.ID = r.s.id("sync")
	r.s.syncs = append(r.s.syncs, sy)
	return nil
}

func (r *eventRepo) MarkPackagesUninstalled(_ context.Context, computerID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, h := range r.s.pkgHist {
		if h.ComputerID == computerID && h.UninstallDate == nil {
			t := now
			h.UninstallDate = &t
		}
	}
	return nil
}
