package bun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/store"
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

type platformRepo struct {
	db *bun.DB
}

func (r *platformRepo) ByName(ctx context.Context, name string) (*domain.Platform, error) {
	p := new(Platform)
	if err := r.db.NewSelect().Model(p).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return p.ToModel(), nil
}

func (r *platformRepo) Create(ctx context.Context, m *domain.Platform) error {
	p := &Platform{Name: m.Name}
	if _, err := r.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return err
	}
	m.ID = p.ID
	return nil
}

type projectRepo struct {
	db *bun.DB
}

func (r *projectRepo) ByID(ctx context.Context, id int64) (*domain.Project, error) {
	p := new(Project)
	if err := r.db.NewSelect().Model(p).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return p.ToModel(), nil
}

func (r *projectRepo) ByName(ctx context.Context, name string) (*domain.Project, error) {
	p := new(Project)
	if err := r.db.NewSelect().Model(p).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return p.ToModel(), nil
}

func (r *projectRepo) Create(ctx context.Context, m *domain.Project) error {
	p := ProjectFromModel(m)
	if _, err := r.db.NewInsert().Model(p).Exec(ctx); err != nil {
		return err
	}
	m.ID = p.ID
	return nil
}

type computerRepo struct {
	db *bun.DB
}

func (r *computerRepo) ByID(ctx context.Context, id int64) (*domain.Computer, error) {
	c := new(Computer)
	if err := r.db.NewSelect().Model(c).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return c.ToModel(), nil
}

func (r *computerRepo) ByUUID(ctx context.Context, uuid string) (*domain.Computer, error) {
	c := new(Computer)
	if err := r.db.NewSelect().Model(c).Where("upper(uuid) = upper(?)", uuid).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return c.ToModel(), nil
}

func (r *computerRepo) ByMAC(ctx context.Context, mac string) ([]*domain.Computer, error) {
	var rows []*Computer
	err := r.db.NewSelect().Model(&rows).
		Where("upper(uuid) LIKE ?", "%"+mac).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toComputerModels(rows), nil
}

func (r *computerRepo) ByName(ctx context.Context, name string) ([]*domain.Computer, error) {
	var rows []*Computer
	err := r.db.NewSelect().Model(&rows).
		Where("name = ?", name).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toComputerModels(rows), nil
}

func toComputerModels(rows []*Computer) []*domain.Computer {
	out := make([]*domain.Computer, len(rows))
	for i, c := range rows {
		out[i] = c.ToModel()
	}
	return out
}

func (r *computerRepo) Create(ctx context.Context, m *domain.Computer) error {
	c := ComputerFromModel(m)
	if c.SyncAttributes == nil {
		c.SyncAttributes = []int64{}
	}
	if c.Tags == nil {
		c.Tags = []int64{}
	}
	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return err
	}
	m.ID = c.ID
	return nil
}

func (r *computerRepo) Update(ctx context.Context, m *domain.Computer) error {
	c := ComputerFromModel(m)
	res, err := r.db.NewUpdate().Model(c).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *computerRepo) ReplaceSyncAttributes(ctx context.Context, computerID int64, attributeIDs []int64) error {
	if attributeIDs == nil {
		attributeIDs = []int64{}
	}
	// Single UPDATE: readers see the old or the new JSON value, never a
	// partial rebuild.
	res, err := r.db.NewUpdate().Model((*Computer)(nil)).
		Set("sync_attributes = ?", jsonColumn(attributeIDs)).
		Where("id = ?", computerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *computerRepo) SetTags(ctx context.Context, computerID int64, attributeIDs []int64) error {
	if attributeIDs == nil {
		attributeIDs = []int64{}
	}
	res, err := r.db.NewUpdate().Model((*Computer)(nil)).
		Set("tags = ?", jsonColumn(attributeIDs)).
		Where("id = ?", computerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *computerRepo) ClearTargeting(ctx context.Context, computerID int64) error {
	cid, err := r.cidAttribute(ctx, computerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model((*Computer)(nil)).
			Set("tags = ?", "[]").
			Where("id = ?", computerID).
			Exec(ctx); err != nil {
			return err
		}
		if cid == 0 {
			return nil
		}
		return clearMembership(ctx, tx, cid)
	})
}

// clearMembership removes the CID attribute from every membership column.
// SQLite's json functions have no remove-by-value, so the lists are
// rewritten in Go.
func clearMembership(ctx context.Context, tx bun.Tx, cid int64) error {
	if err := rewriteIDColumn(ctx, tx, "deployments", "included_attributes", cid); err != nil {
		return err
	}
	if err := rewriteIDColumn(ctx, tx, "deployments", "excluded_attributes", cid); err != nil {
		return err
	}
	if err := rewriteIDColumn(ctx, tx, "fault_definitions", "included_attributes", cid); err != nil {
		return err
	}
	if err := rewriteIDColumn(ctx, tx, "fault_definitions", "excluded_attributes", cid); err != nil {
		return err
	}
	if err := rewriteIDColumn(ctx, tx, "attribute_sets", "included_attributes", cid); err != nil {
		return err
	}
	if err := rewriteIDColumn(ctx, tx, "attribute_sets", "excluded_attributes", cid); err != nil {
		return err
	}
	return rewriteIDColumn(ctx, tx, "schedule_delays", "attributes", cid)
}

// rewriteIDColumn loads every JSON id-list in table.column, drops cid from
// any list containing it and writes the list back. SQLite's json functions
// have no remove-by-value, so the rewrite happens here.
func rewriteIDColumn(ctx context.Context, tx bun.Tx, table, column string, cid int64) error {
	q := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s LIKE ?", column, table, column)
	rows, err := tx.QueryContext(ctx, q, fmt.Sprintf("%%%d%%", cid))
	if err != nil {
		return err
	}
	defer rows.Close()

	type pending struct {
		id  int64
		ids []int64
	}
	var updates []pending

	for rows.Next() {
		var id int64
		var raw sql.NullString
		if err := rows.Scan(&id, &raw); err != nil {
			return err
		}
		if !raw.Valid || raw.String == "" {
			continue
		}
		var ids []int64
		if err := json.Unmarshal([]byte(raw.String), &ids); err != nil {
			return fmt.Errorf("decode %s.%s: %w", table, column, err)
		}
		kept := make([]int64, 0, len(ids))
		changed := false
		for _, v := range ids {
			if v == cid {
				changed = true
				continue
			}
			kept = append(kept, v)
		}
		if changed {
			updates = append(updates, pending{id: id, ids: kept})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		upd := fmt.Sprintf("UPDATE %s SET %s = ? WHERE id = ?", table, column)
		if _, err := tx.ExecContext(ctx, upd, jsonColumn(u.ids), u.id); err != nil {
			return err
		}
	}
	return nil
}

// jsonColumn marshals an id list for storage in a JSON column.
func jsonColumn(ids []int64) string {
	raw, _ := json.Marshal(ids)
	return string(raw)
}

// cidAttribute finds the computer's synthetic CID attribute ID, if any.
func (r *computerRepo) cidAttribute(ctx context.Context, computerID int64) (int64, error) {
	a := new(Attribute)
	err := r.db.NewSelect().Model(a).
		Where("prefix = ?", domain.PrefixCID).
		Where("value = ?", fmt.Sprintf("%d", computerID)).
		Scan(ctx)
	if err != nil {
		return 0, notFound(err)
	}
	return a.ID, nil
}

type userRepo struct {
	db *bun.DB
}

func (r *userRepo) GetOrCreate(ctx context.Context, name, fullName string) (*domain.User, error) {
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("name = ?", name).Scan(ctx)
	if err == nil {
		return u.ToModel(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	u = &User{Name: name, FullName: fullName}
	if _, err := r.db.NewInsert().Model(u).Exec(ctx); err != nil {
		return nil, err
	}
	return u.ToModel(), nil
}

type propertyRepo struct {
	db *bun.DB
}

func (r *propertyRepo) EnabledBySort(ctx context.Context, sort string) ([]*domain.Property, error) {
	var rows []*Property
	err := r.db.NewSelect().Model(&rows).
		Where("enabled = ?", true).
		Where("sort = ?", sort).
		Order("prefix ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Property, len(rows))
	for i, p := range rows {
		out[i] = p.ToModel()
	}
	return out, nil
}

func (r *propertyRepo) ByPrefix(ctx context.Context, prefix string) (*domain.Property, error) {
	p := new(Property)
	if err := r.db.NewSelect().Model(p).Where("prefix = ?", prefix).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return p.ToModel(), nil
}

func (r *propertyRepo) GetOrCreate(ctx context.Context, prefix, name, sort string) (*domain.Property, error) {
	if existing, err := r.ByPrefix(ctx, prefix); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	p := &Property{Prefix: prefix, Name: name, Enabled: true, Sort: sort, Kind: "N"}
	if _, err := r.db.NewInsert().Model(p).
		On("CONFLICT (prefix) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}
	return r.ByPrefix(ctx, prefix)
}

type attributeRepo struct {
	db *bun.DB
}

func (r *attributeRepo) ByID(ctx context.Context, id int64) (*domain.Attribute, error) {
	a := new(Attribute)
	if err := r.db.NewSelect().Model(a).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return a.ToModel(), nil
}

func (r *attributeRepo) ByPrefixAndValue(ctx context.Context, prefix, value string) (*domain.Attribute, error) {
	a := new(Attribute)
	err := r.db.NewSelect().Model(a).
		Where("prefix = ?", prefix).
		Where("value = ?", value).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return a.ToModel(), nil
}

func (r *attributeRepo) ByProperty(ctx context.Context, propertyID int64) ([]*domain.Attribute, error) {
	var rows []*Attribute
	err := r.db.NewSelect().Model(&rows).
		Where("property_id = ?", propertyID).
		Order("value ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Attribute, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.ToModel())
	}
	return out, nil
}

func (r *attributeRepo) GetOrCreate(ctx context.Context, propertyID int64, prefix, value, description string) (*domain.Attribute, error) {
	if existing, err := r.ByPrefixAndValue(ctx, prefix, value); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	a := &Attribute{PropertyID: propertyID, Prefix: prefix, Value: value, Description: description}
	if _, err := r.db.NewInsert().Model(a).
		On("CONFLICT (prefix, value) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}
	// Re-read so a concurrent insert still yields the canonical row.
	return r.ByPrefixAndValue(ctx, prefix, value)
}

type attributeSetRepo struct {
	db *bun.DB
}

func (r *attributeSetRepo) All(ctx context.Context) ([]*domain.AttributeSetDef, error) {
	var rows []*AttributeSet
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.AttributeSetDef, len(rows))
	for i, s := range rows {
		out[i] = s.ToModel()
	}
	return out, nil
}

type domainRepo struct {
	db *bun.DB
}

func (r *domainRepo) All(ctx context.Context) ([]*domain.DeploymentDomain, error) {
	var rows []*Domain
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.DeploymentDomain, len(rows))
	for i, d := range rows {
		out[i] = d.ToModel()
	}
	return out, nil
}

type deploymentRepo struct {
	db *bun.DB
}

func (r *deploymentRepo) ByProject(ctx context.Context, projectID int64) ([]*domain.Deployment, error) {
	var rows []*Deployment
	err := r.db.NewSelect().Model(&rows).
		Where("project_id = ?", projectID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	domains, err := r.domainsByID(ctx)
	if err != nil {
		return nil, err
	}
	schedules, err := r.schedulesByID(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Deployment, len(rows))
	for i, d := range rows {
		dep := &domain.Deployment{
			ID:                         d.ID,
			Name:                       d.Name,
			Slug:                       d.Slug,
			ProjectID:                  d.ProjectID,
			Enabled:                    d.Enabled,
			StartDate:                  d.StartDate,
			IncludedAttributeIDs:       d.IncludedIDs,
			ExcludedAttributeIDs:       d.ExcludedIDs,
			PackagesToInstall:          d.PackagesToInstall,
			PackagesToRemove:           d.PackagesToRemove,
			DefaultPreincludedPackages: d.DefaultPreincludedPackages,
			DefaultIncludedPackages:    d.DefaultIncludedPackages,
			DefaultExcludedPackages:    d.DefaultExcludedPackages,
		}
		if d.DomainID != nil {
			dep.Domain = domains[*d.DomainID]
		}
		if d.ScheduleID != nil {
			dep.Schedule = schedules[*d.ScheduleID]
		}
		out[i] = dep
	}
	return out, nil
}

func (r *deploymentRepo) domainsByID(ctx context.Context) (map[int64]*domain.DeploymentDomain, error) {
	var rows []*Domain
	if err := r.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	out := make(map[int64]*domain.DeploymentDomain, len(rows))
	for _, d := range rows {
		out[d.ID] = d.ToModel()
	}
	return out, nil
}

func (r *deploymentRepo) schedulesByID(ctx context.Context) (map[int64]*domain.Schedule, error) {
	var scheds []*Schedule
	if err := r.db.NewSelect().Model(&scheds).Scan(ctx); err != nil {
		return nil, err
	}
	var delays []*ScheduleDelay
	if err := r.db.NewSelect().Model(&delays).Order("delay ASC").Scan(ctx); err != nil {
		return nil, err
	}

	out := make(map[int64]*domain.Schedule, len(scheds))
	for _, s := range scheds {
		out[s.ID] = &domain.Schedule{ID: s.ID, Name: s.Name}
	}
	for _, d := range delays {
		s, ok := out[d.ScheduleID]
		if !ok {
			continue
		}
		s.Delays = append(s.Delays, domain.ScheduleDelay{
			ID:           d.ID,
			ScheduleID:   d.ScheduleID,
			Delay:        d.Delay,
			Duration:     d.Duration,
			AttributeIDs: d.AttributeIDs,
		})
	}
	return out, nil
}

type faultDefinitionRepo struct {
	db *bun.DB
}

func (r *faultDefinitionRepo) All(ctx context.Context) ([]*domain.FaultDefinition, error) {
	var rows []*FaultDefinition
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.FaultDefinition, len(rows))
	for i, f := range rows {
		out[i] = f.ToModel()
	}
	return out, nil
}

type policyRepo struct {
	db *bun.DB
}

func (r *policyRepo) All(ctx context.Context) ([]*domain.Policy, error) {
	var rows []*Policy
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	var groups []*PolicyGroup
	if err := r.db.NewSelect().Model(&groups).Order("priority ASC").Scan(ctx); err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Policy, len(rows))
	out := make([]*domain.Policy, len(rows))
	for i, p := range rows {
		pol := &domain.Policy{
			ID:                   p.ID,
			Name:                 p.Name,
			Enabled:              p.Enabled,
			Exclusive:            p.Exclusive,
			IncludedAttributeIDs: p.IncludedIDs,
			ExcludedAttributeIDs: p.ExcludedIDs,
		}
		byID[p.ID] = pol
		out[i] = pol
	}
	for _, g := range groups {
		pol, ok := byID[g.PolicyID]
		if !ok {
			continue
		}
		pol.Groups = append(pol.Groups, domain.PolicyGroup{
			ID:                g.ID,
			Priority:          g.Priority,
			IncludedIDs:       g.IncludedIDs,
			ExcludedIDs:       g.ExcludedIDs,
			PackagesToInstall: g.PackagesToInstall,
			PackagesToRemove:  g.PackagesToRemove,
		})
	}
	return out, nil
}

type logicalDeviceRepo struct {
	db *bun.DB
}

func (r *logicalDeviceRepo) All(ctx context.Context) ([]*domain.LogicalDevice, error) {
	var rows []*LogicalDevice
	if err := r.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*domain.LogicalDevice, len(rows))
	for i, d := range rows {
		out[i] = d.ToModel()
	}
	return out, nil
}

type eventRepo struct {
	db *bun.DB
}

func (r *eventRepo) AddError(ctx context.Context, e *domain.ErrorEvent) error {
	row := &ErrorEvent{
		ComputerID:  e.ComputerID,
		ProjectID:   e.ProjectID,
		Description: e.Description,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *eventRepo) AddFault(ctx context.Context, f *domain.Fault) error {
	row := &Fault{
		ComputerID:        f.ComputerID,
		FaultDefinitionID: f.FaultDefinitionID,
		Result:            f.Result,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *eventRepo) AddMigration(ctx context.Context, m *domain.Migration) error {
	row := &Migration{ComputerID: m.ComputerID, ProjectID: m.ProjectID}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *eventRepo) AddStatusLog(ctx context.Context, s *domain.StatusLog) error {
	row := &StatusLog{ComputerID: s.ComputerID, Status: s.Status}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *eventRepo) AddSynchronization(ctx context.Context, s *domain.Synchronization) error {
	row := &Synchronization{
		ComputerID:  s.ComputerID,
		UserID:      s.UserID,
		ProjectID:   s.ProjectID,
		Consumer:    s.Consumer,
		PMSStatusOK: s.PMSStatusOK,
		Start:       s.Start,
		End:         s.End,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (r *eventRepo) MarkPackagesUninstalled(ctx context.Context, computerID int64) error {
	_, err := r.db.NewUpdate().Model((*PackageHistory)(nil)).
		Set("uninstall_date = ?", time.Now()).
		Where("computer_id = ?", computerID).
		Where("uninstall_date IS NULL").
		Exec(ctx)
	return err
}
