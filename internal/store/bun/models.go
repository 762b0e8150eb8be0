package bun

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/migasfree/migasfree-backend/internal/domain"
)

// Attribute ID lists and package lists are stored as JSON columns; the
// eligibility logic only ever needs them fully loaded, never queried
// element-wise.

type Platform struct {
	bun.BaseModel `bun:"table:platforms"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique,notnull"`
}

func (p *Platform) ToModel() *domain.Platform {
	return &domain.Platform{ID: p.ID, Name: p.Name}
}

type Project struct {
	bun.BaseModel `bun:"table:projects"`

	ID                    int64  `bun:"id,pk,autoincrement"`
	Name                  string `bun:"name,unique,notnull"`
	Slug                  string `bun:"slug,unique,notnull"`
	PlatformID            int64  `bun:"platform_id,notnull"`
	PMS                   string `bun:"pms,notnull"`
	AutoRegisterComputers bool   `bun:"auto_register_computers,notnull,default:false"`
}

func (p *Project) ToModel() *domain.Project {
	return &domain.Project{
		ID:                    p.ID,
		Name:                  p.Name,
		Slug:                  p.Slug,
		PlatformID:            p.PlatformID,
		PMS:                   p.PMS,
		AutoRegisterComputers: p.AutoRegisterComputers,
	}
}

func ProjectFromModel(m *domain.Project) *Project {
	return &Project{
		ID:                    m.ID,
		Name:                  m.Name,
		Slug:                  m.Slug,
		PlatformID:            m.PlatformID,
		PMS:                   m.PMS,
		AutoRegisterComputers: m.AutoRegisterComputers,
	}
}

type Computer struct {
	bun.BaseModel `bun:"table:computers"`

	ID        int64  `bun:"id,pk,autoincrement"`
	UUID      string `bun:"uuid,unique,notnull"`
	Name      string `bun:"name,notnull"`
	FQDN      string `bun:"fqdn"`
	ProjectID int64  `bun:"project_id,notnull"`
	Status    string `bun:"status,notnull,default:'intended'"`
	IP        string `bun:"ip_address"`
	ForwardIP string `bun:"forwarded_ip_address"`
	SyncUser  string `bun:"sync_user"`

	SyncAttributes []int64 `bun:"sync_attributes,type:json"`
	Tags           []int64 `bun:"tags,type:json"`

	LastHardwareCapture *time.Time `bun:"last_hardware_capture"`
	SyncStartDate       *time.Time `bun:"sync_start_date"`
	SyncEndDate         *time.Time `bun:"sync_end_date"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	Comment             string     `bun:"comment"`
}

func (c *Computer) ToModel() *domain.Computer {
	return &domain.Computer{
		ID:                  c.ID,
		UUID:                c.UUID,
		Name:                c.Name,
		FQDN:                c.FQDN,
		ProjectID:           c.ProjectID,
		Status:              c.Status,
		IP:                  c.IP,
		ForwardIP:           c.ForwardIP,
		SyncUser:            c.SyncUser,
		SyncAttributes:      c.SyncAttributes,
		TagIDs:              c.Tags,
		LastHardwareCapture: c.LastHardwareCapture,
		SyncStartDate:       c.SyncStartDate,
		SyncEndDate:         c.SyncEndDate,
		CreatedAt:           c.CreatedAt,
		Comment:             c.Comment,
	}
}

func ComputerFromModel(m *domain.Computer) *Computer {
	return &Computer{
		ID:                  m.ID,
		UUID:                m.UUID,
		Name:                m.Name,
		FQDN:                m.FQDN,
		ProjectID:           m.ProjectID,
		Status:              m.Status,
		IP:                  m.IP,
		ForwardIP:           m.ForwardIP,
		SyncUser:            m.SyncUser,
		SyncAttributes:      m.SyncAttributes,
		Tags:                m.TagIDs,
		LastHardwareCapture: m.LastHardwareCapture,
		SyncStartDate:       m.SyncStartDate,
		SyncEndDate:         m.SyncEndDate,
		CreatedAt:           m.CreatedAt,
		Comment:             m.Comment,
	}
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Name     string `bun:"name,unique,notnull"`
	FullName string `bun:"fullname"`
}

func (u *User) ToModel() *domain.User {
	return &domain.User{ID: u.ID, Name: u.Name, FullName: u.FullName}
}

type Property struct {
	bun.BaseModel `bun:"table:properties"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Prefix   string `bun:"prefix,unique,notnull"`
	Name     string `bun:"name,notnull"`
	Enabled  bool   `bun:"enabled,notnull,default:true"`
	Sort     string `bun:"sort,notnull,default:'client'"`
	Kind     string `bun:"kind,notnull,default:'N'"`
	Language string `bun:"language"`
	Code     string `bun:"code"`
}

func (p *Property) ToModel() *domain.Property {
	return &domain.Property{
		ID:       p.ID,
		Prefix:   p.Prefix,
		Name:     p.Name,
		Enabled:  p.Enabled,
		Sort:     p.Sort,
		Kind:     p.Kind,
		Language: p.Language,
		Code:     p.Code,
	}
}

type Attribute struct {
	bun.BaseModel `bun:"table:attributes"`

	ID          int64  `bun:"id,pk,autoincrement"`
	PropertyID  int64  `bun:"property_id,notnull"`
	Prefix      string `bun:"prefix,notnull"`
	Value       string `bun:"value,notnull"`
	Description string `bun:"description"`
}

func (a *Attribute) ToModel() *domain.Attribute {
	return &domain.Attribute{
		ID:          a.ID,
		PropertyID:  a.PropertyID,
		Prefix:      a.Prefix,
		Value:       a.Value,
		Description: a.Description,
	}
}

type AttributeSet struct {
	bun.BaseModel `bun:"table:attribute_sets"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Name        string  `bun:"name,unique,notnull"`
	Enabled     bool    `bun:"enabled,notnull,default:true"`
	IncludedIDs []int64 `bun:"included_attributes,type:json"`
	ExcludedIDs []int64 `bun:"excluded_attributes,type:json"`
}

func (s *AttributeSet) ToModel() *domain.AttributeSetDef {
	return &domain.AttributeSetDef{
		ID:                   s.ID,
		Name:                 s.Name,
		Enabled:              s.Enabled,
		IncludedAttributeIDs: s.IncludedIDs,
		ExcludedAttributeIDs: s.ExcludedIDs,
	}
}

type Domain struct {
	bun.BaseModel `bun:"table:domains"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Name        string  `bun:"name,unique,notnull"`
	IncludedIDs []int64 `bun:"included_attributes,type:json"`
	ExcludedIDs []int64 `bun:"excluded_attributes,type:json"`
}

func (d *Domain) ToModel() *domain.DeploymentDomain {
	return &domain.DeploymentDomain{
		ID:          d.ID,
		Name:        d.Name,
		IncludedIDs: d.IncludedIDs,
		ExcludedIDs: d.ExcludedIDs,
	}
}

type Schedule struct {
	bun.BaseModel `bun:"table:schedules"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique,notnull"`
}

type ScheduleDelay struct {
	bun.BaseModel `bun:"table:schedule_delays"`

	ID           int64   `bun:"id,pk,autoincrement"`
	ScheduleID   int64   `bun:"schedule_id,notnull"`
	Delay        int     `bun:"delay,notnull"`
	Duration     int     `bun:"duration,notnull,default:1"`
	AttributeIDs []int64 `bun:"attributes,type:json"`
}

type Deployment struct {
	bun.BaseModel `bun:"table:deployments"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Name       string    `bun:"name,notnull"`
	Slug       string    `bun:"slug,notnull"`
	ProjectID  int64     `bun:"project_id,notnull"`
	Enabled    bool      `bun:"enabled,notnull,default:false"`
	StartDate  time.Time `bun:"start_date,notnull"`
	DomainID   *int64    `bun:"domain_id"`
	ScheduleID *int64    `bun:"schedule_id"`

	IncludedIDs []int64 `bun:"included_attributes,type:json"`
	ExcludedIDs []int64 `bun:"excluded_attributes,type:json"`

	PackagesToInstall          []string `bun:"packages_to_install,type:json"`
	PackagesToRemove           []string `bun:"packages_to_remove,type:json"`
	DefaultPreincludedPackages []string `bun:"default_preincluded_packages,type:json"`
	DefaultIncludedPackages    []string `bun:"default_included_packages,type:json"`
	DefaultExcludedPackages    []string `bun:"default_excluded_packages,type:json"`
}

type FaultDefinition struct {
	bun.BaseModel `bun:"table:fault_definitions"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Name        string  `bun:"name,unique,notnull"`
	Enabled     bool    `bun:"enabled,notnull,default:true"`
	Language    string  `bun:"language"`
	Code        string  `bun:"code"`
	IncludedIDs []int64 `bun:"included_attributes,type:json"`
	ExcludedIDs []int64 `bun:"excluded_attributes,type:json"`
}

func (f *FaultDefinition) ToModel() *domain.FaultDefinition {
	return &domain.FaultDefinition{
		ID:                   f.ID,
		Name:                 f.Name,
		Enabled:              f.Enabled,
		Language:             f.Language,
		Code:                 f.Code,
		IncludedAttributeIDs: f.IncludedIDs,
		ExcludedAttributeIDs: f.ExcludedIDs,
	}
}

type Policy struct {
	bun.BaseModel `bun:"table:policies"`

	ID          int64   `bun:"id,pk,autoincrement"`
	Name        string  `bun:"name,unique,notnull"`
	Enabled     bool    `bun:"enabled,notnull,default:true"`
	Exclusive   bool    `bun:"exclusive,notnull,default:false"`
	IncludedIDs []int64 `bun:"included_attributes,type:json"`
	ExcludedIDs []int64 `bun:"excluded_attributes,type:json"`
}

type PolicyGroup struct {
	bun.BaseModel `bun:"table:policy_groups"`

	ID                int64    `bun:"id,pk,autoincrement"`
	PolicyID          int64    `bun:"policy_id,notnull"`
	Priority          int      `bun:"priority,notnull"`
	IncludedIDs       []int64  `bun:"included_attributes,type:json"`
	ExcludedIDs       []int64  `bun:"excluded_attributes,type:json"`
	PackagesToInstall []string `bun:"packages_to_install,type:json"`
	PackagesToRemove  []string `bun:"packages_to_remove,type:json"`
}

type LogicalDevice struct {
	bun.BaseModel `bun:"table:logical_devices"`

	ID           int64   `bun:"id,pk,autoincrement"`
	Name         string  `bun:"name,notnull"`
	DeviceID     int64   `bun:"device_id,notnull"`
	AttributeIDs []int64 `bun:"attributes,type:json"`
}

func (d *LogicalDevice) ToModel() *domain.LogicalDevice {
	return &domain.LogicalDevice{
		ID:           d.ID,
		Name:         d.Name,
		DeviceID:     d.DeviceID,
		AttributeIDs: d.AttributeIDs,
	}
}

type ErrorEvent struct {
	bun.BaseModel `bun:"table:errors"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ComputerID  int64     `bun:"computer_id,notnull"`
	ProjectID   int64     `bun:"project_id,notnull"`
	Description string    `bun:"description"`
	Checked     bool      `bun:"checked,notnull,default:false"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Fault struct {
	bun.BaseModel `bun:"table:faults"`

	ID                int64     `bun:"id,pk,autoincrement"`
	ComputerID        int64     `bun:"computer_id,notnull"`
	FaultDefinitionID int64     `bun:"fault_definition_id,notnull"`
	Result            string    `bun:"result"`
	Checked           bool      `bun:"checked,notnull,default:false"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Migration struct {
	bun.BaseModel `bun:"table:migrations"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ComputerID int64     `bun:"computer_id,notnull"`
	ProjectID  int64     `bun:"project_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type StatusLog struct {
	bun.BaseModel `bun:"table:status_logs"`

	ID         int64     `bun:"id,pk,autoincrement"`
	ComputerID int64     `bun:"computer_id,notnull"`
	Status     string    `bun:"status,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Synchronization struct {
	bun.BaseModel `bun:"table:synchronizations"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ComputerID  int64     `bun:"computer_id,notnull"`
	UserID      int64     `bun:"user_id"`
	ProjectID   int64     `bun:"project_id,notnull"`
	Consumer    string    `bun:"consumer"`
	PMSStatusOK bool      `bun:"pms_status_ok,notnull,default:false"`
	Start       time.Time `bun:"start"`
	End         time.Time `bun:"end,nullzero,notnull,default:current_timestamp"`
}

type PackageHistory struct {
	bun.BaseModel `bun:"table:package_history"`

	ID            int64      `bun:"id,pk,autoincrement"`
	ComputerID    int64      `bun:"computer_id,notnull"`
	Package       string     `bun:"package,notnull"`
	InstallDate   time.Time  `bun:"install_date,nullzero,notnull,default:current_timestamp"`
	UninstallDate *time.Time `bun:"uninstall_date"`
}
