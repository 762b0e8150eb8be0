// Package store defines the repository interfaces the sync core operates
// over. Implementations live in the bun (sqlite) and memory subpackages;
// the core never touches a persistence technology directly.
package store

import (
	"context"
	"errors"

	"github.com/migasfree/migasfree-backend/internal/domain"
)

// ErrNotFound is returned by lookups that matched nothing.
var ErrNotFound = errors.New("store: not found")

// PlatformRepository manages OS platforms.
type PlatformRepository interface {
	ByName(ctx context.Context, name string) (*domain.Platform, error)
	Create(ctx context.Context, p *domain.Platform) error
}

// ProjectRepository manages projects (OS+architecture release lines).
type ProjectRepository interface {
	ByID(ctx context.Context, id int64) (*domain.Project, error)
	ByName(ctx context.Context, name string) (*domain.Project, error)
	Create(ctx context.Context, p *domain.Project) error
}

// ComputerRepository manages computer records and their attribute/tag sets.
type ComputerRepository interface {
	ByID(ctx context.Context, id int64) (*domain.Computer, error)
	ByUUID(ctx context.Context, uuid string) (*domain.Computer, error)
	// ByMAC returns every computer whose uuid embeds the given MAC; the
	// identity fallback only applies when exactly one matches.
	ByMAC(ctx context.Context, mac string) ([]*domain.Computer, error)
	ByName(ctx context.Context, name string) ([]*domain.Computer, error)
	Create(ctx context.Context, c *domain.Computer) error
	Update(ctx context.Context, c *domain.Computer) error

	// ReplaceSyncAttributes swaps the computer's sync_attributes set in one
	// atomic unit of work: concurrent readers see either the full old or
	// the full new set.
	ReplaceSyncAttributes(ctx context.Context, computerID int64, attributeIDs []int64) error
	SetTags(ctx context.Context, computerID int64, attributeIDs []int64) error

	// ClearTargeting removes the computer's tags and every CID-scoped
	// membership in deployments, fault definitions, attribute sets and
	// schedule delays.
	ClearTargeting(ctx context.Context, computerID int64) error
}

// UserRepository manages sync accounts reported by agents.
type UserRepository interface {
	GetOrCreate(ctx context.Context, name, fullName string) (*domain.User, error)
}

// PropertyRepository manages formula definitions.
type PropertyRepository interface {
	EnabledBySort(ctx context.Context, sort string) ([]*domain.Property, error)
	ByPrefix(ctx context.Context, prefix string) (*domain.Property, error)
	// GetOrCreate backs the server-derived prefixes (CID, IP, DMN, ...)
	// that must exist before their attributes can.
	GetOrCreate(ctx context.Context, prefix, name, sort string) (*domain.Property, error)
}

// AttributeRepository manages immutable (prefix, value) facts.
type AttributeRepository interface {
	ByID(ctx context.Context, id int64) (*domain.Attribute, error)
	ByPrefixAndValue(ctx context.Context, prefix, value string) (*domain.Attribute, error)
	ByProperty(ctx context.Context, propertyID int64) ([]*domain.Attribute, error)
	// GetOrCreate returns the existing attribute for (prefix, value) or
	// creates it; uniqueness of the pair is an invariant.
	GetOrCreate(ctx context.Context, propertyID int64, prefix, value, description string) (*domain.Attribute, error)
}

// AttributeSetRepository lists server-defined attribute sets.
type AttributeSetRepository interface {
	All(ctx context.Context) ([]*domain.AttributeSetDef, error)
}

// DomainRepository lists deployment domains.
type DomainRepository interface {
	All(ctx context.Context) ([]*domain.DeploymentDomain, error)
}

// DeploymentRepository loads deployments with their domain and schedule
// resolved, ready for eligibility evaluation.
type DeploymentRepository interface {
	ByProject(ctx context.Context, projectID int64) ([]*domain.Deployment, error)
}

// FaultDefinitionRepository lists fault checks.
type FaultDefinitionRepository interface {
	All(ctx context.Context) ([]*domain.FaultDefinition, error)
}

// PolicyRepository lists package policies with their groups.
type PolicyRepository interface {
	All(ctx context.Context) ([]*domain.Policy, error)
}

// LogicalDeviceRepository lists attribute-targeted logical devices.
type LogicalDeviceRepository interface {
	All(ctx context.Context) ([]*domain.LogicalDevice, error)
}

// EventRepository appends immutable event records.
type EventRepository interface {
	AddError(ctx context.Context, e *domain.ErrorEvent) error
	AddFault(ctx context.Context, f *domain.Fault) error
	AddMigration(ctx context.Context, m *domain.Migration) error
	AddStatusLog(ctx context.Context, s *domain.StatusLog) error
	AddSynchronization(ctx context.Context, s *domain.Synchronization) error

	// MarkPackagesUninstalled closes every open package-history row of the
	// computer (project switch invalidates the previous inventory).
	MarkPackagesUninstalled(ctx context.Context, computerID int64) error
}

// Repositories bundles every repository behind one injection point.
type Repositories struct {
	Platforms        PlatformRepository
	Projects         ProjectRepository
	Computers        ComputerRepository
	Users            UserRepository
	Properties       PropertyRepository
	Attributes       AttributeRepository
	AttributeSets    AttributeSetRepository
	Domains          DomainRepository
	Deployments      DeploymentRepository
	FaultDefinitions FaultDefinitionRepository
	Policies         PolicyRepository
	Devices          LogicalDeviceRepository
	Events           EventRepository
}
