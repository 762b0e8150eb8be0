package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/store"
)

// NotifyConfig gates which identity changes produce an operator
// notification. Drift is always persisted; only the messaging is optional.
type NotifyConfig struct {
	NewComputer bool
	NameChange  bool
	IPChange    bool
	UUIDChange  bool
}

// Reconciler resolves computer identity from the unreliable triple the
// agent reports (uuid, name, ip) and converges the stored record onto it.
// Side effects are returned as domain.Effect values; the caller applies
// them after the unit of work commits.
type Reconciler struct {
	repos *store.Repositories
	cfg   NotifyConfig

	// DefaultStatus is assigned to newly created computers.
	DefaultStatus string

	// TransitionAllowed, when set, vetoes status transitions. Nil allows
	// every transition between valid statuses.
	TransitionAllowed func(from, to string) bool

	now func() time.Time
}

func NewReconciler(repos *store.Repositories, cfg NotifyConfig) *Reconciler {
	return &Reconciler{
		repos:         repos,
		cfg:           cfg,
		DefaultStatus: domain.StatusIntended,
		now:           time.Now,
	}
}

// Lookup resolves a computer from the reported uuid and name:
// uuid exact, uuid endian-swapped, mac embedded in an all-zero-prefixed
// uuid (only when exactly one computer matches), then legacy name match
// (again only when unambiguous). Returns store.ErrNotFound when nothing
// matches.
func (r *Reconciler) Lookup(ctx context.Context, uuid, name string) (*domain.Computer, error) {
	if uuid != "" {
		c, err := r.repos.Computers.ByUUID(ctx, uuid)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		if swapped := domain.ChangeUUIDFormat(uuid); swapped != uuid {
			c, err = r.repos.Computers.ByUUID(ctx, swapped)
			if err == nil {
				return c, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}

		if mac, ok := domain.MACFromUUID(uuid); ok {
			matches, err := r.repos.Computers.ByMAC(ctx, mac)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			if len(matches) == 1 {
				return matches[0], nil
			}
		}
	}

	if name == "" {
		return nil, store.ErrNotFound
	}
	matches, err := r.repos.Computers.ByName(ctx, name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return nil, store.ErrNotFound
}

// Reconcile converges the stored computer record onto the reported
// identity. A nil computer is created. The operation is idempotent:
// a second call with identical inputs persists nothing and returns no
// effects.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	c *domain.Computer,
	name string,
	project *domain.Project,
	ip, fwdIP, uuid string,
) (*domain.Computer, []domain.Effect, error) {
	var effects []domain.Effect

	if c == nil {
		now := r.now()
		c = &domain.Computer{
			UUID:      uuid,
			Name:      name,
			ProjectID: project.ID,
			Status:    r.DefaultStatus,
			IP:        ip,
			ForwardIP: fwdIP,
			CreatedAt: now,
		}
		if err := r.repos.Computers.Create(ctx, c); err != nil {
			return nil, nil, fmt.Errorf("create computer: %w", err)
		}
		effects = append(effects, domain.MigrationEffect{ComputerID: c.ID, ProjectID: project.ID})
		if r.cfg.NewComputer {
			effects = append(effects, domain.NotifyEffect{
				Message: fmt.Sprintf("new computer %s (uuid %s) registered in project %s", name, uuid, project.Name),
			})
		}
		return c, effects, nil
	}

	changed := false

	if c.ProjectID != project.ID {
		effects = append(effects,
			domain.UninstallHistoryEffect{ComputerID: c.ID},
			domain.MigrationEffect{ComputerID: c.ID, ProjectID: project.ID},
		)
		c.ProjectID = project.ID
		changed = true
	}

	if name != "" && c.Name != name {
		if r.cfg.NameChange {
			effects = append(effects, domain.NotifyEffect{
				Message: fmt.Sprintf("computer %d changed name: %s -> %s", c.ID, c.Name, name),
			})
		}
		c.Name = name
		changed = true
	}

	if ip != "" && c.IP != ip {
		if r.cfg.IPChange {
			effects = append(effects, domain.NotifyEffect{
				Message: fmt.Sprintf("computer %s changed ip: %s -> %s", c.Name, c.IP, ip),
			})
		}
		c.IP = ip
		changed = true
	}
	if fwdIP != "" && c.ForwardIP != fwdIP {
		c.ForwardIP = fwdIP
		changed = true
	}

	if uuid != "" && c.UUID != uuid && domain.ChangeUUIDFormat(c.UUID) != uuid {
		if r.cfg.UUIDChange {
			effects = append(effects, domain.NotifyEffect{
				Message: fmt.Sprintf("computer %s changed uuid: %s -> %s", c.Name, c.UUID, uuid),
			})
		}
		c.UUID = uuid
		changed = true
	}

	if changed {
		if err := r.repos.Computers.Update(ctx, c); err != nil {
			return nil, nil, fmt.Errorf("update computer: %w", err)
		}
	}
	return c, effects, nil
}

// SetStatus moves a computer to a new status. Transitions into statuses
// that revoke targeting additionally clear the computer's tags and every
// CID-scoped membership. Setting the current status is a no-op.
func (r *Reconciler) SetStatus(ctx context.Context, c *domain.Computer, status string) ([]domain.Effect, error) {
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("unknown computer status %q", status)
	}
	if c.Status == status {
		return nil, nil
	}
	if r.TransitionAllowed != nil && !r.TransitionAllowed(c.Status, status) {
		return nil, fmt.Errorf("status transition %s -> %s not allowed", c.Status, status)
	}

	c.Status = status
	if err := r.repos.Computers.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update computer status: %w", err)
	}

	effects := []domain.Effect{domain.StatusLogEffect{ComputerID: c.ID, Status: status}}
	if domain.RevokesTargeting(status) {
		effects = append(effects, domain.RevokeTargetingEffect{ComputerID: c.ID})
	}
	return effects, nil
}
