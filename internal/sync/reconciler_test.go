package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/notify"
	"github.com/migasfree/migasfree-backend/internal/store"
	"github.com/migasfree/migasfree-backend/internal/store/memory"
)

func TestLookupResolutionChain(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{})

	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})
	mixed := "12345678-1234-5678-1234-567812345678"
	swapped := domain.ChangeUUIDFormat(mixed)
	byUUID := mem.AddComputer(&domain.Computer{UUID: mixed, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})
	byMAC := mem.AddComputer(&domain.Computer{UUID: "00000000-0000-0000-0000-D4BED9A3E5E5", Name: "pc2", ProjectID: project.ID, Status: domain.StatusIntended})
	byName := mem.AddComputer(&domain.Computer{UUID: "ffffffff-0000-0000-0000-000000000001", Name: "legacy", ProjectID: project.ID, Status: domain.StatusIntended})

	c, err := rec.Lookup(ctx, mixed, "other")
	require.NoError(t, err)
	assert.Equal(t, byUUID.ID, c.ID)

	// Agent reporting the endian-swapped form still resolves.
	c, err = rec.Lookup(ctx, swapped, "other")
	require.NoError(t, err)
	assert.Equal(t, byUUID.ID, c.ID)

	// All-zero-prefixed uuid resolves through the embedded MAC.
	c, err = rec.Lookup(ctx, "00000000-0000-0000-0000-d4bed9a3e5e5", "other")
	require.NoError(t, err)
	assert.Equal(t, byMAC.ID, c.ID)

	// Legacy fallback: name match when the uuid is unknown.
	c, err = rec.Lookup(ctx, "99999999-9999-9999-9999-999999999999", "legacy")
	require.NoError(t, err)
	assert.Equal(t, byName.ID, c.ID)

	_, err = rec.Lookup(ctx, "99999999-9999-9999-9999-999999999999", "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLookupAmbiguousNameNotResolved(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{})

	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})
	mem.AddComputer(&domain.Computer{UUID: "aaaaaaaa-0000-0000-0000-000000000001", Name: "dup", ProjectID: project.ID, Status: domain.StatusIntended})
	mem.AddComputer(&domain.Computer{UUID: "aaaaaaaa-0000-0000-0000-000000000002", Name: "dup", ProjectID: project.ID, Status: domain.StatusIntended})

	_, err := rec.Lookup(ctx, "99999999-9999-9999-9999-999999999999", "dup")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReconcileCreatesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{NewComputer: true, NameChange: true, IPChange: true, UUIDChange: true})
	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})

	uuid := "12345678-1234-5678-1234-567812345678"
	c, effects, err := rec.Reconcile(ctx, nil, "pc1", project, "10.0.0.5", "", uuid)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NotZero(t, c.ID)
	assert.Equal(t, domain.StatusIntended, c.Status)
	// Creation yields a migration plus the new-computer notification.
	require.Len(t, effects, 2)
	assert.IsType(t, domain.MigrationEffect{}, effects[0])
	assert.IsType(t, domain.NotifyEffect{}, effects[1])

	// Identical inputs: nothing to converge, nothing to report.
	same, effects, err := rec.Reconcile(ctx, c, "pc1", project, "10.0.0.5", "", uuid)
	require.NoError(t, err)
	assert.Equal(t, c.ID, same.ID)
	assert.Empty(t, effects)
}

func TestReconcileDetectsDrift(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{NameChange: true, IPChange: true, UUIDChange: true})
	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})
	other := mem.AddProject(&domain.Project{Name: "Debian", Slug: "debian"})

	c := mem.AddComputer(&domain.Computer{
		UUID:      "12345678-1234-5678-1234-567812345678",
		Name:      "pc1",
		ProjectID: project.ID,
		Status:    domain.StatusIntended,
		IP:        "10.0.0.5",
	})

	// IP drift: one notification, value persisted.
	c, effects, err := rec.Reconcile(ctx, c, "pc1", project, "10.0.0.9", "", c.UUID)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.IsType(t, domain.NotifyEffect{}, effects[0])
	got, err := repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.IP)

	// Project switch: inventory invalidation plus migration.
	_, effects, err = rec.Reconcile(ctx, c, "pc1", other, "10.0.0.9", "", c.UUID)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.IsType(t, domain.UninstallHistoryEffect{}, effects[0])
	assert.IsType(t, domain.MigrationEffect{}, effects[1])
	got, err = repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ProjectID)
}

func TestReconcileEndianSwappedUUIDIsNotDrift(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{UUIDChange: true})
	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})

	mixed := "12345678-1234-5678-1234-567812345678"
	c := mem.AddComputer(&domain.Computer{UUID: mixed, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	_, effects, err := rec.Reconcile(ctx, c, "pc1", project, "", "", domain.ChangeUUIDFormat(mixed))
	require.NoError(t, err)
	assert.Empty(t, effects)
}

func TestSetStatusRevokesTargeting(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{})
	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})
	tag := mem.AddAttribute(&domain.Attribute{Prefix: "TAG", Value: "one"})
	c := mem.AddComputer(&domain.Computer{
		UUID:      "12345678-1234-5678-1234-567812345678",
		Name:      "pc1",
		ProjectID: project.ID,
		Status:    domain.StatusIntended,
		TagIDs:    []int64{tag.ID},
	})

	effects, err := rec.SetStatus(ctx, c, domain.StatusAvailable)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.IsType(t, domain.StatusLogEffect{}, effects[0])
	assert.IsType(t, domain.RevokeTargetingEffect{}, effects[1])

	require.NoError(t, ApplyEffects(ctx, repos, &notify.Recorder{}, effects))
	got, err := repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs)
	require.Len(t, mem.StatusLogs(), 1)
	assert.Equal(t, domain.StatusAvailable, mem.StatusLogs()[0].Status)

	// Same status again is a no-op.
	effects, err = rec.SetStatus(ctx, got, domain.StatusAvailable)
	require.NoError(t, err)
	assert.Empty(t, effects)
}

func TestSetStatusHonorsTransitionPolicy(t *testing.T) {
	ctx := context.Background()
	mem, repos := memory.New()
	rec := NewReconciler(repos, NotifyConfig{})
	rec.TransitionAllowed = func(from, to string) bool { return from == domain.StatusIntended }
	project := mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu"})
	c := mem.AddComputer(&domain.Computer{UUID: "aaaaaaaa-0000-0000-0000-000000000001", Name: "pc1", ProjectID: project.ID, Status: domain.StatusAvailable})

	_, err := rec.SetStatus(ctx, c, domain.StatusIntended)
	assert.Error(t, err)

	_, err = rec.SetStatus(ctx, c, "bogus")
	assert.Error(t, err)
}
