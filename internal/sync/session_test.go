package sync

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/envelope"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/notify"
	"github.com/migasfree/migasfree-backend/internal/store"
	"github.com/migasfree/migasfree-backend/internal/store/memory"
	"github.com/migasfree/migasfree-backend/internal/taskqueue"
)

type fakeVerifier struct {
	user, pass string
	register   bool
	packager   bool
}

func (f *fakeVerifier) Authenticate(_ context.Context, username, password string) (bool, error) {
	return username == f.user && password == f.pass, nil
}

func (f *fakeVerifier) CanRegisterComputers(_ context.Context, _ string) (bool, error) {
	return f.register, nil
}

func (f *fakeVerifier) CanPackage(_ context.Context, _ string) (bool, error) {
	return f.packager, nil
}

type fixture struct {
	mem      *memory.Store
	repos    *store.Repositories
	keys     *keystore.Store
	codec    *envelope.LegacyCodec
	queue    *taskqueue.MemoryQueue
	notifier *notify.Recorder
	handler  *Handler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	mem, repos := memory.New()
	log := logger.New("error", false)
	keys := keystore.New(t.TempDir(), log)
	require.NoError(t, keys.EnsurePair(keystore.ServerKeyName))
	codec := envelope.NewLegacyCodec(t.TempDir(), false)
	queue := &taskqueue.MemoryQueue{}
	notifier := &notify.Recorder{}

	h := NewHandler(Deps{
		Repos:    repos,
		Keys:     keys,
		Codec:    codec,
		Queue:    queue,
		Notifier: notifier,
		Verifier: &fakeVerifier{user: "admin", pass: "secret", register: true, packager: true},
		Log:      log,
	}, cfg)

	return &fixture{mem: mem, repos: repos, keys: keys, codec: codec, queue: queue, notifier: notifier, handler: h}
}

func (f *fixture) wrap(t *testing.T, keyName string, payload any) []byte {
	t.Helper()
	priv, err := f.keys.PrivateKey(keyName)
	require.NoError(t, err)
	raw, err := f.codec.WrapBytes(payload, priv)
	require.NoError(t, err)
	return raw
}

func (f *fixture) unwrapReply(t *testing.T, raw []byte, cmd string) map[string]any {
	t.Helper()
	pub, err := f.keys.PublicKey(keystore.ServerKeyName)
	require.NoError(t, err)
	reply, err := f.codec.UnwrapBytes(raw, pub)
	require.NoError(t, err)
	inner, ok := reply[cmd+".return"].(map[string]any)
	require.True(t, ok, "reply missing %s.return: %v", cmd, reply)
	return inner
}

// seedProject creates a platform, project and signing keys for the
// project-tier tests.
func (f *fixture) seedProject(t *testing.T) *domain.Project {
	t.Helper()
	platform := f.mem.AddPlatform(&domain.Platform{Name: "Linux"})
	project := f.mem.AddProject(&domain.Project{Name: "Ubuntu", Slug: "ubuntu", PlatformID: platform.ID, PMS: "apt"})
	require.NoError(t, f.keys.EnsurePair(project.Slug))
	return project
}

const testUUID = "12345678-1234-5678-1234-567812345678"

func TestRegisterComputerAutoRegisters(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: true})
	ctx := context.Background()

	body, err := json.Marshal(map[string]any{
		"username": "admin",
		"password": "secret",
		"platform": "Linux",
		"project":  "Ubuntu 24",
		"pms":      "apt",
		"ip":       "10.0.0.5",
	})
	require.NoError(t, err)

	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".register_computer", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "register_computer")

	require.False(t, domain.IsErrorEnvelope(inner), "unexpected error envelope: %v", inner)
	assert.Contains(t, inner, "ubuntu-24.pri")
	assert.Contains(t, inner, "migasfree-server.pub")

	project, err := f.repos.Projects.ByName(ctx, "Ubuntu 24")
	require.NoError(t, err)
	_, err = f.repos.Platforms.ByName(ctx, "Linux")
	require.NoError(t, err)

	c, err := f.repos.Computers.ByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "pc1", c.Name)
	assert.Equal(t, project.ID, c.ProjectID)
	require.Len(t, f.mem.Migrations(), 1)
}

func TestRegisterComputerBadCredentials(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: true})

	body, _ := json.Marshal(map[string]any{"username": "admin", "password": "wrong", "platform": "Linux", "project": "Ubuntu"})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".register_computer", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "register_computer")
	assert.Equal(t, domain.CodeUnauthenticated, domain.EnvelopeCode(inner))
}

func TestRegisterComputerWithoutAutoRegister(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: false})

	body, _ := json.Marshal(map[string]any{"username": "admin", "password": "secret", "platform": "Linux", "project": "Ubuntu"})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".register_computer", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "register_computer")
	assert.Equal(t, domain.CodeCanNotRegisterComputer, domain.EnvelopeCode(inner))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, Config{})

	raw, err := f.handler.Handle(context.Background(), "pc1.frobnicate", []byte("{}"))
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "frobnicate")
	assert.Equal(t, domain.CodeCommandNotFound, domain.EnvelopeCode(inner))
}

func TestUnknownComputer(t *testing.T) {
	f := newFixture(t, Config{})

	raw, err := f.handler.Handle(context.Background(), "ghost."+testUUID+".upload_computer_info", []byte("irrelevant"))
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_info")
	assert.Equal(t, domain.CodeComputerNotFound, domain.EnvelopeCode(inner))
}

func TestUnsubscribedComputerBlocked(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{
		UUID:      testUUID,
		Name:      "pc1",
		ProjectID: project.ID,
		Status:    domain.StatusUnsubscribed,
	})

	body := f.wrap(t, project.Slug, map[string]any{"computer": map[string]any{"hostname": "pc1"}})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_info", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_info")

	assert.Equal(t, domain.CodeUnsubscribedComputer, domain.EnvelopeCode(inner))
	require.Len(t, f.mem.Errors(), 1)

	// Rejection happens before any attribute work.
	c, err := f.repos.Computers.ByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.Empty(t, c.SyncAttributes)
}

func TestInvalidSignatureRecordsError(t *testing.T) {
	f := newFixture(t, Config{})
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	body := f.wrap(t, project.Slug, map[string]any{"message": "hello"})
	body[len(body)-5] ^= 0xFF

	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".upload_computer_message", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_message")
	assert.Equal(t, domain.CodeInvalidSignature, domain.EnvelopeCode(inner))
	require.Len(t, f.mem.Errors(), 1)
}

func TestUploadComputerInfo(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: true, HardwarePeriod: 30 * 24 * time.Hour})
	ctx := context.Background()
	project := f.seedProject(t)
	c := f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	f.mem.AddProperty(&domain.Property{Prefix: "NET", Name: "Network", Enabled: true, Sort: domain.SortClient, Kind: domain.KindNormal})
	f.mem.AddDeployment(&domain.Deployment{
		Name:                 "base packages",
		Slug:                 "base-packages",
		ProjectID:            project.ID,
		Enabled:              true,
		StartDate:            time.Now().AddDate(0, 0, -1),
		IncludedAttributeIDs: []int64{domain.AllSystemsAttributeID},
		PackagesToInstall:    []string{"pkgA"},
	})

	body := f.wrap(t, project.Slug, map[string]any{
		"computer": map[string]any{
			"hostname": "pc1",
			"fqdn":     "pc1.example.com",
			"ip":       "10.0.0.9",
			"platform": "Linux",
			"project":  "Ubuntu",
			"user":     "alice",
			"pms":      "apt",
		},
		"attributes": map[string]any{"NET": "wifi"},
	})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_info", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_info")
	require.False(t, domain.IsErrorEnvelope(inner), "unexpected error envelope: %v", inner)

	repos, ok := inner["repositories"].([]any)
	require.True(t, ok)
	require.Len(t, repos, 1)
	assert.Equal(t, "base-packages", repos[0].(map[string]any)["name"])

	packages := inner["packages"].(map[string]any)
	assert.Contains(t, packages["install"], "pkgA")
	assert.Equal(t, true, inner["hardware_capture"])

	got, err := f.repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.SyncAttributes)
	attrs := domain.NewAttrSet(got.SyncAttributes...)
	assert.True(t, attrs.Has(domain.AllSystemsAttributeID))

	cid, err := f.repos.Attributes.ByPrefixAndValue(ctx, domain.PrefixCID, strconv.FormatInt(c.ID, 10))
	require.NoError(t, err)
	assert.True(t, attrs.Has(cid.ID))

	net, err := f.repos.Attributes.ByPrefixAndValue(ctx, "NET", "wifi")
	require.NoError(t, err)
	assert.True(t, attrs.Has(net.ID))
	assert.Equal(t, "alice", got.SyncUser)
	assert.NotNil(t, got.SyncStartDate)
}

func TestUploadComputerInfoDescriptionAttribute(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: true})
	ctx := context.Background()
	project := f.seedProject(t)
	c := f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	body := f.wrap(t, project.Slug, map[string]any{
		"computer": map[string]any{
			"hostname":    "pc1",
			"ip":          "10.0.0.9",
			"platform":    "Linux",
			"project":     "Ubuntu",
			"user":        "alice",
			"pms":         "apt",
			"description": "lab workstation",
		},
	})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_info", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_info")
	require.False(t, domain.IsErrorEnvelope(inner), "unexpected error envelope: %v", inner)

	got, err := f.repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "lab workstation", got.Comment)

	desc, err := f.repos.Attributes.ByPrefixAndValue(ctx, domain.PrefixDescription, "lab workstation")
	require.NoError(t, err)
	attrs := domain.NewAttrSet(got.SyncAttributes...)
	assert.True(t, attrs.Has(desc.ID), "rebuilt set missing the description attribute")
}

func TestUploadComputerInfoNonProductiveNotifies(t *testing.T) {
	f := newFixture(t, Config{AutoRegister: true, NotifyUnexpected: true})
	ctx := context.Background()
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusInRepair})

	body := f.wrap(t, project.Slug, map[string]any{
		"computer": map[string]any{
			"hostname": "pc1",
			"ip":       "10.0.0.9",
			"platform": "Linux",
			"project":  "Ubuntu",
			"pms":      "apt",
		},
	})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_info", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_info")
	require.False(t, domain.IsErrorEnvelope(inner), "unexpected error envelope: %v", inner)

	require.Len(t, f.notifier.Messages, 1)
	assert.Contains(t, f.notifier.Messages[0], domain.StatusInRepair)
}

func TestUploadComputerMessageEndsSync(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	project := f.seedProject(t)
	start := time.Now().Add(-time.Minute)
	f.mem.AddComputer(&domain.Computer{
		UUID:          testUUID,
		Name:          "pc1",
		ProjectID:     project.ID,
		Status:        domain.StatusIntended,
		SyncUser:      "alice",
		SyncStartDate: &start,
	})

	body := f.wrap(t, project.Slug, map[string]any{"message": ""})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_message", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_message")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))

	require.Len(t, f.mem.Synchronizations(), 1)
	rec := f.mem.Synchronizations()[0]
	assert.Equal(t, project.ID, rec.ProjectID)
	assert.Equal(t, start.Unix(), rec.Start.Unix())

	c, err := f.repos.Computers.ByUUID(ctx, testUUID)
	require.NoError(t, err)
	assert.NotNil(t, c.SyncEndDate)
}

func TestUploadComputerHardwareEnqueues(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	project := f.seedProject(t)
	c := f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	body := f.wrap(t, project.Slug, map[string]any{"hardware": map[string]any{"cpu": "x86_64"}})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_hardware", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_hardware")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))

	require.Len(t, f.queue.Tasks, 1)
	assert.Equal(t, taskqueue.TaskHardwareInventory, f.queue.Tasks[0].Kind)
	assert.Equal(t, c.ID, f.queue.Tasks[0].ComputerID)

	got, err := f.repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastHardwareCapture)
}

func TestUploadComputerFaults(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})
	def := f.mem.AddFaultDefinition(&domain.FaultDefinition{Name: "low disk", Enabled: true, IncludedAttributeIDs: []int64{domain.AllSystemsAttributeID}})

	body := f.wrap(t, project.Slug, map[string]any{"faults": map[string]any{
		"low disk": "only 2% free on /",
		"passed":   "",
	}})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".upload_computer_faults", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_computer_faults")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))

	require.Len(t, f.mem.Faults(), 1)
	assert.Equal(t, def.ID, f.mem.Faults()[0].FaultDefinitionID)
}

func TestSetComputerTagsDelta(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	project := f.seedProject(t)

	prop := f.mem.AddProperty(&domain.Property{Prefix: "TAG", Name: "Tag", Enabled: true, Sort: domain.SortServer, Kind: domain.KindNormal})
	t1 := f.mem.AddAttribute(&domain.Attribute{PropertyID: prop.ID, Prefix: "TAG", Value: "one"})
	t2 := f.mem.AddAttribute(&domain.Attribute{PropertyID: prop.ID, Prefix: "TAG", Value: "two"})

	c := f.mem.AddComputer(&domain.Computer{
		UUID:      testUUID,
		Name:      "pc1",
		ProjectID: project.ID,
		Status:    domain.StatusIntended,
		TagIDs:    []int64{t1.ID},
	})

	yesterday := time.Now().AddDate(0, 0, -1)
	f.mem.AddDeployment(&domain.Deployment{
		Name: "d1", Slug: "d1", ProjectID: project.ID, Enabled: true, StartDate: yesterday,
		IncludedAttributeIDs: []int64{t1.ID},
		PackagesToInstall:    []string{"pkgA"},
	})
	f.mem.AddDeployment(&domain.Deployment{
		Name: "d2", Slug: "d2", ProjectID: project.ID, Enabled: true, StartDate: yesterday,
		IncludedAttributeIDs:    []int64{t2.ID},
		PackagesToInstall:       []string{"pkgB"},
		DefaultExcludedPackages: []string{"pkgA"},
	})

	body := f.wrap(t, project.Slug, map[string]any{"tags": []string{"TAG-two"}})
	raw, err := f.handler.Handle(ctx, "pc1."+testUUID+".set_computer_tags", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "set_computer_tags")
	require.False(t, domain.IsErrorEnvelope(inner), "unexpected error envelope: %v", inner)

	assert.Contains(t, inner["install"], "pkgB")
	assert.Contains(t, inner["remove"], "pkgA")
	assert.NotContains(t, inner["install"], "pkgA")

	got, err := f.repos.Computers.ByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{t2.ID}, got.TagIDs)
}

func TestSetComputerTagsUnresolvable(t *testing.T) {
	f := newFixture(t, Config{})
	project := f.seedProject(t)
	c := f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	body := f.wrap(t, project.Slug, map[string]any{"tags": []string{"TAG-missing"}})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".set_computer_tags", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "set_computer_tags")
	assert.Equal(t, domain.CodeGeneric, domain.EnvelopeCode(inner))

	got, err := f.repos.Computers.ByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs)
}

func TestGetComputerTags(t *testing.T) {
	f := newFixture(t, Config{})
	project := f.seedProject(t)

	prop := f.mem.AddProperty(&domain.Property{Prefix: "TAG", Name: "Tag", Enabled: true, Sort: domain.SortServer, Kind: domain.KindNormal})
	t1 := f.mem.AddAttribute(&domain.Attribute{PropertyID: prop.ID, Prefix: "TAG", Value: "one"})
	f.mem.AddAttribute(&domain.Attribute{PropertyID: prop.ID, Prefix: "TAG", Value: "two"})
	f.mem.AddComputer(&domain.Computer{
		UUID: testUUID, Name: "pc1", ProjectID: project.ID,
		Status: domain.StatusIntended, TagIDs: []int64{t1.ID},
	})

	body := f.wrap(t, project.Slug, map[string]any{})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".get_computer_tags", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "get_computer_tags")

	assert.Contains(t, inner["selected"], "TAG-one")
	available := inner["available"].(map[string]any)
	assert.ElementsMatch(t, []any{"one", "two"}, available["TAG"])
}

func TestGetProperties(t *testing.T) {
	f := newFixture(t, Config{})
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})
	f.mem.AddProperty(&domain.Property{Prefix: "NET", Name: "Network", Enabled: true, Sort: domain.SortClient, Kind: domain.KindNormal, Language: "python", Code: "print('wifi')"})

	body := f.wrap(t, project.Slug, map[string]any{})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".get_properties", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "get_properties")

	props, ok := inner["properties"].([]any)
	require.True(t, ok)
	require.Len(t, props, 1)
	assert.Equal(t, "NET", props[0].(map[string]any)["prefix"])
}

func TestPackagerUploadEnqueues(t *testing.T) {
	f := newFixture(t, Config{})
	f.seedProject(t)
	require.NoError(t, f.keys.EnsurePair(keystore.PackagerKeyName))

	body := f.wrap(t, keystore.PackagerKeyName, map[string]any{"project": "Ubuntu", "package": "zzz_1.0_amd64.deb"})
	raw, err := f.handler.Handle(context.Background(), "station.upload_server_package", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_server_package")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))

	require.Len(t, f.queue.Tasks, 1)
	assert.Equal(t, taskqueue.TaskPackageMetadata, f.queue.Tasks[0].Kind)

	body = f.wrap(t, keystore.PackagerKeyName, map[string]any{"project": "Ubuntu", "packageset": "base"})
	raw, err = f.handler.Handle(context.Background(), "station.create_repositories_of_packageset", body)
	require.NoError(t, err)
	inner = f.unwrapReply(t, raw, "create_repositories_of_packageset")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))
	require.Len(t, f.queue.Tasks, 2)
	assert.Equal(t, taskqueue.TaskRepositoryBuild, f.queue.Tasks[1].Kind)
}

func TestGetKeyPackager(t *testing.T) {
	f := newFixture(t, Config{})

	body, _ := json.Marshal(map[string]any{"username": "admin", "password": "secret"})
	raw, err := f.handler.Handle(context.Background(), "station.get_key_packager", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "get_key_packager")
	require.False(t, domain.IsErrorEnvelope(inner))
	assert.Contains(t, inner, keystore.PackagerKeyName+".pri")
	assert.Contains(t, inner, keystore.ServerKeyName+".pub")
}

func TestDeprecatedCommandAnswersOK(t *testing.T) {
	f := newFixture(t, Config{})
	project := f.seedProject(t)
	f.mem.AddComputer(&domain.Computer{UUID: testUUID, Name: "pc1", ProjectID: project.ID, Status: domain.StatusIntended})

	body := f.wrap(t, project.Slug, map[string]any{"anything": true})
	raw, err := f.handler.Handle(context.Background(), "pc1."+testUUID+".upload_devices_changes", body)
	require.NoError(t, err)
	inner := f.unwrapReply(t, raw, "upload_devices_changes")
	assert.Equal(t, domain.CodeAllOK, domain.EnvelopeCode(inner))
}
