package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/store"
	"github.com/migasfree/migasfree-backend/internal/taskqueue"
	"github.com/migasfree/migasfree-backend/internal/utils"
)

// registerComputer authenticates the operator, resolves or auto-registers
// the platform and project, reconciles the computer record and hands the
// agent its key material: the project private key it will sign with and
// the server public key it will verify replies against.
func (h *Handler) registerComputer(ctx context.Context, req Request, payload map[string]any) (map[string]any, error) {
	username, password := str(payload, "username"), str(payload, "password")
	ok, err := h.d.Verifier.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}
	if !ok {
		return domain.ErrorEnvelope(domain.CodeUnauthenticated, ""), nil
	}
	ok, err = h.d.Verifier.CanRegisterComputers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check register permission: %w", err)
	}
	if !ok {
		return domain.ErrorEnvelope(domain.CodeCanNotRegisterComputer, ""), nil
	}

	_, project, errEnv, err := h.resolveProject(ctx, str(payload, "platform"), str(payload, "project"), str(payload, "pms"))
	if err != nil || errEnv != nil {
		return errEnv, err
	}

	c, err := h.rec.Lookup(ctx, req.UUID, req.Name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup computer: %w", err)
	}
	c, effects, err := h.rec.Reconcile(ctx, c, req.Name, project, str(payload, "ip"), str(payload, "forwarded_ip"), req.UUID)
	if err != nil {
		return nil, err
	}
	if err := ApplyEffects(ctx, h.d.Repos, h.d.Notifier, effects); err != nil {
		return nil, err
	}
	h.d.Log.Info("computer registered",
		logger.String("name", c.Name),
		logger.String("uuid", c.UUID),
		logger.String("project", project.Name))

	if err := h.d.Keys.EnsurePair(project.Slug); err != nil {
		return nil, fmt.Errorf("ensure project keys: %w", err)
	}
	if err := h.d.Keys.EnsurePair(keystore.ServerKeyName); err != nil {
		return nil, fmt.Errorf("ensure server keys: %w", err)
	}
	projectPriv, err := h.d.Keys.PrivateKeyPEM(project.Slug)
	if err != nil {
		return nil, err
	}
	serverPub, err := h.d.Keys.PublicKeyPEM(keystore.ServerKeyName)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		project.Slug + ".pri":           projectPriv,
		keystore.ServerKeyName + ".pub": serverPub,
	}, nil
}

// getKeyPackager hands the packager keypair to an authorized operator.
func (h *Handler) getKeyPackager(ctx context.Context, payload map[string]any) (map[string]any, error) {
	username, password := str(payload, "username"), str(payload, "password")
	ok, err := h.d.Verifier.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}
	if !ok {
		return domain.ErrorEnvelope(domain.CodeUnauthenticated, ""), nil
	}
	ok, err = h.d.Verifier.CanPackage(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check packager permission: %w", err)
	}
	if !ok {
		return domain.ErrorEnvelope(domain.CodeUserHaveNotPermission, ""), nil
	}

	if err := h.d.Keys.EnsurePair(keystore.PackagerKeyName); err != nil {
		return nil, fmt.Errorf("ensure packager keys: %w", err)
	}
	if err := h.d.Keys.EnsurePair(keystore.ServerKeyName); err != nil {
		return nil, fmt.Errorf("ensure server keys: %w", err)
	}
	packagerPriv, err := h.d.Keys.PrivateKeyPEM(keystore.PackagerKeyName)
	if err != nil {
		return nil, err
	}
	serverPub, err := h.d.Keys.PublicKeyPEM(keystore.ServerKeyName)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		keystore.PackagerKeyName + ".pri": packagerPriv,
		keystore.ServerKeyName + ".pub":   serverPub,
	}, nil
}

// uploadServerPackage acknowledges a package (or package set) upload and
// defers metadata extraction to the task queue.
func (h *Handler) uploadServerPackage(ctx context.Context, payload map[string]any, set bool) (map[string]any, error) {
	project, err := h.d.Repos.Projects.ByName(ctx, str(payload, "project"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrorEnvelope(domain.CodeProjectNotFound, ""), nil
		}
		return nil, err
	}

	payload["set"] = set
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	task := taskqueue.Task{
		Kind:      taskqueue.TaskPackageMetadata,
		ProjectID: project.ID,
		Payload:   raw,
	}
	if err := h.d.Queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue package metadata: %w", err)
	}
	return domain.OkEnvelope(), nil
}

// createRepositories defers a repository-metadata build to the task queue.
func (h *Handler) createRepositories(ctx context.Context, payload map[string]any) (map[string]any, error) {
	project, err := h.d.Repos.Projects.ByName(ctx, str(payload, "project"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrorEnvelope(domain.CodeProjectNotFound, ""), nil
		}
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	task := taskqueue.Task{
		Kind:      taskqueue.TaskRepositoryBuild,
		ProjectID: project.ID,
		Payload:   raw,
	}
	if err := h.d.Queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue repository build: %w", err)
	}
	return domain.OkEnvelope(), nil
}

// getProperties returns the enabled client-sort formulas the agent must
// execute locally and report back through upload_computer_info.
func (h *Handler) getProperties(ctx context.Context) (map[string]any, error) {
	props, err := h.d.Repos.Properties.EnabledBySort(ctx, domain.SortClient)
	if err != nil {
		return nil, fmt.Errorf("list client properties: %w", err)
	}

	out := make([]map[string]any, 0, len(props))
	for _, p := range props {
		out = append(out, map[string]any{
			"prefix":   p.Prefix,
			"language": p.Language,
			"code":     p.Code,
		})
	}
	return map[string]any{"properties": out}, nil
}

// uploadComputerInfo is the richest handler: reconcile identity, rebuild
// the sync attribute set, then compute everything the agent needs for this
// sync cycle. Step order matters, each stage feeds the next.
func (h *Handler) uploadComputerInfo(ctx context.Context, req Request, c *domain.Computer, current *domain.Project, payload map[string]any) (map[string]any, error) {
	info := submap(payload, "computer")
	reported := strmap(payload, "attributes")

	platform, project, errEnv, err := h.resolveProject(ctx, str(info, "platform"), str(info, "project"), str(info, "pms"))
	if err != nil || errEnv != nil {
		return errEnv, err
	}

	name := str(info, "hostname")
	if name == "" {
		name = req.Name
	}
	c, effects, err := h.rec.Reconcile(ctx, c, name, project, str(info, "ip"), str(info, "forwarded_ip"), req.UUID)
	if err != nil {
		return nil, err
	}

	syncUser := str(info, "user")
	if syncUser != "" {
		if _, err := h.d.Repos.Users.GetOrCreate(ctx, syncUser, str(info, "user_fullname")); err != nil {
			return nil, fmt.Errorf("resolve sync user: %w", err)
		}
	}

	now := h.now()
	c.SyncUser = syncUser
	c.SyncStartDate = &now
	if fqdn := str(info, "fqdn"); fqdn != "" {
		c.FQDN = fqdn
	}
	if desc := str(info, "description"); desc != "" {
		c.Comment = desc
	}
	if err := h.d.Repos.Computers.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update computer: %w", err)
	}

	ids, err := h.builder.Rebuild(ctx, c, project, platform, syncUser, reported)
	if err != nil {
		return nil, fmt.Errorf("rebuild attributes: %w", err)
	}
	if err := h.d.Repos.Computers.ReplaceSyncAttributes(ctx, c.ID, ids); err != nil {
		return nil, fmt.Errorf("replace sync attributes: %w", err)
	}
	c.SyncAttributes = ids

	if err := ApplyEffects(ctx, h.d.Repos, h.d.Notifier, effects); err != nil {
		return nil, err
	}

	attrs := c.EffectiveAttributes()

	defs, err := h.d.Repos.FaultDefinitions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fault definitions: %w", err)
	}
	faultsdef := make([]map[string]any, 0)
	for _, def := range domain.EnabledFaultDefinitions(attrs, defs) {
		faultsdef = append(faultsdef, map[string]any{
			"name":     def.Name,
			"language": def.Language,
			"code":     def.Code,
		})
	}

	candidates, err := h.d.Repos.Deployments.ByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	repositories := make([]map[string]any, 0)
	var install, remove []string
	for _, dep := range domain.AvailableDeployments(c, attrs, candidates, now) {
		repositories = append(repositories, map[string]any{"name": dep.Slug})
		install = append(install, dep.PackagesToInstall...)
		remove = append(remove, dep.PackagesToRemove...)
		if rec, ok := h.d.Stats.(DeploymentRecorder); ok {
			if err := rec.SetDeploymentResult(ctx, dep.ID, c.ID, true); err != nil {
				h.d.Log.Warn("record deployment result failed", logger.Error(err))
			}
		}
	}

	policies, err := h.d.Repos.Policies.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	polInstall, polRemove := domain.PolicyPackages(attrs, policies)
	install = append(install, polInstall...)
	remove = append(remove, polRemove...)

	devices, err := h.d.Repos.Devices.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	logical := make([]map[string]any, 0)
	for _, dev := range domain.EligibleLogicalDevices(attrs, devices) {
		logical = append(logical, map[string]any{"id": dev.ID, "name": dev.Name})
	}

	return map[string]any{
		"faultsdef":    faultsdef,
		"repositories": repositories,
		"packages": map[string]any{
			"install": domain.Dedupe(install),
			"remove":  domain.Dedupe(remove),
		},
		"devices":          map[string]any{"logical": logical},
		"hardware_capture": c.HardwareCaptureDue(now, h.cfg.HardwarePeriod),
	}, nil
}

// uploadComputerMessage carries the agent's progress text. An empty
// message marks the end of the sync session and records the
// Synchronization event.
func (h *Handler) uploadComputerMessage(ctx context.Context, c *domain.Computer, payload map[string]any) (map[string]any, error) {
	message := str(payload, "message")
	if message != "" {
		h.d.Log.Debug("sync progress",
			logger.String("computer", c.Name),
			logger.String("message", message))
		return domain.OkEnvelope(), nil
	}

	now := h.now()
	c.SyncEndDate = &now
	if err := h.d.Repos.Computers.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update computer: %w", err)
	}

	var userID int64
	if c.SyncUser != "" {
		user, err := h.d.Repos.Users.GetOrCreate(ctx, c.SyncUser, "")
		if err != nil {
			return nil, fmt.Errorf("resolve sync user: %w", err)
		}
		userID = user.ID
	}

	start := now
	if c.SyncStartDate != nil {
		start = *c.SyncStartDate
	}
	pmsOK := true
	if v, present := payload["pms_status_ok"].(bool); present {
		pmsOK = v
	}
	err := h.d.Repos.Events.AddSynchronization(ctx, &domain.Synchronization{
		ComputerID:  c.ID,
		UserID:      userID,
		ProjectID:   c.ProjectID,
		Consumer:    c.SyncUser,
		PMSStatusOK: pmsOK,
		Start:       start,
		End:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("record synchronization: %w", err)
	}
	if h.d.Stats != nil {
		if err := h.d.Stats.RecordSync(ctx, c.ID, c.ProjectID, pmsOK); err != nil {
			h.d.Log.Warn("record sync counters", logger.Error(err))
		}
	}
	return domain.OkEnvelope(), nil
}

// uploadComputerHardware defers inventory parsing to the task queue and
// stamps the capture time; the next hardware_capture answer turns false
// until the configured period elapses again.
func (h *Handler) uploadComputerHardware(ctx context.Context, c *domain.Computer, payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode hardware payload: %w", err)
	}
	task := taskqueue.Task{
		Kind:       taskqueue.TaskHardwareInventory,
		ComputerID: c.ID,
		ProjectID:  c.ProjectID,
		Payload:    raw,
	}
	if err := h.d.Queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue hardware inventory: %w", err)
	}

	now := h.now()
	c.LastHardwareCapture = &now
	if err := h.d.Repos.Computers.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update computer: %w", err)
	}
	return domain.OkEnvelope(), nil
}

// uploadComputerFaults records the results of the fault checks the agent
// ran. Empty results mean the check passed and are not recorded.
func (h *Handler) uploadComputerFaults(ctx context.Context, c *domain.Computer, payload map[string]any) (map[string]any, error) {
	results := strmap(payload, "faults")
	if len(results) == 0 {
		return domain.OkEnvelope(), nil
	}

	defs, err := h.d.Repos.FaultDefinitions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fault definitions: %w", err)
	}
	byName := make(map[string]*domain.FaultDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	now := h.now()
	for name, result := range results {
		if result == "" {
			continue
		}
		def, ok := byName[name]
		if !ok {
			h.d.Log.Warn("fault for unknown definition",
				logger.String("definition", name),
				logger.String("computer", c.Name))
			continue
		}
		err := h.d.Repos.Events.AddFault(ctx, &domain.Fault{
			ComputerID:        c.ID,
			FaultDefinitionID: def.ID,
			Result:            result,
			CreatedAt:         now,
		})
		if err != nil {
			return nil, fmt.Errorf("record fault: %w", err)
		}
	}
	return domain.OkEnvelope(), nil
}

// uploadComputerErrors records an agent-reported error event.
func (h *Handler) uploadComputerErrors(ctx context.Context, c *domain.Computer, payload map[string]any) (map[string]any, error) {
	description := str(payload, "error")
	if description == "" {
		return domain.OkEnvelope(), nil
	}
	err := h.d.Repos.Events.AddError(ctx, &domain.ErrorEvent{
		ComputerID:  c.ID,
		ProjectID:   c.ProjectID,
		Description: description,
		CreatedAt:   h.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record error event: %w", err)
	}
	return domain.OkEnvelope(), nil
}

// setComputerTags resolves the requested tag strings, computes the package
// delta against the pre-commit tag set and only then persists the new
// tags. The all-systems attribute is implicitly part of both sides so it
// never shows up as a change.
func (h *Handler) setComputerTags(ctx context.Context, c *domain.Computer, payload map[string]any) (map[string]any, error) {
	tags := strslice(payload, "tags")

	resolved := make([]int64, 0, len(tags))
	for _, tag := range tags {
		prefix, value, err := domain.ParseTag(tag)
		if err != nil {
			return domain.ErrorEnvelope(domain.CodeGeneric, err.Error()), nil
		}
		attr, err := h.d.Repos.Attributes.ByPrefixAndValue(ctx, prefix, value)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrorEnvelope(domain.CodeGeneric, fmt.Sprintf("tag %s does not exist", tag)), nil
			}
			return nil, fmt.Errorf("resolve tag %s: %w", tag, err)
		}
		resolved = append(resolved, attr.ID)
	}

	oldSet := domain.NewAttrSet(c.TagIDs...)
	oldSet.Add(domain.AllSystemsAttributeID)
	newSet := domain.NewAttrSet(resolved...)
	newSet.Add(domain.AllSystemsAttributeID)

	candidates, err := h.d.Repos.Deployments.ByProject(ctx, c.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	delta := domain.DiffTags(c, oldSet, newSet, candidates, h.now())

	if err := h.d.Repos.Computers.SetTags(ctx, c.ID, resolved); err != nil {
		return nil, fmt.Errorf("set tags: %w", err)
	}
	c.TagIDs = resolved

	return map[string]any{
		"install":    delta.Install,
		"remove":     delta.Remove,
		"preinstall": delta.Preinstall,
	}, nil
}

// getComputerTags lists the computer's assigned tags and every assignable
// server-sort tag value.
func (h *Handler) getComputerTags(ctx context.Context, c *domain.Computer) (map[string]any, error) {
	selected := make([]string, 0, len(c.TagIDs))
	for _, id := range c.TagIDs {
		attr, err := h.d.Repos.Attributes.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("tag attribute %d: %w", id, err)
		}
		selected = append(selected, attr.String())
	}

	props, err := h.d.Repos.Properties.EnabledBySort(ctx, domain.SortServer)
	if err != nil {
		return nil, fmt.Errorf("list tag properties: %w", err)
	}
	available := make(map[string]any, len(props))
	for _, p := range props {
		attrs, err := h.d.Repos.Attributes.ByProperty(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list attributes of %s: %w", p.Prefix, err)
		}
		values := make([]string, 0, len(attrs))
		for _, a := range attrs {
			values = append(values, a.Value)
		}
		available[p.Prefix] = values
	}

	return map[string]any{"selected": selected, "available": available}, nil
}

// resolveProject loads the reported platform and project, auto-registering
// both when the configuration permits. Returns either the resolved pair,
// an error envelope for the client, or an internal error.
func (h *Handler) resolveProject(ctx context.Context, platformName, projectName, pms string) (*domain.Platform, *domain.Project, map[string]any, error) {
	if projectName == "" {
		return nil, nil, domain.ErrorEnvelope(domain.CodeProjectNotFound, ""), nil
	}

	platform, err := h.d.Repos.Platforms.ByName(ctx, platformName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("lookup platform %s: %w", platformName, err)
		}
		if !h.cfg.AutoRegister || platformName == "" {
			return nil, nil, domain.ErrorEnvelope(domain.CodeCanNotRegisterComputer, ""), nil
		}
		if h.cfg.PlatformAllowed != nil && !h.cfg.PlatformAllowed(platformName) {
			return nil, nil, domain.ErrorEnvelope(domain.CodeCanNotRegisterComputer, ""), nil
		}
		platform = &domain.Platform{Name: platformName}
		if err := h.d.Repos.Platforms.Create(ctx, platform); err != nil {
			return nil, nil, nil, fmt.Errorf("create platform %s: %w", platformName, err)
		}
		h.d.Log.Info("platform auto-registered", logger.String("platform", platformName))
	}

	project, err := h.d.Repos.Projects.ByName(ctx, projectName)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("lookup project %s: %w", projectName, err)
		}
		if !h.cfg.AutoRegister {
			return nil, nil, domain.ErrorEnvelope(domain.CodeCanNotRegisterComputer, ""), nil
		}
		project = &domain.Project{
			Name:                  projectName,
			Slug:                  utils.Slugify(projectName),
			PlatformID:            platform.ID,
			PMS:                   pms,
			AutoRegisterComputers: true,
		}
		if err := h.d.Repos.Projects.Create(ctx, project); err != nil {
			return nil, nil, nil, fmt.Errorf("create project %s: %w", projectName, err)
		}
		h.d.Log.Info("project auto-registered",
			logger.String("project", projectName),
			logger.String("platform", platformName))
	}

	return platform, project, nil, nil
}

// payload accessors: the envelope hands us map[string]any, these keep the
// handlers readable.

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func submap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

func strmap(m map[string]any, key string) map[string]string {
	sub := submap(m, key)
	if sub == nil {
		return nil
	}
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func strslice(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
