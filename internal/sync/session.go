package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/envelope"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/notify"
	"github.com/migasfree/migasfree-backend/internal/store"
	"github.com/migasfree/migasfree-backend/internal/taskqueue"
)

// CredentialVerifier is the external authentication collaborator for the
// registration and packager tiers. The project tier authenticates through
// envelope signatures instead.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
	CanRegisterComputers(ctx context.Context, username string) (bool, error)
	CanPackage(ctx context.Context, username string) (bool, error)
}

// Stats receives per-sync counters (redis-backed in production, nil in
// tests that don't care).
type Stats interface {
	RecordSync(ctx context.Context, computerID, projectID int64, ok bool) error
}

// DeploymentRecorder is an optional Stats extension that maintains the
// per-deployment delivered/error computer sets.
type DeploymentRecorder interface {
	SetDeploymentResult(ctx context.Context, deploymentID, computerID int64, ok bool) error
}

// Config carries the sync-protocol knobs.
type Config struct {
	AutoRegister   bool
	DefaultStatus  string
	HardwarePeriod time.Duration
	Notify         NotifyConfig

	// PlatformAllowed restricts auto-registration to whitelisted
	// platforms. Nil allows all.
	PlatformAllowed func(name string) bool

	// NotifyUnexpected posts a notification when a computer marked
	// available synchronizes anyway. Observational only, the sync
	// proceeds.
	NotifyUnexpected bool
}

// Deps bundles the handler's collaborators.
type Deps struct {
	Repos    *store.Repositories
	Keys     *keystore.Store
	Codec    *envelope.LegacyCodec
	Queue    taskqueue.Queue
	Notifier notify.Notifier
	Verifier CredentialVerifier
	Stats    Stats
	Log      logger.Logger
}

// Handler processes one protocol request per call. There is no session
// state: each request is parsed, authenticated per its command tier,
// dispatched and answered within a single exchange.
type Handler struct {
	d       Deps
	cfg     Config
	rec     *Reconciler
	builder *AttributeBuilder
	now     func() time.Time
}

func NewHandler(d Deps, cfg Config) *Handler {
	rec := NewReconciler(d.Repos, cfg.Notify)
	if cfg.DefaultStatus != "" {
		rec.DefaultStatus = cfg.DefaultStatus
	}
	return &Handler{
		d:       d,
		cfg:     cfg,
		rec:     rec,
		builder: NewAttributeBuilder(d.Repos),
		now:     time.Now,
	}
}

// Reconciler exposes the identity reconciler for collaborators that manage
// computer status outside the sync protocol (the safe API).
func (h *Handler) Reconciler() *Reconciler { return h.rec }

// Handle processes one request identified by requestName
// ("{name}[.{uuid}].{command}") with the raw envelope body. The reply is
// always a well-formed wrapped envelope, error or not; a non-nil error
// means the server could not even produce one (missing server key).
func (h *Handler) Handle(ctx context.Context, requestName string, body []byte) ([]byte, error) {
	req := ParseRequestName(requestName)

	if req.Command == CmdUnknown {
		return h.reply(req.RawCmd, domain.ErrorEnvelope(domain.CodeCommandNotFound, ""))
	}

	var (
		res map[string]any
		err error
	)
	switch req.Command.Tier() {
	case TierRegistration:
		res, err = h.handleRegistration(ctx, req, body)
	case TierPackager:
		res, err = h.handlePackager(ctx, req, body)
	case TierProject:
		res, err = h.handleProject(ctx, req, body)
	default:
		res = domain.ErrorEnvelope(domain.CodeCommandNotFound, "")
	}
	if err != nil {
		h.d.Log.Error("command failed",
			logger.String("command", req.RawCmd),
			logger.String("computer", req.Name),
			logger.Error(err))
		res = domain.ErrorEnvelope(domain.CodeGeneric, "")
	}

	return h.reply(req.RawCmd, res)
}

// reply wraps the payload under the protocol's "{command}.return" key and
// signs it with the server key.
func (h *Handler) reply(cmd string, payload map[string]any) ([]byte, error) {
	priv, err := h.d.Keys.PrivateKey(keystore.ServerKeyName)
	if err != nil {
		return nil, fmt.Errorf("load server key: %w", err)
	}
	return h.d.Codec.WrapBytes(map[string]any{cmd + ".return": payload}, priv)
}

// handleRegistration processes the username+password tier. The body is
// plain JSON: the agent holds no keys yet.
func (h *Handler) handleRegistration(ctx context.Context, req Request, body []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ErrorEnvelope(domain.CodeGeneric, "malformed request body"), nil
	}

	switch req.Command {
	case CmdRegisterComputer:
		return h.registerComputer(ctx, req, payload)
	case CmdGetKeyPackager:
		return h.getKeyPackager(ctx, payload)
	}
	return domain.ErrorEnvelope(domain.CodeCommandNotFound, ""), nil
}

// handlePackager verifies the packager-signed envelope and dispatches.
func (h *Handler) handlePackager(ctx context.Context, req Request, body []byte) (map[string]any, error) {
	pub, err := h.d.Keys.PublicKey(keystore.PackagerKeyName)
	if err != nil {
		return nil, fmt.Errorf("load packager key: %w", err)
	}
	payload, err := h.d.Codec.UnwrapBytes(body, pub)
	if err != nil {
		if errors.Is(err, envelope.ErrInvalidSignature) {
			return domain.ErrorEnvelope(domain.CodeInvalidSignature, ""), nil
		}
		return domain.ErrorEnvelope(domain.CodeGeneric, "malformed envelope"), nil
	}

	switch req.Command {
	case CmdUploadServerPackage:
		return h.uploadServerPackage(ctx, payload, false)
	case CmdUploadServerSet:
		return h.uploadServerPackage(ctx, payload, true)
	case CmdCreateRepositoriesOfPackageset:
		return h.createRepositories(ctx, payload)
	}
	return domain.ErrorEnvelope(domain.CodeCommandNotFound, ""), nil
}

// resolveProjectComputer runs the identity and terminal-state gates shared
// by both transports. A non-nil payload means the request was refused.
func (h *Handler) resolveProjectComputer(ctx context.Context, req Request) (*domain.Computer, *domain.Project, map[string]any, error) {
	c, err := h.rec.Lookup(ctx, req.UUID, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domain.ErrorEnvelope(domain.CodeComputerNotFound, ""), nil
		}
		return nil, nil, nil, fmt.Errorf("lookup computer: %w", err)
	}

	if c.Status == domain.StatusUnsubscribed {
		eff := []domain.Effect{domain.ErrorEventEffect{
			ComputerID:  c.ID,
			ProjectID:   c.ProjectID,
			Description: fmt.Sprintf("unsubscribed computer attempted %s", req.RawCmd),
		}}
		if err := ApplyEffects(ctx, h.d.Repos, h.d.Notifier, eff); err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, domain.ErrorEnvelope(domain.CodeUnsubscribedComputer, ""), nil
	}

	if !domain.InProductiveStatus(c.Status) && req.Command == CmdUploadComputerInfo && h.cfg.NotifyUnexpected {
		msg := fmt.Sprintf("computer %s (id %d) synchronized while marked %s", c.Name, c.ID, c.Status)
		if err := h.d.Notifier.Notify(ctx, msg); err != nil {
			h.d.Log.Warn("notify failed", logger.Error(err))
		}
	}

	project, err := h.d.Repos.Projects.ByID(ctx, c.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domain.ErrorEnvelope(domain.CodeProjectNotFound, ""), nil
		}
		return nil, nil, nil, fmt.Errorf("load project %d: %w", c.ProjectID, err)
	}
	return c, project, nil, nil
}

// handleProject resolves the computer, enforces the terminal-state and
// signature preconditions, then dispatches. Steps are strictly sequential:
// identity, status gate, envelope, command.
func (h *Handler) handleProject(ctx context.Context, req Request, body []byte) (map[string]any, error) {
	c, project, refused, err := h.resolveProjectComputer(ctx, req)
	if err != nil {
		return nil, err
	}
	if refused != nil {
		return refused, nil
	}

	pub, err := h.d.Keys.PublicKey(project.Slug)
	if err != nil {
		return nil, fmt.Errorf("load project key %s: %w", project.Slug, err)
	}
	payload, err := h.d.Codec.UnwrapBytes(body, pub)
	if err != nil {
		if errors.Is(err, envelope.ErrInvalidSignature) {
			eff := []domain.Effect{domain.ErrorEventEffect{
				ComputerID:  c.ID,
				ProjectID:   c.ProjectID,
				Description: fmt.Sprintf("invalid signature on %s", req.RawCmd),
			}}
			if aerr := ApplyEffects(ctx, h.d.Repos, h.d.Notifier, eff); aerr != nil {
				return nil, aerr
			}
			return domain.ErrorEnvelope(domain.CodeInvalidSignature, ""), nil
		}
		return domain.ErrorEnvelope(domain.CodeGeneric, "malformed envelope"), nil
	}

	return h.dispatchProject(ctx, req, c, project, payload)
}

// SafeRequest is one token-transport request after the HTTP layer has
// unwrapped the JOSE envelope. The envelope already authenticated the
// project key, so only the identity and state gates remain.
type SafeRequest struct {
	Command string
	Name    string
	UUID    string
	Data    map[string]any
}

// HandleSafe dispatches a token-transport request. Only project-tier
// commands are reachable over this transport.
func (h *Handler) HandleSafe(ctx context.Context, sr SafeRequest) (map[string]any, error) {
	cmd := ParseCommand(sr.Command)
	if cmd == CmdUnknown || cmd.Tier() != TierProject {
		return domain.ErrorEnvelope(domain.CodeCommandNotFound, ""), nil
	}
	req := Request{Name: sr.Name, UUID: sr.UUID, Command: cmd, RawCmd: sr.Command}

	c, project, refused, err := h.resolveProjectComputer(ctx, req)
	if err != nil {
		h.d.Log.Error("safe command failed",
			logger.String("command", sr.Command),
			logger.String("computer", sr.Name),
			logger.Error(err))
		return domain.ErrorEnvelope(domain.CodeGeneric, ""), nil
	}
	if refused != nil {
		return refused, nil
	}

	res, err := h.dispatchProject(ctx, req, c, project, sr.Data)
	if err != nil {
		h.d.Log.Error("safe command failed",
			logger.String("command", sr.Command),
			logger.String("computer", sr.Name),
			logger.Error(err))
		return domain.ErrorEnvelope(domain.CodeGeneric, ""), nil
	}
	return res, nil
}

func (h *Handler) dispatchProject(ctx context.Context, req Request, c *domain.Computer, project *domain.Project, payload map[string]any) (map[string]any, error) {
	switch req.Command {
	case CmdGetProperties:
		return h.getProperties(ctx)
	case CmdUploadComputerInfo:
		return h.uploadComputerInfo(ctx, req, c, project, payload)
	case CmdUploadComputerMessage:
		return h.uploadComputerMessage(ctx, c, payload)
	case CmdUploadComputerHardware:
		return h.uploadComputerHardware(ctx, c, payload)
	case CmdUploadComputerFaults:
		return h.uploadComputerFaults(ctx, c, payload)
	case CmdUploadComputerErrors:
		return h.uploadComputerErrors(ctx, c, payload)
	case CmdSetComputerTags:
		return h.setComputerTags(ctx, c, payload)
	case CmdGetComputerTags:
		return h.getComputerTags(ctx, c)
	case CmdUploadDevicesChanges:
		// Deprecated, acknowledged for protocol compatibility.
		return domain.OkEnvelope(), nil
	}
	return domain.ErrorEnvelope(domain.CodeCommandNotFound, ""), nil
}
