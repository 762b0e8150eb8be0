package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/migasfree/migasfree-backend/internal/admission"
	"github.com/migasfree/migasfree-backend/internal/keystore"
	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/store"
	msync "github.com/migasfree/migasfree-backend/internal/sync"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy

	RedisClient *redis.Client            // Redis client connection
	DB          admission.Pinger         // database liveness probe for readyz/infra
	Repos       *store.Repositories      // persistence layer
	Keys        *keystore.Store          // named RSA keypairs
	Sync        *msync.Handler           // sync protocol dispatcher
	Verifier    msync.CredentialVerifier // credential check for token minting
	Admission   *admission.Controller    // "may I sync" gate, nil disables gating
	TokenSecret string                   // HMAC secret for admin/packager JWTs
}
