package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DatabasePath string // path to the sqlite database file
	KeysDir      string // directory holding the RSA keypairs
	SpoolDir     string // scratch directory for file-framed envelopes
	PolicyFile   string // path to the policies.yaml file (optional, empty = permissive defaults)
	UseSHA256    bool   // sign legacy envelopes with SHA-256 instead of SHA-1

	AutoRegister     bool          // create unknown platforms/projects on registration
	HardwarePeriod   time.Duration // minimum time between hardware captures (ex: 336h)
	NotifyNew        bool          // raise a notification when a computer registers
	NotifyName       bool          // raise a notification when a computer changes name
	NotifyIP         bool          // raise a notification when a computer changes IP
	NotifyUUID       bool          // raise a notification when a computer changes UUID
	NotifyUnexpected bool          // raise a notification when an "available" computer syncs

	// Admission control
	AdmissionMaxDBLatency time.Duration // DB ping above this means zero headroom (ex: 200ms)
	AdmissionMaxLoad      float64       // 1m loadavg above this means zero headroom
	AdmissionMaxInflight  int           // concurrent syncs above this means zero headroom
	AdmissionInterval     time.Duration // queue drain cadence (ex: 10s)
	AdmissionDrainBatch   int           // computers admitted per drain at full headroom

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. a reverse proxy)

	TokenSecret   string // HMAC secret for packager/admin API tokens
	AdminUser     string // bootstrap credential for registration/packager tiers
	AdminPassword string
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MIGASFREE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MIGASFREE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MIGASFREE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MIGASFREE_PRETTY_LOG", false),

		// Storage
		DatabasePath: getenv("MIGASFREE_DATABASE_PATH", "/var/lib/migasfree/migasfree.db"),
		KeysDir:      getenv("MIGASFREE_KEYS_DIR", "/var/lib/migasfree/keys"),
		SpoolDir:     getenv("MIGASFREE_SPOOL_DIR", "/var/spool/migasfree"),
		PolicyFile:   getenv("MIGASFREE_POLICY_FILE", ""), // Optional, empty = permissive defaults
		UseSHA256:    mustBool("MIGASFREE_SIGN_SHA256", false),

		// Fleet behaviour
		AutoRegister:     mustBool("MIGASFREE_AUTO_REGISTER", true),
		HardwarePeriod:   mustDuration("MIGASFREE_HARDWARE_PERIOD", 14*24*time.Hour),
		NotifyNew:        mustBool("MIGASFREE_NOTIFY_NEW_COMPUTER", true),
		NotifyName:       mustBool("MIGASFREE_NOTIFY_NAME_CHANGE", false),
		NotifyIP:         mustBool("MIGASFREE_NOTIFY_IP_CHANGE", false),
		NotifyUUID:       mustBool("MIGASFREE_NOTIFY_UUID_CHANGE", false),
		NotifyUnexpected: mustBool("MIGASFREE_NOTIFY_UNEXPECTED_SYNC", true),

		// Admission control
		AdmissionMaxDBLatency: mustDuration("MIGASFREE_ADMISSION_MAX_DB_LATENCY", 200*time.Millisecond),
		AdmissionMaxLoad:      getenvFloat("MIGASFREE_ADMISSION_MAX_LOAD", 8.0),
		AdmissionMaxInflight:  getenvInt("MIGASFREE_ADMISSION_MAX_INFLIGHT", 50),
		AdmissionInterval:     mustDuration("MIGASFREE_ADMISSION_INTERVAL", 10*time.Second),
		AdmissionDrainBatch:   getenvInt("MIGASFREE_ADMISSION_DRAIN_BATCH", 10),

		// Redis settings
		RedisAddr:             requireEnv("MIGASFREE_REDIS_ADDR"),
		RedisUser:             getenv("MIGASFREE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MIGASFREE_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("MIGASFREE_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("MIGASFREE_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MIGASFREE_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MIGASFREE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MIGASFREE_TRUST_PROXY", true),

		TokenSecret:   requireEnv("MIGASFREE_TOKEN_SECRET"),
		AdminUser:     requireEnv("MIGASFREE_ADMIN_USER"),
		AdminPassword: requireEnv("MIGASFREE_ADMIN_PASSWORD"),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: MIGASFREE_REDIS_PASSWORD is required when MIGASFREE_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.TokenSecret = "***REDACTED***"
		cfgCopy.AdminPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
