// internal/config/model.go
//
// Typed configuration model for the admin service.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/global.yaml`                          – primary static file,
//   • `SITEADMIN_`-prefixed environment overrides – highest precedence.
//
// Any secret whose string begins with `vault:` is resolved through the
// Vault client *before* validation, so the model never hands a Vault URI to
// the rest of the app.  See Secrets() for the fields that may hold one.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.  Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • Durations accept Go syntax ("15s", "12h").
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr   string        `koanf:"listen_addr"   validate:"required,hostname_port"`
	ForceHTTPS   bool          `koanf:"force_https"`
	ReadTimeout  time.Duration `koanf:"read_timeout"  validate:"gte=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"  validate:"gte=0"`
}

//
// Database section
//

// Database selects the driver and pool.
//
// The DSN may be a `vault:` reference so credentials stay out of flat files
// and git history.
type Database struct {
	Driver          string        `koanf:"driver"            validate:"required,oneof=mysql pgx sqlite"`
	DSN             string        `koanf:"dsn"               validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

//
// Storage section
//

// S3 configures an S3-compatible bucket.
type S3 struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"   validate:"omitempty,url"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
	PublicURL string `koanf:"public_url" validate:"omitempty,url"`
}

// Local configures the development filesystem store.
type Local struct {
	Root    string `koanf:"root"`
	BaseURL string `koanf:"base_url"`
}

// Storage selects the asset backend.  Backend-specific requirements are
// checked by storageRules in validator.go.
type Storage struct {
	Backend        string `koanf:"backend"          validate:"required,oneof=s3 local"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes" validate:"gte=0"`
	S3             S3     `koanf:"s3"`
	Local          Local  `koanf:"local"`
}

//
// Auth section
//

// Auth holds session and CSRF keys.
type Auth struct {
	SessionHashKey  string        `koanf:"session_hash_key"  validate:"required,min=32"`
	SessionBlockKey string        `koanf:"session_block_key" validate:"required,len=32"`
	CSRFKey         string        `koanf:"csrf_key"          validate:"required,min=32"`
	SessionTTL      time.Duration `koanf:"session_ttl"       validate:"gte=0"`
	SecureCookie    bool          `koanf:"secure_cookie"`
	LoginPath       string        `koanf:"login_path"        validate:"required,startswith=/"`
}

//
// Log section
//

// Log configures the zap logger.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// GeoIP section
//

// GeoIP points at an optional GeoLite2-City database.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or SITEADMIN_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Storage  Storage  `koanf:"storage"`
	Auth     Auth     `koanf:"auth"`
	Log      Log      `koanf:"log"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}

// Secrets returns pointers to every field that may hold a `vault:`
// reference.
func (c *Config) Secrets() []*string {
	return []*string{
		&c.Database.DSN,
		&c.Storage.S3.AccessKey,
		&c.Storage.S3.SecretKey,
		&c.Auth.SessionHashKey,
		&c.Auth.SessionBlockKey,
		&c.Auth.CSRFKey,
	}
}
