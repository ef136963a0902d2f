// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from four layers (highest
precedence last):

  1. Built-in defaults (login path, timeouts, upload cap, log level).
  2. Optional `.env` file at `<root>/conf/.env`.
  3. `conf/global.yaml`.
  4. Environment variables prefixed `SITEADMIN_`, where `__` maps to "."
     (e.g., `SITEADMIN_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs, any
`vault:` reference in Config.Secrets() is replaced by the secret it names,
and the result is validated, enriched with the runtime root path, and
cached in an `atomic.Pointer` for lock-free reads.  `Reload()` simply calls
`Load()` again and swaps the pointer.

Instrumentation
---------------
  • DEBUG spans - root discovery, YAML read, env overlay.
  • ERROR spans - YAML parse, env overlay, unmarshal, secret, and
    validation failures.
  • INFO  span  - final "config loaded" with key highlights.  Secrets are
    never logged.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`;
    this lets `go run ./cmd/web` work from any sub-directory.
  • The Vault client is only dialled when at least one reference exists.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/siteadmin/internal/vault"
)

// EnvPrefix marks environment overrides.
const EnvPrefix = "SITEADMIN_"

// SecretResolver turns a `vault:` reference into its value.
// *vault.Client implements it.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

var current atomic.Pointer[Config]

// newResolver dials Vault on first need.  Tests replace it.
var newResolver = func(ctx context.Context) (SecretResolver, error) {
	return vault.New(ctx, zap.S().Infof)
}

/*──────────────────────────── defaults ────────────────────────────────────*/

var defaults = map[string]any{
	"http.listen_addr":           ":8080",
	"http.read_timeout":          "15s",
	"http.write_timeout":         "30s",
	"http.idle_timeout":          "60s",
	"database.driver":            "mysql",
	"database.max_open_conns":    20,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": "5m",
	"storage.backend":            "s3",
	"storage.max_upload_bytes":   10 << 20,
	"auth.session_ttl":           "12h",
	"auth.secure_cookie":         true,
	"auth.login_path":            "/login",
	"log.dir":                    "logs",
	"log.level":                  "info",
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves SITEADMIN_ROOT or climbs directories until
// conf/global.yaml is found.  Falls back to executable heuristic for
// production layout.
func rootDir() string {
	if r := os.Getenv(EnvPrefix + "ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads defaults, .env, YAML, and env overrides, resolves secrets,
// validates, and caches Config.
func Load(ctx context.Context) (*Config, error) {
	cfg, err := LoadFrom(ctx, rootDir(), nil)
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// LoadFrom is Load with an explicit root and resolver.  A nil resolver
// dials Vault when a reference is found.
func LoadFrom(ctx context.Context, root string, res SecretResolver) (*Config, error) {
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, err
		}
	}

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: SITEADMIN_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	if err := resolveSecrets(ctx, &cfg, res); err != nil {
		zap.S().Errorw("config secret resolution failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if cfg.Log.Dir != "" && !filepath.IsAbs(cfg.Log.Dir) {
		cfg.Log.Dir = filepath.Join(root, cfg.Log.Dir)
	}
	if cfg.Storage.Local.Root != "" && !filepath.IsAbs(cfg.Storage.Local.Root) {
		cfg.Storage.Local.Root = filepath.Join(root, cfg.Storage.Local.Root)
	}

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"db_driver", cfg.Database.Driver,
		"storage", cfg.Storage.Backend,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// envKey maps SITEADMIN_AUTH__LOGIN_PATH to auth.login_path.  The ROOT
// override is not part of the tree.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if s == "ROOT" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// resolveSecrets swaps every `vault:` reference for its value.
func resolveSecrets(ctx context.Context, cfg *Config, res SecretResolver) error {
	for _, p := range cfg.Secrets() {
		if !vault.IsRef(*p) {
			continue
		}
		if res == nil {
			r, err := newResolver(ctx)
			if err != nil {
				return fmt.Errorf("vault: %w", err)
			}
			res = r
		}
		val, err := res.Resolve(ctx, *p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = val
	}
	return nil
}

// Get returns the last loaded Config, or nil before Load.
func Get() *Config { return current.Load() }

// Reload calls Load and swaps the cached pointer on success.
func Reload(ctx context.Context) error { _, err := Load(ctx); return err }
