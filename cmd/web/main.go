// cmd/web/main.go
//
// Site admin – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load configuration (defaults → .env → conf/global.yaml → SITEADMIN_
//     env vars, with vault: references resolved).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the GeoLite2 database when configured.
//
//  4. Open the database pool and, when auto_migrate is on, run the
//     embedded goose migrations.
//
//  5. Build the stores, the asset backend (S3 or local), the session
//     manager, the CSRF signer, and the admin service.
//
//  6. Build the chi router:
//
//     • request id, panic recovery, request logger, request info
//     • security headers, optional HTTPS redirect, CSRF check
//     • /healthz and /metrics
//     • /uploads file server for the local backend
//     • every registered component (auth, content, assets)
//
//  7. Serve until SIGINT or SIGTERM, then drain for up to 15 seconds.
//
// Large comment blocks are framed by blank "//" lines; inline comments use
// a single "//".
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/siteadmin/internal/admin"
	"github.com/yanizio/siteadmin/internal/asset"
	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/component"
	"github.com/yanizio/siteadmin/internal/config"
	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/middleware"
	"github.com/yanizio/siteadmin/internal/requestinfo"
	"github.com/yanizio/siteadmin/internal/server"
	"github.com/yanizio/siteadmin/internal/session"
	"github.com/yanizio/siteadmin/internal/site"
	"github.com/yanizio/siteadmin/schemas"

	_ "github.com/yanizio/siteadmin/components/assets"
	_ "github.com/yanizio/siteadmin/components/auth"
	_ "github.com/yanizio/siteadmin/components/content"
)

const shutdownGrace = 15 * time.Second

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("siteadmin: %v", err)
	}
}

func run(ctx context.Context) error {
	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		return err
	}
	defer logOut.Sync() //nolint:errcheck

	//
	// ── 3.  GeoIP (optional) ────────────────────────────────────────────
	//
	if err := requestinfo.InitGeo(cfg.GeoIP.DBPath); err != nil {
		logOut.Warnw("geoip disabled", "path", cfg.GeoIP.DBPath, "err", err)
	}
	defer requestinfo.CloseGeo()

	//
	// ── 4.  Database ────────────────────────────────────────────────────
	//
	logOut.Infow("connecting to database", "driver", cfg.Database.Driver)
	db, err := database.Open(ctx, database.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logOut.Infow("migrations applied")
	}

	//
	// ── 5.  Stores and services ─────────────────────────────────────────
	//
	reg, err := form.LoadRegistry(schemas.FS)
	if err != nil {
		return err
	}
	assets, imgOrigin, err := newAssetStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager([]byte(cfg.Auth.SessionHashKey), []byte(cfg.Auth.SessionBlockKey), session.Options{
		MaxAge: cfg.Auth.SessionTTL,
		Secure: cfg.Auth.SecureCookie,
	})
	if err != nil {
		return err
	}
	csrf, err := form.NewCSRF([]byte(cfg.Auth.CSRFKey), 0)
	if err != nil {
		return err
	}

	deps := component.Deps{
		Admin:     admin.New(content.NewStore(db, reg), assets),
		Settings:  site.NewSettingsStore(db),
		Auth:      auth.NewStore(db),
		Sessions:  sessions,
		CSRF:      csrf,
		Assets:    assets,
		MaxUpload: cfg.Storage.MaxUploadBytes,
		LoginPath: cfg.Auth.LoginPath,
	}

	//
	// ── 6.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Use(middleware.RequestLogger(logOut))
	r.Use(requestinfo.Enrich)
	if imgOrigin != "" {
		r.Use(middleware.Security(imgOrigin))
	} else {
		r.Use(middleware.Security())
	}
	if cfg.HTTP.ForceHTTPS {
		r.Use(middleware.ForceHTTPS)
	}
	r.Use(middleware.CSRF(csrf))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	if cfg.Storage.Backend == "local" {
		base := strings.TrimRight(cfg.Storage.Local.BaseURL, "/")
		if base == "" {
			base = "/uploads"
		}
		r.Handle(base+"/*", http.StripPrefix(base, http.FileServer(http.Dir(cfg.Storage.Local.Root))))
	}

	if err := component.Mount(r, deps); err != nil {
		return err
	}

	//
	// ── 7.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r, server.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})

	errc := make(chan error, 1)
	go func() {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logOut.Infow("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newAssetStore builds the configured backend and returns the origin its
// public URLs live on, for the image CSP.
func newAssetStore(ctx context.Context, sc config.Storage) (asset.Store, string, error) {
	if sc.Backend == "local" {
		base := sc.Local.BaseURL
		if base == "" {
			base = "/uploads"
		}
		zap.S().Infow("asset store", "backend", "local", "root", sc.Local.Root)
		return asset.NewLocalStore(sc.Local.Root, base), "", nil
	}

	st, err := asset.NewS3Store(ctx, asset.S3Config{
		Bucket:    sc.S3.Bucket,
		Region:    sc.S3.Region,
		Endpoint:  sc.S3.Endpoint,
		AccessKey: sc.S3.AccessKey,
		SecretKey: sc.S3.SecretKey,
		PathStyle: sc.S3.PathStyle,
		PublicURL: sc.S3.PublicURL,
	})
	if err != nil {
		return nil, "", err
	}
	zap.S().Infow("asset store", "backend", "s3", "bucket", sc.S3.Bucket, "region", sc.S3.Region)
	return st, origin(st.URL("x")), nil
}

// origin trims a URL to scheme://host.
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
