// components/assets/assets.go
//
// Asset component: image upload and removal for the entity forms.
//
// Workflow
// --------
//  1. POST   /api/assets          multipart {file, site, folder, oldPath?}.
//                                 The body is capped, sniffed, and stored
//                                 under a fresh {site}/{folder}/{uuid}{ext}
//                                 key.  Replies {path, url}.  When oldPath is
//                                 set it is removed afterwards, best-effort:
//                                 a failure is logged and returned as
//                                 warning, never as an error.
//  2. DELETE /api/assets?path=    removes one key.  Replies {success: true}.
//
// Both sit behind acl.RequireAdmin and assets:write.  The CSRF token must
// travel in the X-CSRF-Token header, since multipart bodies are not parsed
// by the CSRF middleware.
//
// Notes
// -----
// • Keys are checked with asset.ValidateKey before any removal, so a
//   client cannot point oldPath or path outside the two site prefixes.
// • metrics.Uploads and metrics.UploadBytes track every upload.
//
//------------------------------------------------------------------------------

package assets

import (
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/acl"
	"github.com/yanizio/siteadmin/internal/asset"
	"github.com/yanizio/siteadmin/internal/component"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/metrics"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/site"
)

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// User messages.
const (
	MissingFileMessage  = "Choose a file to upload."
	UnknownSiteMessage  = "Unknown site."
	BadFolderMessage    = "Invalid upload folder."
	UnsupportedMessage  = "Only JPEG, PNG, WebP, GIF, and AVIF images can be uploaded."
	BadPathMessage      = "Invalid asset path."
	RemoveFailedMessage = "The file could not be removed from storage."
	OldPathWarning      = "Uploaded, but the previous file could not be removed from storage."
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// Component serves /api/assets.
type Component struct {
	store     asset.Store
	maxBytes  int64
	sessions  acl.SessionReader
	admins    acl.AdminLoader
	loginPath string
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "assets" }

// Init copies the asset store, upload cap, and session wiring from d.
func (c *Component) Init(d component.Deps) error {
	if d.Assets == nil || d.Sessions == nil || d.Auth == nil {
		return errors.New("assets component: asset store, sessions, and auth are required")
	}
	c.store, c.sessions, c.admins = d.Assets, d.Sessions, d.Auth
	c.maxBytes = d.MaxUpload
	if c.maxBytes <= 0 {
		c.maxBytes = asset.DefaultMaxBytes
	}
	c.loginPath = d.LoginPath
	return nil
}

// Routes adds the upload and removal endpoints.
func (c *Component) Routes(r chi.Router) {
	r.Route("/api/assets", func(r chi.Router) {
		r.Use(acl.RequireAdmin(c.sessions, c.admins, c.loginPath), acl.RequirePermission(acl.Assets, acl.Write))
		r.Post("/", c.handleUpload)
		r.Delete("/", c.handleRemove)
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Handlers ─────────────────────────────────────*/

type uploadBody struct {
	asset.Saved
	Warning string `json:"warning,omitempty"`
}

func (c *Component) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// Leave headroom for the other form parts; asset.Save enforces the
	// exact file limit.
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.reject(w, r, "", http.StatusRequestEntityTooLarge, tooLargeMessage(c.maxBytes), err)
			return
		}
		c.reject(w, r, "", http.StatusBadRequest, MissingFileMessage, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	s, err := site.Parse(r.FormValue("site"))
	if err != nil {
		c.reject(w, r, "", http.StatusBadRequest, UnknownSiteMessage, err)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		c.reject(w, r, s.String(), http.StatusBadRequest, MissingFileMessage, err)
		return
	}
	defer f.Close()

	saved, err := asset.Save(r.Context(), c.store, asset.Upload{
		Site:   s,
		Folder: r.FormValue("folder"),
		Body:   f,
		Size:   hdr.Size,
	}, c.maxBytes)
	switch {
	case errors.Is(err, asset.ErrTooLarge):
		c.reject(w, r, s.String(), http.StatusRequestEntityTooLarge, tooLargeMessage(c.maxBytes), err)
		return
	case errors.Is(err, asset.ErrUnsupported):
		c.reject(w, r, s.String(), http.StatusUnsupportedMediaType, UnsupportedMessage, err)
		return
	case errors.Is(err, asset.ErrInvalidFolder):
		c.reject(w, r, s.String(), http.StatusBadRequest, BadFolderMessage, err)
		return
	case err != nil:
		metrics.Uploads.WithLabelValues(s.String(), metrics.ResultError).Inc()
		respond.Error(w, r, err)
		return
	}

	metrics.Uploads.WithLabelValues(s.String(), metrics.ResultOK).Inc()
	metrics.UploadBytes.Add(float64(saved.Size))
	log.Infow("asset uploaded", "path", saved.Path, "type", saved.ContentType, "size", humanize.IBytes(uint64(saved.Size)))

	out := uploadBody{Saved: saved}
	if old := r.FormValue("oldPath"); old != "" && old != saved.Path {
		if err := c.removeOld(r, s, old); err != nil {
			log.Warnw("old asset not removed", "path", old, "err", err)
			out.Warning = OldPathWarning
		}
	}
	respond.JSON(w, http.StatusOK, out)
}

func (c *Component) handleRemove(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("path")
	if err := asset.ValidateKey(key); err != nil {
		respond.Error(w, r, respond.WithStatus(http.StatusBadRequest, BadPathMessage, err))
		return
	}
	if err := c.store.Remove(r.Context(), key); err != nil {
		respond.Error(w, r, respond.WithStatus(http.StatusBadGateway, RemoveFailedMessage, err))
		return
	}
	logger.FromContext(r.Context()).Infow("asset removed", "path", key)
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// removeOld deletes the key an upload replaced.  It must belong to the same
// site as the upload.
func (c *Component) removeOld(r *http.Request, s site.Site, key string) error {
	if err := asset.CheckOwned(s, key); err != nil {
		return err
	}
	return c.store.Remove(r.Context(), key)
}

func (c *Component) reject(w http.ResponseWriter, r *http.Request, s string, status int, msg string, err error) {
	if s == "" {
		s = "unknown"
	}
	metrics.Uploads.WithLabelValues(s, metrics.ResultInvalid).Inc()
	respond.Error(w, r, respond.WithStatus(status, msg, err))
}

func tooLargeMessage(limit int64) string {
	return "File is too large, the limit is " + humanize.IBytes(uint64(limit)) + "."
}
