// internal/admin/dashboard.go
//
// Per-entity row counts for one site.
//
// Context
// -------
// The dashboard shows how many records each content type holds.  Counts run
// concurrently through an errgroup capped at four in-flight queries, so a
// thirteen-table dashboard does not open thirteen connections at once.  The
// first failure cancels the rest and is returned.

package admin

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/yanizio/siteadmin/internal/site"
)

// dashboardParallelism caps concurrent COUNT queries.
const dashboardParallelism = 4

// EntityCount is one dashboard tile.
type EntityCount struct {
	Entity    string `json:"entity"`
	Title     string `json:"title"`
	Singleton bool   `json:"singleton"`
	Count     int    `json:"count"`
}

// Dashboard counts every entity for s, in schema order.
func (svc *Service) Dashboard(ctx context.Context, s site.Site) ([]EntityCount, error) {
	schemas := svc.store.Registry().All()
	out := make([]EntityCount, len(schemas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardParallelism)
	for i, sc := range schemas {
		i, sc := i, sc
		out[i] = EntityCount{Entity: sc.ID, Title: sc.Title, Singleton: sc.Singleton}
		g.Go(func() error {
			n, err := svc.store.Count(gctx, sc.ID, s)
			if err != nil {
				return err
			}
			out[i].Count = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
