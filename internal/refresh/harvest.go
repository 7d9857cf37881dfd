package refresh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sadopc/sqlharbor/internal/catalog"
	"github.com/sadopc/sqlharbor/internal/completion"
)

// Source is the part of a connection a refresh reads from.
type Source interface {
	catalog.Loader
	Catalog(ctx context.Context) (*catalog.Catalog, error)
	Completions(ctx context.Context) ([]completion.Item, error)
}

// Result is one harvest. A completion failure does not fail the harvest;
// it is reported in CompletionErr.
type Result struct {
	Catalog       *catalog.Catalog
	Completions   []completion.Item
	CompletionErr error
}

// Harvest fetches the catalog and the backend's completions concurrently.
// Items whose identifiers are in expanded are loaded again, top down, so
// a rebuilt tree can restore its open nodes. Failures to reload a node
// leave it Unloaded.
func Harvest(ctx context.Context, src Source, expanded []string) (*Result, error) {
	res := &Result{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cat, err := src.Catalog(gctx)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		Reexpand(gctx, cat, src, expanded)
		res.Catalog = cat
		return nil
	})
	g.Go(func() error {
		items, err := src.Completions(gctx)
		if err != nil {
			res.CompletionErr = err
			return nil
		}
		res.Completions = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Reexpand loads every Unloaded item of cat whose identifier is in
// expanded. Parents load before children because Walk visits children
// after their parent has been expanded.
func Reexpand(ctx context.Context, cat *catalog.Catalog, l catalog.Loader, expanded []string) {
	if len(expanded) == 0 {
		return
	}
	want := make(map[string]bool, len(expanded))
	for _, id := range expanded {
		want[id] = true
	}
	cat.Walk(func(it *catalog.Item, _ int) bool {
		if ctx.Err() != nil {
			return false
		}
		if want[it.QualifiedIdentifier] && it.State == catalog.Unloaded && !it.Leaf() {
			catalog.Expand(ctx, it, l)
		}
		return true
	})
}
