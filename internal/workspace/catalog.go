package workspace

import (
	"context"
	"fmt"

	"github.com/me/shennong/internal/schema"
)

// Catalog returns the analysis catalog, fetching the processor schema when
// the cached copy is missing or older than SchemaTTL. A stale copy is used
// if the backend cannot be reached.
func (w *Workspace) Catalog(ctx context.Context) (*schema.Catalog, error) {
	cached, fetched, err := w.store.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cached schema: %w", err)
	}
	if cached != nil && w.Now().Sub(fetched) < w.SchemaTTL {
		return w.resolve(cached)
	}

	body, err := w.fetchSchema(ctx)
	if err != nil {
		if cached == nil {
			return nil, err
		}
		w.logger.Warn("using stale processor schema", "fetched", fetched, "error", err)
		return w.resolve(cached)
	}
	return w.resolve(body)
}

// RefreshCatalog fetches the processor schema regardless of the cache.
func (w *Workspace) RefreshCatalog(ctx context.Context) (*schema.Catalog, error) {
	body, err := w.fetchSchema(ctx)
	if err != nil {
		return nil, err
	}
	return w.resolve(body)
}

func (w *Workspace) fetchSchema(ctx context.Context) ([]byte, error) {
	body, err := w.backend.SchemaBytes(ctx)
	if err != nil {
		return nil, err
	}
	// Parse before caching so a broken document never replaces a good one.
	if _, err := schema.Parse(body); err != nil {
		return nil, err
	}
	if err := w.store.SaveSchema(ctx, body); err != nil {
		return nil, fmt.Errorf("cache schema: %w", err)
	}
	w.logger.Debug("processor schema fetched", "bytes", len(body))
	return body, nil
}

func (w *Workspace) resolve(body []byte) (*schema.Catalog, error) {
	doc, err := schema.Parse(body)
	if err != nil {
		return nil, err
	}
	return schema.Resolve(doc, w.display)
}
