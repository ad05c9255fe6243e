package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mathhub/mdh-explorer/internal/codec"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/export"
	"github.com/mathhub/mdh-explorer/internal/export/formats"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// Collection is a collection together with the lookups every consumer
// needs: properties and codecs by slug, default columns and the default
// pre-filter.
type Collection struct {
	types.Collection

	// PropMap maps property slug to property
	PropMap map[string]types.Property

	// NameMap maps property slug to display name
	NameMap map[string]string

	// CodecMap maps property slug to its codec, falling back for unknown codecs
	CodecMap map[string]codec.Codec

	// PropertySlugs lists every property slug in schema order
	PropertySlugs []string

	// DefaultPropertySlugs lists the properties shown by default
	DefaultPropertySlugs []string

	// RowExporters are the known exporters suggested by the backend
	RowExporters []export.RowExporter

	// DefaultPreFilter is the first pre-filter, nil if there is none
	DefaultPreFilter *types.PreFilter
}

// Orderable reports whether slug names a property the backend can sort by.
func (c *Collection) Orderable(slug string) bool {
	cd, ok := c.CodecMap[slug]
	return ok && cd.Ordered().Orderable()
}

// ParseCollection derives the lookups of coll using the client's registry.
func (c *Client) ParseCollection(coll types.Collection) *Collection {
	return ParseCollection(coll, c.registry)
}

// ParseCollection derives the lookups of coll. Unknown codecs resolve to
// fallbacks and unknown exporter slugs are skipped.
func ParseCollection(coll types.Collection, registry *codec.Registry) *Collection {
	if registry == nil {
		registry = codec.Default()
	}
	pc := &Collection{
		Collection:           coll,
		PropMap:              make(map[string]types.Property, len(coll.Properties)),
		NameMap:              make(map[string]string, len(coll.Properties)),
		CodecMap:             make(map[string]codec.Codec, len(coll.Properties)),
		PropertySlugs:        make([]string, 0, len(coll.Properties)),
		DefaultPropertySlugs: []string{},
	}

	for _, p := range coll.Properties {
		pc.PropMap[p.Slug] = p
		pc.NameMap[p.Slug] = p.DisplayName
		pc.CodecMap[p.Slug] = registry.GetWithFallback(p.Codec)
		pc.PropertySlugs = append(pc.PropertySlugs, p.Slug)
		if p.Default {
			pc.DefaultPropertySlugs = append(pc.DefaultPropertySlugs, p.Slug)
		}
	}

	for _, slug := range coll.Exporters {
		if exp, ok := formats.LookupRow(slug); ok {
			pc.RowExporters = append(pc.RowExporters, exp)
		}
	}

	if len(coll.PreFilters) > 0 {
		pf := coll.PreFilters[0]
		pc.DefaultPreFilter = &pf
	}
	return pc
}

// FetchCollection fetches and parses the collection named slug. A missing
// collection yields an error for which IsNotFound is true.
func (c *Client) FetchCollection(ctx context.Context, slug string) (*Collection, error) {
	var coll types.Collection
	if err := c.fetchJSON(ctx, "/schema/collections/"+url.PathEscape(slug)+"/", nil, &coll); err != nil {
		return nil, notFound(err, apperrors.CodeCollectionNotFound, fmt.Sprintf("collection %s not found", slug))
	}
	return c.ParseCollection(coll), nil
}

// FetchCollections fetches one page of the collection list.
func (c *Client) FetchCollections(ctx context.Context, page, perPage int) (*types.PagedResponse[types.Collection], error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	var resp types.PagedResponse[types.Collection]
	err := c.fetchJSON(ctx, "/schema/collections/", map[string]string{
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(perPage),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchItem fetches a single item of the collection named slug.
func (c *Client) FetchItem(ctx context.Context, slug, id string) (types.Item, error) {
	var item types.Item
	path := "/item/" + url.PathEscape(slug) + "/" + url.PathEscape(id) + "/"
	if err := c.fetchJSON(ctx, path, nil, &item); err != nil {
		return nil, notFound(err, apperrors.CodeItemNotFound, fmt.Sprintf("item %s of %s not found", id, slug))
	}
	return item, nil
}

// FetchCollectionAndItem fetches a collection and one of its items
// concurrently.
func (c *Client) FetchCollectionAndItem(ctx context.Context, slug, id string) (*Collection, types.Item, error) {
	type result struct {
		item types.Item
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		item, err := c.FetchItem(ctx, slug, id)
		ch <- result{item, err}
	}()

	coll, err := c.FetchCollection(ctx, slug)
	r := <-ch
	if err != nil {
		return nil, nil, err
	}
	if r.err != nil {
		return nil, nil, r.err
	}
	return coll, r.item, nil
}
