package contxtapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

const defaultPageSize = 100

// PageOptions controls how paged endpoints are walked
type PageOptions struct {
	// Records requested per page
	PageSize int
	// Stop after this many records, 0 for all
	MaxRecords int
}

type pageMetadata struct {
	Offset       int `json:"offset"`
	TotalRecords int `json:"totalRecords"`
}

type page[T any] struct {
	Metadata pageMetadata `json:"_metadata"`
	Records  []T          `json:"records"`
}

// Getter is the part of API a Pager needs
type Getter interface {
	Get(ctx context.Context, uri string, params url.Values, out interface{}) error
}

// Pager walks a limit/offset paged endpoint one page at a time
type Pager[T any] struct {
	api     Getter
	uri     string
	params  url.Values
	opts    PageOptions
	offset  int
	fetched int
	done    bool
}

func NewPager[T any](api Getter, uri string, params url.Values, opts PageOptions) *Pager[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	p := url.Values{}
	for k, v := range params {
		p[k] = append([]string(nil), v...)
	}

	return &Pager[T]{
		api:    api,
		uri:    uri,
		params: p,
		opts:   opts,
	}
}

// Done reports whether every page has been read
func (p *Pager[T]) Done() bool {
	return p.done
}

// Next fetches the next page of records
func (p *Pager[T]) Next(ctx context.Context) ([]T, error) {
	if p.done {
		return nil, nil
	}

	limit := p.opts.PageSize
	if p.opts.MaxRecords > 0 && p.opts.MaxRecords-p.fetched < limit {
		limit = p.opts.MaxRecords - p.fetched
	}

	p.params.Set("limit", strconv.Itoa(limit))
	p.params.Set("offset", strconv.Itoa(p.offset))

	var pg page[T]
	if err := p.api.Get(ctx, p.uri, p.params, &pg); err != nil {
		return nil, errors.Wrapf(err, "fetching %s at offset %d", p.uri, p.offset)
	}

	p.offset += len(pg.Records)
	p.fetched += len(pg.Records)

	switch {
	case len(pg.Records) == 0:
		p.done = true
	case p.offset >= pg.Metadata.TotalRecords:
		p.done = true
	case p.opts.MaxRecords > 0 && p.fetched >= p.opts.MaxRecords:
		p.done = true
	}

	return pg.Records, nil
}

// All reads the remaining pages
func (p *Pager[T]) All(ctx context.Context) ([]T, error) {
	var out []T
	for !p.Done() {
		records, err := p.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, records...)
	}
	return out, nil
}
