// Package httpapi resolves batches against an HTTP endpoint that takes a
// comma-separated id list and answers with an object keyed by id:
//
//	GET https://api.example.com/excerpts?ids=12,13,14
//	{"12": {...}, "13": {...}}
//
// Ids missing from the object are left unresolved.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/batchcache"
	"github.com/unkn0wn-root/batchcache/codec"
	"github.com/unkn0wn-root/batchcache/resolver"
)

const (
	defaultParam   = "ids"
	defaultMaxBody = 8 << 20
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string // first bytes of the body, for diagnostics
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpapi: unexpected status %d: %s", e.Code, e.Body)
}

type Options[V any] struct {
	URL     string       // required; existing query params are kept
	Param   string       // query parameter carrying the ids; "" => "ids"
	Client  *http.Client // nil => client with 30s timeout
	Codec   codec.Codec[map[int64]V]
	Header  func(*http.Request) // e.g. auth; called on every request
	MaxBody int64               // response size limit; 0 => 8MiB
	Logger  batchcache.Logger
}

type Resolver[V any] struct {
	base    *url.URL
	param   string
	client  *http.Client
	codec   codec.Codec[map[int64]V]
	header  func(*http.Request)
	maxBody int64
	log     batchcache.Logger
}

func New[V any](opts Options[V]) (*Resolver[V], error) {
	if opts.URL == "" {
		return nil, errors.New("httpapi: URL is required")
	}
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("httpapi: parse URL: %w", err)
	}
	r := &Resolver[V]{
		base:    base,
		param:   opts.Param,
		client:  opts.Client,
		codec:   opts.Codec,
		header:  opts.Header,
		maxBody: opts.MaxBody,
		log:     opts.Logger,
	}
	if r.param == "" {
		r.param = defaultParam
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 30 * time.Second}
	}
	if r.codec == nil {
		r.codec = codec.NewKeyedJSON[V]()
	}
	if r.maxBody <= 0 {
		r.maxBody = defaultMaxBody
	}
	if r.log == nil {
		r.log = batchcache.NopLogger{}
	}
	return r, nil
}

func (r *Resolver[V]) Load(ctx context.Context, ids []int64) (map[int64]V, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.requestURL(ids), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.header != nil {
		r.header(req)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("httpapi: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}
	if int64(len(body)) > r.maxBody {
		return nil, fmt.Errorf("httpapi: response exceeds %d bytes", r.maxBody)
	}

	out, err := r.codec.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: decode: %w", err)
	}
	r.log.Debug("batch fetched", batchcache.Fields{"requested": len(ids), "resolved": len(out)})
	return out, nil
}

// Resolver returns Load as a batchcache.ResolveFunc.
func (r *Resolver[V]) Resolver() batchcache.ResolveFunc[V] {
	return resolver.Sync(r.Load)
}

func (r *Resolver[V]) requestURL(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	u := *r.base
	q := u.Query()
	q.Set(r.param, strings.Join(parts, ","))
	u.RawQuery = q.Encode()
	return u.String()
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		b = b[:max]
	}
	return strings.TrimSpace(string(b))
}
