// Package lru is a size-bounded in-process Provider backed by
// hashicorp/golang-lru. Entries carry their own expiry and are dropped
// lazily on Get.
package lru

import (
	"context"
	"time"

	hlru "github.com/hashicorp/golang-lru/v2"

	pr "github.com/unkn0wn-root/batchcache/provider"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero => no expiry
}

type Provider struct {
	c   *hlru.Cache[string, entry]
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

func New(size int) (*Provider, error) {
	c, err := hlru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && p.now().After(e.expiresAt) {
		p.c.Remove(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set never rejects; the least recently used entry is evicted when full.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	e := entry{data: value}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}
	p.c.Add(key, e)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Remove(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Purge()
	return nil
}

func (p *Provider) Len() int { return p.c.Len() }
