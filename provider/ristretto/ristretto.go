package ristretto

import (
	"context"
	"errors"
	"strconv"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// Provider adapts ristretto as a local, admission-controlled byte store.
// Ristretto cannot enumerate its keyspace, so Keys is unsupported and
// pattern-based invalidation degrades when this provider backs the cache.
type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return p.c.SetWithTTL(key, value, int64(len(value)), ttl), nil
}

func (p *Provider) Del(_ context.Context, keys ...string) (int, error) {
	n := 0
	for _, k := range keys {
		if _, ok := p.c.Get(k); ok {
			n++
		}
		p.c.Del(k)
	}
	return n, nil
}

func (p *Provider) Keys(context.Context, string) ([]string, error) {
	return nil, pr.ErrPatternUnsupported
}

func (p *Provider) Info(context.Context) (map[string]string, error) {
	out := map[string]string{"backend": "ristretto"}
	if m := p.c.Metrics; m != nil {
		out["hits"] = strconv.FormatUint(m.Hits(), 10)
		out["misses"] = strconv.FormatUint(m.Misses(), 10)
		out["cost_added"] = strconv.FormatUint(m.CostAdded(), 10)
	}
	return out, nil
}

func (p *Provider) Close(context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}
