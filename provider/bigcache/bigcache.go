package bigcache

import (
	"context"
	"strconv"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	// BigCache does not support per-entry TTL; uses global LifeWindow.
	return true, p.c.Set(key, value)
}

func (p *Provider) Del(_ context.Context, keys ...string) (int, error) {
	n := 0
	for _, k := range keys {
		if err := p.c.Delete(k); err == nil {
			n++
		}
	}
	return n, nil
}

func (p *Provider) Keys(_ context.Context, pattern string) ([]string, error) {
	var out []string
	it := p.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			continue
		}
		if pr.Matches(e.Key(), pattern) {
			out = append(out, e.Key())
		}
	}
	return out, nil
}

func (p *Provider) Info(context.Context) (map[string]string, error) {
	return map[string]string{
		"backend": "bigcache",
		"entries": strconv.Itoa(p.c.Len()),
		"bytes":   strconv.Itoa(p.c.Capacity()),
	}, nil
}

func (p *Provider) Close(context.Context) error {
	return p.c.Close()
}
