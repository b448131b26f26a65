// Package memory is an in-process Provider for tests and single-node
// deployments. Expiry is lazy on Get and swept by Keys/Info.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/querycache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]entry
}

var _ pr.Provider = (*Memory)(nil)

func New() *Memory { return &Memory{m: make(map[string]entry)} }

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	// copy out; callers must not see later mutations
	out := make([]byte, len(e.v))
	copy(out, e.v)
	return out, true, nil
}

func (p *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)
	p.mu.Lock()
	p.m[key] = entry{v: v, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Memory) Del(_ context.Context, keys ...string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := p.m[k]; ok {
			delete(p.m, k)
			n++
		}
	}
	return n, nil
}

func (p *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for k, e := range p.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(p.m, k)
			continue
		}
		if pr.Matches(k, pattern) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Memory) Info(_ context.Context) (map[string]string, error) {
	p.mu.RLock()
	n := len(p.m)
	p.mu.RUnlock()
	return map[string]string{
		"backend": "memory",
		"entries": strconv.Itoa(n),
	}, nil
}

func (p *Memory) Close(context.Context) error { return nil }
