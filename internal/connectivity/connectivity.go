package connectivity

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Checker reports whether the network is currently reachable.
type Checker interface {
	Online(ctx context.Context) bool
}

// Static always answers the same value.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }

// Probe issues a HEAD request to a well-known URL and caches the answer for ttl.
// Any HTTP response counts as online; transport errors count as offline.
type Probe struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	online    bool
}

func NewProbe(url string, timeout, ttl time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		url:    strings.TrimSpace(url),
		ttl:    ttl,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (p *Probe) Online(ctx context.Context) bool {
	if p == nil || p.url == "" {
		return true
	}
	p.mu.Lock()
	if !p.checkedAt.IsZero() && p.now().Sub(p.checkedAt) < p.ttl {
		online := p.online
		p.mu.Unlock()
		return online
	}
	p.mu.Unlock()

	online := p.probe(ctx)

	p.mu.Lock()
	p.online = online
	p.checkedAt = p.now()
	p.mu.Unlock()
	return online
}

func (p *Probe) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	res, err := p.client.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return true
}
