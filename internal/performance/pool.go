package performance

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// VUPool manages the lifecycle of Virtual Users.
//
// It owns VU creation, the shared HTTP client and shutdown. Executors size
// the pool with ScaleTo; each spawned VU runs in its own goroutine until it
// is asked to stop or the run context ends.
type VUPool struct {
	scenario *Scenario
	metrics  *metrics.Engine
	logger   *zap.Logger
	limiter  *rate.Limiter

	httpClientConfig HTTPClientConfig
	sharedClient     *http.Client

	vus   map[int]*VirtualUser
	vusMu sync.Mutex

	nextVUID atomic.Int32

	wg sync.WaitGroup
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// UseSharedClient indicates whether VUs share a single HTTP client
	UseSharedClient bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		UseSharedClient:     true,
	}
}

// NewVUPool creates a pool running scenario. A nil logger disables logging.
func NewVUPool(scenario *Scenario, metricsEngine *metrics.Engine, httpConfig HTTPClientConfig, logger *zap.Logger) *VUPool {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &VUPool{
		scenario:         scenario,
		metrics:          metricsEngine,
		logger:           logger,
		httpClientConfig: httpConfig,
		vus:              make(map[int]*VirtualUser),
	}

	if httpConfig.UseSharedClient {
		p.sharedClient = p.createHTTPClient()
	}

	return p
}

// SetRateLimiter makes every VU of the pool wait on limiter before each
// iteration. It must be called before the first VU is spawned.
func (p *VUPool) SetRateLimiter(limiter *rate.Limiter) {
	p.limiter = limiter
}

func (p *VUPool) createHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        p.httpClientConfig.MaxIdleConns,
		MaxIdleConnsPerHost: p.httpClientConfig.MaxIdleConnsPerHost,
		IdleConnTimeout:     p.httpClientConfig.IdleConnTimeout,
	}
	if p.httpClientConfig.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed targets
	}

	// Timeouts are applied per request through the context.
	return &http.Client{Transport: transport}
}

// SpawnVU creates and registers a new Virtual User without starting it.
func (p *VUPool) SpawnVU() *VirtualUser {
	p.vusMu.Lock()
	defer p.vusMu.Unlock()
	return p.spawnLocked()
}

func (p *VUPool) spawnLocked() *VirtualUser {
	id := int(p.nextVUID.Add(1))

	client := p.sharedClient
	if client == nil {
		client = p.createHTTPClient()
	}

	vu := NewVirtualUser(id, p.scenario, client, p.metrics)
	vu.Logger = p.logger
	vu.Limiter = p.limiter

	p.vus[id] = vu
	return vu
}

// ScaleTo spawns or stops VUs so that the pool converges on target.
//
// New VUs are started only while the number of non-stopped VUs is below
// target, so VUs still finishing their last iteration count against it and
// the pool never runs more goroutines than the highest target requested.
// Surplus VUs are asked to stop, newest first. It returns the number of
// non-stopped VUs after the adjustment.
func (p *VUPool) ScaleTo(ctx context.Context, target int) int {
	if target < 0 {
		target = 0
	}

	p.vusMu.Lock()

	total, live := 0, make([]*VirtualUser, 0, len(p.vus))
	for _, vu := range p.vus {
		switch vu.GetState() {
		case VUStateStopped:
		case VUStateStopping:
			total++
		default:
			total++
			live = append(live, vu)
		}
	}

	if ctx.Err() == nil {
		for ; total < target; total++ {
			vu := p.spawnLocked()
			live = append(live, vu)
			p.wg.Add(1)
			go p.runVU(ctx, vu)
		}
	}

	if excess := len(live) - target; excess > 0 {
		sort.Slice(live, func(i, j int) bool { return live[i].ID > live[j].ID })
		for _, vu := range live[:excess] {
			vu.RequestStop()
		}
	}

	p.vusMu.Unlock()

	p.metrics.SetActiveVUs(total)
	return total
}

// runVU runs a VU until it is stopped or ctx is cancelled. A failed iteration
// never ends the loop.
func (p *VUPool) runVU(ctx context.Context, vu *VirtualUser) {
	defer p.wg.Done()
	defer p.removeVU(vu)

	for {
		if ctx.Err() != nil {
			return
		}
		if st := vu.GetState(); st == VUStateStopping || st == VUStateStopped {
			return
		}

		if err := vu.RunIteration(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrVUStopped) {
				return
			}
			p.logger.Debug("iteration did not run", zap.Int("vu", vu.ID), zap.Error(err))
		}

		if !vu.Pace(ctx) {
			return
		}
	}
}

func (p *VUPool) removeVU(vu *VirtualUser) {
	vu.MarkStopped()

	p.vusMu.Lock()
	delete(p.vus, vu.ID)
	count := len(p.vus)
	p.vusMu.Unlock()

	p.metrics.SetActiveVUs(count)
}

// ActiveVUCount returns the count of non-stopped VUs, including those
// finishing their last iteration.
func (p *VUPool) ActiveVUCount() int {
	p.vusMu.Lock()
	defer p.vusMu.Unlock()

	count := 0
	for _, vu := range p.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// StopAll asks every VU to stop after its current iteration.
func (p *VUPool) StopAll() {
	p.vusMu.Lock()
	defer p.vusMu.Unlock()

	for _, vu := range p.vus {
		vu.RequestStop()
	}
}

// Wait blocks until every VU goroutine has exited. In-flight requests are
// bounded by their own timeout.
func (p *VUPool) Wait() {
	p.wg.Wait()
}

// Shutdown stops all VUs, waits for them and releases idle connections.
func (p *VUPool) Shutdown() {
	p.StopAll()
	p.Wait()

	if p.sharedClient != nil {
		p.sharedClient.CloseIdleConnections()
	}
}
