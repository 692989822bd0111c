package rounds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/fetch"
	"github.com/jwseok/lotto645-harvester/internal/source"
)

// ErrProbeFailed reports that round discovery could not interrogate the feed.
// It is a transport problem, never proof that a round is absent; callers
// should retry or fall back instead of trusting a stale value.
var ErrProbeFailed = errors.New("round probe failed")

// ErrNoRounds reports that not even round 1 exists, which means the feed
// answered but published nothing. Practically unreachable against the real
// upstream.
var ErrNoRounds = errors.New("no published rounds")

// Prober answers existence for one round and, when it exists, returns the
// decoded draw. The tri-state contract: (result, nil) means exists,
// (zero, source.ErrRoundAbsent) means absent, anything else is unknown.
type Prober interface {
	Probe(ctx context.Context, round int) (draw.Result, error)
}

// FeedProber probes the number feed through the fetch client. Successful
// probes are cached so heatmap assembly can reuse draw results without
// re-fetching rounds the resolver already touched.
type FeedProber struct {
	fetcher   fetch.Fetcher
	endpoints source.Endpoints

	mu    sync.Mutex
	cache map[int]draw.Result
}

// NewFeedProber builds a prober over the upstream number feed.
func NewFeedProber(fetcher fetch.Fetcher, endpoints source.Endpoints) *FeedProber {
	return &FeedProber{
		fetcher:   fetcher,
		endpoints: endpoints,
		cache:     make(map[int]draw.Result),
	}
}

// Probe checks one round against the feed. Absent rounds answer HTTP 200
// with a "fail" payload, so only the decoded body decides existence.
func (p *FeedProber) Probe(ctx context.Context, round int) (draw.Result, error) {
	p.mu.Lock()
	if res, ok := p.cache[round]; ok {
		p.mu.Unlock()
		return res, nil
	}
	p.mu.Unlock()

	hosts := p.endpoints.Hosts()
	req := fetch.Request{URL: p.endpoints.DrawJSON(hosts[0], round)}
	if len(hosts) > 1 {
		req.AltURL = p.endpoints.DrawJSON(hosts[1], round)
	}
	doc, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return draw.Result{}, fmt.Errorf("probe round %d: %w", round, err)
	}
	res, err := source.DecodeDraw([]byte(doc.Body))
	if err != nil {
		return draw.Result{}, err
	}

	p.mu.Lock()
	p.cache[round] = res
	p.mu.Unlock()
	return res, nil
}

// Cached returns the decoded draw for a round the prober already resolved.
func (p *FeedProber) Cached(round int) (draw.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.cache[round]
	return res, ok
}

// ProbeResolver discovers the newest round by interrogating a monotone
// existence oracle: exists(n) is true for every n up to the latest published
// round and false above it. From a hint it expands exponentially while the
// upper bound still exists, then binary-searches the true/false boundary.
type ProbeResolver struct {
	prober  Prober
	hint    int
	hinter  Resolver
	ceiling int
	logger  *zap.Logger
}

// NewProbeResolver builds the probe strategy. hint seeds the search; when it
// is non-positive the hinter (usually the page-hint strategy) is consulted,
// and failing that the search starts from 1. ceiling bounds the expansion
// against a broken oracle that answers true forever.
func NewProbeResolver(prober Prober, hint int, hinter Resolver, ceiling int, logger *zap.Logger) *ProbeResolver {
	if ceiling <= 0 {
		ceiling = 10000
	}
	return &ProbeResolver{
		prober:  prober,
		hint:    hint,
		hinter:  hinter,
		ceiling: ceiling,
		logger:  logger,
	}
}

// Resolve finds the boundary round b with exists(b) and !exists(b+1).
func (r *ProbeResolver) Resolve(ctx context.Context) (Resolution, error) {
	seed := r.seed(ctx)
	probes := 0

	exists := func(round int) (bool, error) {
		probes++
		_, err := r.prober.Probe(ctx, round)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, source.ErrRoundAbsent):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}

	ok, err := exists(seed)
	if err != nil {
		return Resolution{}, err
	}

	var lo, hi int
	if ok {
		// Expand upward until the oracle says no or the ceiling caps it.
		lo, hi = seed, seed
		for hi < r.ceiling {
			next := hi * 2
			if next > r.ceiling {
				next = r.ceiling
			}
			up, err := exists(next)
			if err != nil {
				return Resolution{}, err
			}
			if !up {
				hi = next
				break
			}
			lo, hi = next, next
		}
		if lo == hi {
			// Everything up to the ceiling exists; trust the cap.
			r.logger.Warn("probe expansion hit sanity ceiling",
				zap.Int("ceiling", r.ceiling))
			return Resolution{Round: draw.Round(r.ceiling), Strategy: StrategyProbe}, nil
		}
	} else {
		// Stale hint above the boundary: search downward from it.
		lo, hi = 0, seed
	}

	// Invariant: exists(lo) when lo > 0, !exists(hi).
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		up, err := exists(mid)
		if err != nil {
			return Resolution{}, err
		}
		if up {
			lo = mid
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return Resolution{}, ErrNoRounds
	}

	r.logger.Debug("probe resolution converged",
		zap.Int("round", lo),
		zap.Int("probes", probes),
		zap.Int("seed", seed))
	return Resolution{Round: draw.Round(lo), Strategy: StrategyProbe}, nil
}

func (r *ProbeResolver) seed(ctx context.Context) int {
	if r.hint > 0 {
		return r.hint
	}
	if r.hinter != nil {
		if res, err := r.hinter.Resolve(ctx); err == nil && res.Round > 0 {
			r.logger.Debug("seeding probe from page hint", zap.Int("round", int(res.Round)))
			return int(res.Round)
		}
	}
	return 1
}
