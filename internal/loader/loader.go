package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vk/bootrt/internal/ctxlog"
	"github.com/vk/bootrt/internal/manifest"
)

// Loader schedules asset fetches. It holds only policy and collaborators;
// all per-boot state lives in LoadAll's frame, so one Loader may serve
// many boots.
type Loader struct {
	// Client issues fetches. Defaults to http.DefaultClient.
	Client *http.Client
	// Parallelism caps concurrently in-flight requests. Values below one
	// are treated as one.
	Parallelism int
	// RetryEnabled turns on same-source retry of transient failures.
	RetryEnabled bool
	// MaxRetries is the number of extra same-source attempts.
	MaxRetries int
	// Override is the host's resolve-or-defer hook, consulted before any
	// network fetch. Nil means no override.
	Override OverrideFunc
	// OnProgress is invoked after each request reaches a terminal state
	// (success or skip) with monotonic completion counts.
	OnProgress func(completed, total int)
}

// Result is the outcome of one LoadAll run.
type Result struct {
	// Resources holds the completed fetches in request order. Skipped
	// optional assets are absent.
	Resources []*LoadingResource
	// Skipped lists optional assets that exhausted all sources.
	Skipped []string
}

// LoadAll brings every request to a terminal state and returns once all of
// them have reached one. A required asset exhausting its sources fails the
// whole run and cancels the remaining in-flight fetches; optional assets
// are recorded as skipped without affecting the outcome.
func (l *Loader) LoadAll(ctx context.Context, reqs []*manifest.AssetRequest) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	total := len(reqs)
	if total == 0 {
		return &Result{}, nil
	}

	parallelism := l.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	sem := semaphore.NewWeighted(int64(parallelism))
	g, gctx := errgroup.WithContext(ctx)

	// mu guards the terminal-state bookkeeping and serializes progress
	// callbacks so observed counts stay monotonic.
	var mu sync.Mutex
	completed := 0
	results := make([]*LoadingResource, total)
	var skipped []string

	terminal := func(i int, res *LoadingResource, skipName string) {
		mu.Lock()
		defer mu.Unlock()
		if res != nil {
			results[i] = res
		} else {
			skipped = append(skipped, skipName)
		}
		completed++
		if l.OnProgress != nil {
			l.OnProgress(completed, total)
		}
	}

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			// Admission is a pure throttle: any ready request may be
			// admitted next.
			if err := sem.Acquire(gctx, 1); err != nil {
				// The run is already failing; this request never reached
				// a terminal state of its own.
				return err
			}
			defer sem.Release(1)

			res, err := l.loadOne(gctx, req)
			if err != nil {
				if req.Optional {
					logger.Debug("Optional asset skipped.", "asset", req.Name, "error", err)
					terminal(i, nil, req.Name)
					return nil
				}
				return err
			}
			terminal(i, res, "")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Skipped: skipped}
	for _, res := range results {
		if res != nil {
			out.Resources = append(out.Resources, res)
		}
	}
	return out, nil
}

// loadOne brings a single request to a terminal state: pre-supplied
// payload, override, then candidate sources in fallback order.
func (l *Loader) loadOne(ctx context.Context, req *manifest.AssetRequest) (*LoadingResource, error) {
	if req.Buffer != nil {
		// Host-seeded payloads are trusted as-is.
		return &LoadingResource{Request: req, data: req.Buffer}, nil
	}
	if req.PendingResponse != nil {
		data, err := l.consumeResponse(req.PendingResponse, req.Hash, "pre-supplied response")
		if err != nil {
			return nil, l.exhausted(req, []error{err})
		}
		return &LoadingResource{Request: req, data: data}, nil
	}

	candidates := slices.Clone(req.ResolvedURLs)
	if l.Override != nil {
		defaultURL := ""
		if len(candidates) > 0 {
			defaultURL = candidates[0]
		}
		if o := l.Override(OverrideRequest{Behavior: req.Behavior, Name: req.Name, URL: defaultURL, Hash: req.Hash}); o != nil {
			if o.Response != nil {
				// A supplied response suppresses all source fallback.
				data, err := l.consumeResponse(o.Response, req.Hash, "override response")
				if err != nil {
					return nil, l.exhausted(req, []error{err})
				}
				return &LoadingResource{Request: req, data: data}, nil
			}
			if o.URL != "" {
				if len(candidates) == 0 {
					candidates = []string{o.URL}
				} else {
					candidates[0] = o.URL
				}
			}
		}
	}

	var attempts []error
	for _, url := range candidates {
		data, err := l.fetchWithRetry(ctx, url, req.Hash)
		if err == nil {
			return &LoadingResource{Request: req, URL: url, data: data}, nil
		}
		attempts = append(attempts, err)
		if ctx.Err() != nil {
			// A sibling failure cancelled the run; stop walking sources.
			break
		}
	}
	if len(attempts) == 0 {
		attempts = []error{fmt.Errorf("no sources resolved for %q", req.Name)}
	}
	return nil, l.exhausted(req, attempts)
}

// exhausted wraps terminal failure per the asset's failure policy. The
// caller maps optional assets to a skip.
func (l *Loader) exhausted(req *manifest.AssetRequest, attempts []error) error {
	return &RequiredAssetError{Name: req.Name, Attempts: attempts}
}

// fetchWithRetry attempts one source, retrying transient failures against
// it up to the configured bound. Integrity mismatches never retry: the
// source would serve the same bytes again.
func (l *Loader) fetchWithRetry(ctx context.Context, url, hash string) ([]byte, error) {
	extra := 0
	if l.RetryEnabled {
		extra = l.MaxRetries
	}
	var lastErr error
	for attempt := 0; attempt <= extra; attempt++ {
		data, err := l.fetch(ctx, url, hash)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// fetch performs a single attempt against one source, including the
// integrity check: a mismatch is a failure of this attempt exactly like a
// transport failure.
func (l *Loader) fetch(ctx context.Context, url, hash string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &attemptError{url: url, transient: false, err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &attemptError{url: url, transient: true, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &attemptError{url: url, transient: transientStatus(resp.StatusCode),
			err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{url: url, transient: true, err: err}
	}
	if err := verifyIntegrity(url, data, hash); err != nil {
		return nil, &attemptError{url: url, transient: false, err: err}
	}
	return data, nil
}

// consumeResponse drains a pre-supplied or override response. No fallback
// applies to these; any failure is terminal for the request.
func (l *Loader) consumeResponse(resp *http.Response, hash, label string) ([]byte, error) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode != 0 && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", label, resp.StatusCode)
	}
	var data []byte
	if resp.Body != nil {
		var err error
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
	}
	if err := verifyIntegrity(label, data, hash); err != nil {
		return nil, err
	}
	return data, nil
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
