// Package resolver multiplexes concurrent resolve requests. A single actor
// goroutine owns all mutable state: requests for the same post coalesce onto
// one in-flight resolve whose result fans out to every waiter.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veetaha/snowpity/service/logger"
	"github.com/Veetaha/snowpity/service/metric"
	"github.com/Veetaha/snowpity/service/persist"
	sentryutil "github.com/Veetaha/snowpity/service/sentry"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

const (
	// maxInFlight bounds outstanding return slots across all keys; senders
	// block on the inbox past that, which is the backpressure.
	maxInFlight = 40

	// uploadFanOut bounds concurrent blob uploads within one resolve.
	uploadFanOut = 10
)

// ErrShuttingDown is delivered to requests that arrive or sit queued while
// the resolver drains.
var ErrShuttingDown = fmt.Errorf("resolver is shutting down")

// PostSource yields the normalized post for a request id.
type PostSource interface {
	GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error)
}

// BlobUploader uploads one blob and returns the Telegram file it became.
type BlobUploader interface {
	UploadBlob(ctx context.Context, post persist.Post, blob persist.Blob) (persist.TgFile, error)
}

type envelope struct {
	ctx context.Context
	req persist.ResolveRequest
	ret chan result
}

type result struct {
	post persist.CachedPost
	err  error
}

type completion struct {
	key persist.RequestID
	res result
}

// Resolver is the posting cache service's single entry point.
type Resolver struct {
	source  PostSource
	up      BlobUploader
	repo    persist.TgMediaCacheRepository
	metrics metric.MetricReporter

	inbox       chan envelope
	completions chan completion
	quit        chan struct{}
	join        chan struct{}
	quitOnce    sync.Once
}

func New(source PostSource, up BlobUploader, repo persist.TgMediaCacheRepository) *Resolver {
	r := &Resolver{
		source:      source,
		up:          up,
		repo:        repo,
		metrics:     metric.NewLogMetricReporter(),
		inbox:       make(chan envelope, maxInFlight),
		completions: make(chan completion),
		quit:        make(chan struct{}),
		join:        make(chan struct{}),
	}
	go r.run()
	return r
}

// CachePost resolves a request to the post's Telegram file handles,
// coalescing with any identical in-flight request. The caller's context
// cancels only their own wait: the resolve keeps running for other waiters.
func (r *Resolver) CachePost(ctx context.Context, req persist.ResolveRequest) (persist.CachedPost, error) {
	env := envelope{ctx: ctx, req: req, ret: make(chan result, 1)}

	select {
	case r.inbox <- env:
	case <-r.quit:
		return persist.CachedPost{}, ErrShuttingDown
	case <-ctx.Done():
		return persist.CachedPost{}, ctx.Err()
	}

	select {
	case res := <-env.ret:
		return res.post, res.err
	case <-ctx.Done():
		return persist.CachedPost{}, ctx.Err()
	}
}

// Close drains the resolver: no new requests are admitted, in-flight resolves
// complete and deliver, queued requests receive ErrShuttingDown. It blocks
// until the actor exits.
func (r *Resolver) Close() {
	r.quitOnce.Do(func() { close(r.quit) })
	<-r.join
}

// run is the actor loop. The waiters map and the outstanding counter never
// leave this goroutine, so no locks are involved.
func (r *Resolver) run() {
	waiters := map[persist.RequestID][]envelope{}
	outstanding := 0
	quit := r.quit
	quitClosed := false

	for {
		inbox := r.inbox
		if outstanding > maxInFlight || quitClosed {
			inbox = nil
		}

		select {
		case <-quit:
			quitClosed = true
			quit = nil

		case env := <-inbox:
			outstanding++
			key := env.req.ID
			if existing, ok := waiters[key]; ok {
				// Coalesce: attach to the in-flight resolve, don't start a new one.
				waiters[key] = append(existing, env)
				continue
			}
			waiters[key] = []envelope{env}
			r.spawnResolve(env.req)

		case c := <-r.completions:
			for _, env := range waiters[c.key] {
				outstanding--
				r.deliver(env, c.res)
			}
			delete(waiters, c.key)
		}

		if quitClosed && len(waiters) == 0 {
			r.drain()
			return
		}
	}
}

// drain answers whatever is still buffered in the inbox and exits.
func (r *Resolver) drain() {
	for {
		select {
		case env := <-r.inbox:
			r.deliver(env, result{err: ErrShuttingDown})
		default:
			close(r.join)
			return
		}
	}
}

// deliver stamps the waiter's own mirror tag onto an independent copy of the
// result. A waiter whose context is already gone is logged and skipped.
func (r *Resolver) deliver(env envelope, res result) {
	if env.ctx.Err() != nil {
		logger.For(nil).WithFields(logrus.Fields{
			"request": env.req.ID.String(),
			"user":    env.req.RequestedBy.ID,
		}).Warn("caller went away before delivery")
		return
	}

	if res.err == nil {
		res.post.Mirror = env.req.Mirror
	}
	env.ret <- res
}

// spawnResolve runs one resolve task under a panic guard. A panic becomes an
// error for every waiter; the actor itself never dies.
func (r *Resolver) spawnResolve(req persist.ResolveRequest) {
	go func() {
		var res result
		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("resolve task panicked: %v", p)
				sentryutil.ReportError(context.Background(), err)
				res = result{err: err}
			}
			r.completions <- completion{key: req.ID, res: res}
		}()

		ctx := logger.NewContextWithFields(context.Background(), logrus.Fields{
			"request": req.ID.String(),
			"user":    req.RequestedBy.ID,
		})
		res = r.resolve(ctx, req)
	}()
}

func (r *Resolver) resolve(ctx context.Context, req persist.ResolveRequest) result {
	started := time.Now()
	defer func() {
		r.metrics.Record(ctx, metric.Measure{Name: metric.ResolveDurationSeconds, Value: time.Since(started).Seconds()},
			map[string]string{"platform": req.ID.Platform.String()})
	}()

	postID := persist.PostID{Platform: req.ID.Platform, ID: req.ID.ID}

	var post persist.Post
	var cached []persist.CachedBlob

	// Post metadata and the cache lookup race in parallel; a failed lookup
	// degrades to a miss since the cache is only a shortcut.
	fetch := pool.New().WithContext(ctx)
	fetch.Go(func(ctx context.Context) error {
		var err error
		post, err = r.source.GetPost(ctx, req.ID)
		return err
	})
	fetch.Go(func(ctx context.Context) error {
		var err error
		cached, err = r.repo.GetByPost(ctx, postID)
		if err != nil {
			logger.For(ctx).WithError(err).Warn("cache lookup failed, treating as miss")
			cached = nil
		}
		return nil
	})
	if err := fetch.Wait(); err != nil {
		return result{err: err}
	}

	cachedByID := make(map[persist.BlobID]persist.CachedBlob, len(cached))
	for _, blob := range cached {
		cachedByID[blob.BlobID] = blob
	}

	hit := len(post.Blobs) > 0
	for _, blob := range post.Blobs {
		if _, ok := cachedByID[blob.ID]; !ok {
			hit = false
			break
		}
	}
	logger.For(ctx).WithField("cacheHit", hit).Info("resolved post metadata")

	hitMeasure := metric.CacheMiss
	if hit {
		hitMeasure = metric.CacheHit
	}
	r.metrics.Record(ctx, metric.Measure{Name: hitMeasure, Value: 1},
		map[string]string{"platform": req.ID.Platform.String()})

	blobs := make([]persist.CachedBlob, len(post.Blobs))
	uploads := pool.New().WithContext(ctx).WithMaxGoroutines(uploadFanOut).WithCancelOnError().WithFirstError()
	for i, blob := range post.Blobs {
		i, blob := i, blob
		uploads.Go(func(ctx context.Context) error {
			if entry, ok := cachedByID[blob.ID]; ok {
				blobs[i] = entry
				return nil
			}

			file, err := r.up.UploadBlob(ctx, post, blob)
			if err != nil {
				return err
			}

			entry := persist.CachedBlob{BlobID: blob.ID, File: file}
			r.metrics.Record(ctx, metric.Measure{Name: metric.BlobUploaded, Value: 1},
				map[string]string{"platform": req.ID.Platform.String(), "kind": file.Kind.String()})
			// The upload to the cache channel is the source of truth; losing
			// this write degrades to a re-upload later.
			if err := r.repo.Insert(ctx, post.ID, entry); err != nil {
				logger.For(ctx).WithError(err).Warn("cache write failed, upload still returned")
			}

			blobs[i] = entry
			return nil
		})
	}
	if err := uploads.Wait(); err != nil {
		return result{err: err}
	}

	return result{post: persist.CachedPost{Post: post, Blobs: blobs}}
}
