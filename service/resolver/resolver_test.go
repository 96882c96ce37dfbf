package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veetaha/snowpity/service/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls int64
	post  persist.Post
	err   error
	panic bool

	// entered signals each GetPost call; release holds the resolve in flight
	// until the test closes it. Both optional.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panic {
		panic("source exploded")
	}
	return f.post, f.err
}

func gatedSource(post persist.Post) *fakeSource {
	return &fakeSource{post: post, entered: make(chan struct{}, 4), release: make(chan struct{})}
}

// waitInboxDrained blocks until the actor has consumed every queued envelope.
// The actor registers a waiter in the same loop iteration that dequeues it,
// so after this returns every queued request has joined the waiters map.
func waitInboxDrained(t *testing.T, r *Resolver) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(r.inbox) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("inbox never drained")
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeUploader struct {
	calls int64
	err   error
}

func (f *fakeUploader) UploadBlob(ctx context.Context, post persist.Post, blob persist.Blob) (persist.TgFile, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return persist.TgFile{}, f.err
	}
	return persist.TgFile{ID: "file-" + string(blob.ID), Kind: persist.TgFileKindPhoto}, nil
}

type fakeRepo struct {
	mu      sync.Mutex
	entries map[persist.PostID][]persist.CachedBlob
	inserts int
	readErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: map[persist.PostID][]persist.CachedBlob{}}
}

func (f *fakeRepo) GetByPost(ctx context.Context, postID persist.PostID) ([]persist.CachedBlob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]persist.CachedBlob{}, f.entries[postID]...), nil
}

func (f *fakeRepo) Insert(ctx context.Context, postID persist.PostID, blob persist.CachedBlob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	f.entries[postID] = append(f.entries[postID], blob)
	return nil
}

func testPost(blobIDs ...string) persist.Post {
	post := persist.Post{ID: persist.PostID{Platform: persist.PlatformDerpibooru, ID: "123"}}
	for _, id := range blobIDs {
		post.Blobs = append(post.Blobs, persist.Blob{
			ID:   persist.BlobID(id),
			Reps: []persist.Representation{{Kind: persist.RepKindImageJpeg, URL: "https://example.com/" + id}},
		})
	}
	return post
}

func testRequest(mirror string) persist.ResolveRequest {
	return persist.ResolveRequest{
		RequestedBy: persist.User{ID: 42, FirstName: "Rarity"},
		ID:          persist.RequestID{Platform: persist.PlatformDerpibooru, ID: "123"},
		Mirror:      mirror,
	}
}

func TestCoalescesDuplicateRequests(t *testing.T) {
	source := gatedSource(testPost(""))
	up := &fakeUploader{}
	repo := newFakeRepo()

	r := New(source, up, repo)
	defer r.Close()

	var first persist.CachedPost
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		first, firstErr = r.CachePost(context.Background(), testRequest(""))
	}()
	// Once the source reports in, the resolve is in flight and every further
	// request for the same key must coalesce onto it.
	<-source.entered

	const extraCallers = 19
	rest := make([]envelope, extraCallers)
	for i := range rest {
		rest[i] = envelope{ctx: context.Background(), req: testRequest(""), ret: make(chan result, 1)}
		r.inbox <- rest[i]
	}
	waitInboxDrained(t, r)
	close(source.release)

	<-done
	require.NoError(t, firstErr)
	require.Len(t, first.Blobs, 1)
	assert.Equal(t, "file-", first.Blobs[0].File.ID)
	for _, env := range rest {
		res := <-env.ret
		require.NoError(t, res.err)
		require.Len(t, res.post.Blobs, 1)
		assert.Equal(t, "file-", res.post.Blobs[0].File.ID)
	}

	assert.EqualValues(t, 1, atomic.LoadInt64(&source.calls))
	assert.EqualValues(t, 1, atomic.LoadInt64(&up.calls))
}

func TestCacheHitSkipsUploads(t *testing.T) {
	post := testPost("a", "b")
	repo := newFakeRepo()
	repo.entries[post.ID] = []persist.CachedBlob{
		{BlobID: "a", File: persist.TgFile{ID: "cached-a", Kind: persist.TgFileKindPhoto}},
		{BlobID: "b", File: persist.TgFile{ID: "cached-b", Kind: persist.TgFileKindDocument}},
	}
	up := &fakeUploader{}

	r := New(&fakeSource{post: post}, up, repo)
	defer r.Close()

	cached, err := r.CachePost(context.Background(), testRequest(""))
	require.NoError(t, err)

	assert.Zero(t, atomic.LoadInt64(&up.calls))
	assert.Zero(t, repo.inserts)
	require.Len(t, cached.Blobs, 2)
	assert.Equal(t, "cached-a", cached.Blobs[0].File.ID)
	assert.Equal(t, "cached-b", cached.Blobs[1].File.ID)
}

func TestPartialCacheHitUploadsOnlyMissing(t *testing.T) {
	post := testPost("a", "b", "c")
	repo := newFakeRepo()
	repo.entries[post.ID] = []persist.CachedBlob{
		{BlobID: "b", File: persist.TgFile{ID: "cached-b", Kind: persist.TgFileKindPhoto}},
	}
	up := &fakeUploader{}

	r := New(&fakeSource{post: post}, up, repo)
	defer r.Close()

	cached, err := r.CachePost(context.Background(), testRequest(""))
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&up.calls))
	assert.Equal(t, 2, repo.inserts)
	require.Len(t, cached.Blobs, 3)
	assert.Equal(t, "file-a", cached.Blobs[0].File.ID)
	assert.Equal(t, "cached-b", cached.Blobs[1].File.ID)
	assert.Equal(t, "file-c", cached.Blobs[2].File.ID)
}

func TestPreservesBlobOrder(t *testing.T) {
	post := testPost("1", "2", "3", "4", "5")

	r := New(&fakeSource{post: post}, &fakeUploader{}, newFakeRepo())
	defer r.Close()

	cached, err := r.CachePost(context.Background(), testRequest(""))
	require.NoError(t, err)
	require.Len(t, cached.Blobs, len(post.Blobs))
	for i, blob := range post.Blobs {
		assert.Equal(t, blob.ID, cached.Blobs[i].BlobID)
	}
}

func TestMirrorStampedPerCaller(t *testing.T) {
	source := gatedSource(testPost(""))

	r := New(source, &fakeUploader{}, newFakeRepo())
	defer r.Close()

	first := make(chan persist.CachedPost, 1)
	go func() {
		cached, err := r.CachePost(context.Background(), testRequest("derpibooru.org"))
		assert.NoError(t, err)
		first <- cached
	}()
	<-source.entered

	second := envelope{ctx: context.Background(), req: testRequest("trixiebooru.org"), ret: make(chan result, 1)}
	r.inbox <- second
	waitInboxDrained(t, r)
	close(source.release)

	assert.Equal(t, "derpibooru.org", (<-first).Mirror)
	res := <-second.ret
	require.NoError(t, res.err)
	assert.Equal(t, "trixiebooru.org", res.post.Mirror)
	assert.EqualValues(t, 1, atomic.LoadInt64(&source.calls))
}

func TestSourceErrorReachesEveryCaller(t *testing.T) {
	r := New(&fakeSource{err: fmt.Errorf("upstream is down")}, &fakeUploader{}, newFakeRepo())
	defer r.Close()

	_, err := r.CachePost(context.Background(), testRequest(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream is down")
}

func TestResolvePanicBecomesError(t *testing.T) {
	r := New(&fakeSource{panic: true}, &fakeUploader{}, newFakeRepo())
	defer r.Close()

	_, err := r.CachePost(context.Background(), testRequest(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestCacheReadErrorDegradesToMiss(t *testing.T) {
	repo := newFakeRepo()
	repo.readErr = fmt.Errorf("connection reset")
	up := &fakeUploader{}

	r := New(&fakeSource{post: testPost("a")}, up, repo)
	defer r.Close()

	cached, err := r.CachePost(context.Background(), testRequest(""))
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&up.calls))
	require.Len(t, cached.Blobs, 1)
}

func TestCloseRejectsNewRequests(t *testing.T) {
	r := New(&fakeSource{post: testPost("")}, &fakeUploader{}, newFakeRepo())
	r.Close()

	_, err := r.CachePost(context.Background(), testRequest(""))
	assert.ErrorIs(t, err, ErrShuttingDown)
}
