package node

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"membitnode/pkg/accounts"
	"membitnode/pkg/logger"
	"membitnode/pkg/membit"
	"membitnode/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	whoami    *membit.Whoami
	whoamiErr error
	epoch     *membit.NextEpoch
	epochErr  error

	submitErr     map[string]error
	engagementErr error

	posts       []*membit.PostPayload
	engagements []*membit.EngagementsPayload
}

func (f *fakeAPI) Whoami(ctx context.Context) (*membit.Whoami, error) {
	if f.whoamiErr != nil {
		return nil, f.whoamiErr
	}
	if f.whoami == nil {
		return &membit.Whoami{}, nil
	}
	return f.whoami, nil
}

func (f *fakeAPI) FetchNextEpoch(ctx context.Context) (*membit.NextEpoch, error) {
	if f.epochErr != nil {
		return nil, f.epochErr
	}
	if f.epoch == nil {
		return &membit.NextEpoch{}, nil
	}
	return f.epoch, nil
}

func (f *fakeAPI) SubmitPost(ctx context.Context, payload *membit.PostPayload) (*membit.SubmitReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.submitErr[payload.URL]; ok {
		return nil, err
	}
	f.posts = append(f.posts, payload)
	return &membit.SubmitReceipt{PostUUID: "uuid-" + payload.URL, ExpectedEpochPoints: 1.5}, nil
}

func (f *fakeAPI) SubmitEngagements(ctx context.Context, payload *membit.EngagementsPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.engagementErr != nil {
		return f.engagementErr
	}
	f.engagements = append(f.engagements, payload)
	return nil
}

func (f *fakeAPI) submittedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.posts))
	for _, p := range f.posts {
		out = append(out, p.URL)
	}
	return out
}

type fakeCollector struct {
	mu      sync.Mutex
	batches [][]*models.TimelineItem
	calls   int
	block   chan struct{}
}

func (f *fakeCollector) Collect(ctx context.Context) []*models.TimelineItem {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx >= len(f.batches) {
		return nil
	}
	return f.batches[idx]
}

func (f *fakeCollector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMirror struct{}

func (fakeMirror) Mirror(ctx context.Context, originalURL string) string {
	return "https://cdn.example.com/mirrored.jpg"
}

func item(id string) *models.TimelineItem {
	return &models.TimelineItem{
		TweetID: id,
		URL:     fmt.Sprintf("https://x.com/user/status/%s", id),
		Author: models.Author{
			Name:         "User",
			Handle:       "@user",
			ProfileImage: "https://pbs.twimg.com/profile_images/user.jpg",
		},
		Timestamp: time.Now().UTC(),
		Content:   "post " + id,
		Likes:     3,
		Retweets:  1,
		Replies:   2,
	}
}

func newTestNode(t *testing.T, api RewardsAPI, collector Collector) *Node {
	t.Helper()
	n, err := New(Config{
		ID:            1,
		Account:       accounts.Account{ID: 1, AccessToken: "tok", CSRF: "csrf", Cookie: "cookie"},
		API:           api,
		Collector:     collector,
		Mirror:        fakeMirror{},
		Logger:        logger.NewTestLogger(),
		SubmissionGap: time.Millisecond,
	})
	require.NoError(t, err)
	return n
}

func TestNewRequiresWiring(t *testing.T) {
	_, err := New(Config{Collector: &fakeCollector{}})
	assert.Error(t, err)

	_, err = New(Config{API: &fakeAPI{}})
	assert.Error(t, err)
}

func TestRunCycleSubmitsCollectedItems(t *testing.T) {
	api := &fakeAPI{}
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{item("1"), item("2")},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())

	require.Len(t, api.posts, 2)
	require.Len(t, api.engagements, 2)

	post := api.posts[0]
	assert.Equal(t, "@user", post.Author.Handle)
	assert.Equal(t, "https://cdn.example.com/mirrored.jpg", post.Author.ProfileImage,
		"avatar URL is rewritten to the mirrored copy")

	eng := api.engagements[0]
	assert.Equal(t, "uuid-"+post.URL, eng.PostUUID)
	assert.Equal(t, 3, eng.Likes)
	assert.Equal(t, 1, eng.Retweets)
	assert.Equal(t, 2, eng.Replies)
}

func TestRunCycleSkipsAlreadySubmitted(t *testing.T) {
	api := &fakeAPI{}
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{item("1"), item("2")},
		{item("2"), item("3")},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())
	n.runCycle(context.Background())

	assert.Equal(t, []string{
		"https://x.com/user/status/1",
		"https://x.com/user/status/2",
		"https://x.com/user/status/3",
	}, api.submittedURLs())
}

func TestRunCycleFailureDoesNotStopBatch(t *testing.T) {
	api := &fakeAPI{submitErr: map[string]error{
		"https://x.com/user/status/2": fmt.Errorf("rejected"),
	}}
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{item("1"), item("2"), item("3")},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())

	assert.Equal(t, []string{
		"https://x.com/user/status/1",
		"https://x.com/user/status/3",
	}, api.submittedURLs())
}

func TestRunCycleFailedItemRetriesNextCycle(t *testing.T) {
	api := &fakeAPI{submitErr: map[string]error{
		"https://x.com/user/status/1": fmt.Errorf("transient"),
	}}
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{item("1")},
		{item("1")},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())
	assert.Empty(t, api.submittedURLs())

	delete(api.submitErr, "https://x.com/user/status/1")
	n.runCycle(context.Background())
	assert.Equal(t, []string{"https://x.com/user/status/1"}, api.submittedURLs(),
		"a failed submission is not recorded as done")
}

func TestRunCycleEngagementFailureStillCounts(t *testing.T) {
	api := &fakeAPI{engagementErr: fmt.Errorf("engagements down")}
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{item("1")},
		{item("1")},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())
	n.runCycle(context.Background())

	assert.Len(t, api.posts, 1, "accepted post is not resubmitted over an engagement failure")
}

func TestScrollGuardPreventsOverlap(t *testing.T) {
	release := make(chan struct{})
	collector := &fakeCollector{
		batches: [][]*models.TimelineItem{nil, nil},
		block:   release,
	}
	n := newTestNode(t, &fakeAPI{}, collector)

	ctx := context.Background()
	n.maybeScroll(ctx)
	n.maybeScroll(ctx)

	close(release)
	n.wg.Wait()

	assert.Equal(t, 1, collector.callCount(), "an in-flight cycle absorbs further triggers")
	assert.False(t, n.Snapshot().Status == models.StatusError)
}

func TestScrollDeadlineResetsFromCompletion(t *testing.T) {
	collector := &fakeCollector{}
	n := newTestNode(t, &fakeAPI{}, collector)
	n.scrollInterval = time.Hour

	n.maybeScroll(context.Background())
	n.wg.Wait()

	assert.Equal(t, 1, collector.callCount())

	// deadline is now an hour out, so another check does nothing
	n.maybeScroll(context.Background())
	n.wg.Wait()
	assert.Equal(t, 1, collector.callCount())
}

func TestBootstrapPopulatesSnapshot(t *testing.T) {
	api := &fakeAPI{
		whoami: &membit.Whoami{ID: "acct-9", TwitterHandle: "tester", Point: 12.5},
		epoch: &membit.NextEpoch{
			EpochID:              7,
			EstimatedEndTime:     time.Now().Add(90 * time.Second),
			EligiblePostsCount:   4,
			EstimatedEpochPoints: 2.25,
			AccumulatedPoints:    13.75,
		},
	}
	n := newTestNode(t, api, &fakeCollector{})
	n.ipLookup = func(ctx context.Context) (string, error) { return "203.0.113.7", nil }

	n.bootstrap(context.Background())
	n.refreshEpoch(context.Background())

	snap := n.Snapshot()
	assert.Equal(t, "tester", snap.Handle)
	assert.Equal(t, "acct-9", snap.UserID)
	assert.Equal(t, 13.75, snap.TotalPoints, "epoch accumulation supersedes the whoami total")
	assert.Equal(t, 2.25, snap.EstimatedEpochPoints)
	assert.Equal(t, 4, snap.EligiblePosts)
	assert.Equal(t, int64(7), snap.EpochID)
	assert.Equal(t, models.StatusConnected, snap.Status)
	assert.Equal(t, "203.0.113.7", snap.IPAddress)
	assert.Equal(t, "None", snap.ProxyDesc)
	assert.Equal(t, "01:30", snap.NextEpochCountdown)
}

func TestEpochFailureMarksError(t *testing.T) {
	api := &fakeAPI{whoami: &membit.Whoami{ID: "acct-9", TwitterHandle: "tester"}}
	n := newTestNode(t, api, &fakeCollector{})

	n.bootstrap(context.Background())
	require.Equal(t, models.StatusConnected, n.Snapshot().Status)

	api.epochErr = fmt.Errorf("401 unauthorized")
	n.refreshEpoch(context.Background())
	assert.Equal(t, models.StatusError, n.Snapshot().Status,
		"a dead token surfaces even after a clean bootstrap")

	api.epochErr = nil
	n.refreshEpoch(context.Background())
	assert.Equal(t, models.StatusConnected, n.Snapshot().Status,
		"the next successful poll restores the connected status")
}

func TestRunCycleDedupKeyedByURL(t *testing.T) {
	api := &fakeAPI{}
	first := item("1")
	second := item("1")
	second.TweetID = "1-alt"
	collector := &fakeCollector{batches: [][]*models.TimelineItem{
		{first, second},
	}}
	n := newTestNode(t, api, collector)

	n.runCycle(context.Background())

	assert.Equal(t, []string{"https://x.com/user/status/1"}, api.submittedURLs(),
		"items sharing a URL submit once regardless of extractor IDs")
}

func TestOverlappingScrollLoggedOnce(t *testing.T) {
	release := make(chan struct{})
	collector := &fakeCollector{
		batches: [][]*models.TimelineItem{nil},
		block:   release,
	}
	tl := logger.NewTestLogger()
	n, err := New(Config{
		ID:            1,
		API:           &fakeAPI{},
		Collector:     collector,
		Logger:        tl,
		SubmissionGap: time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	n.maybeScroll(ctx)
	n.maybeScroll(ctx)
	n.maybeScroll(ctx)

	var deferred int
	for _, e := range tl.EntriesByLevel("WARN") {
		if e.Message == "previous collection cycle still running, deferring scroll" {
			deferred++
		}
	}
	assert.Equal(t, 1, deferred, "repeated due checks do not repeat the log line")

	close(release)
	n.wg.Wait()
}

func TestBootstrapFailureMarksError(t *testing.T) {
	api := &fakeAPI{whoamiErr: fmt.Errorf("401 unauthorized")}
	n := newTestNode(t, api, &fakeCollector{})

	n.bootstrap(context.Background())

	assert.Equal(t, models.StatusError, n.Snapshot().Status)
}

func TestStopIsIdempotent(t *testing.T) {
	n := newTestNode(t, &fakeAPI{}, &fakeCollector{})

	n.Start(context.Background())
	n.Stop()
	n.Stop()
}

func TestFormatCountdown(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		deadline time.Time
		want     string
	}{
		{"unknown", time.Time{}, "--:--"},
		{"ninety seconds", now.Add(90 * time.Second), "01:30"},
		{"half hour", now.Add(30 * time.Minute), "30:00"},
		{"over an hour", now.Add(125 * time.Minute), "125:00"},
		{"elapsed", now.Add(-time.Minute), "00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCountdown(now, tt.deadline))
		})
	}
}
