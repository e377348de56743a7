package node

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"membitnode/pkg/accounts"
	"membitnode/pkg/dedup"
	"membitnode/pkg/logger"
	"membitnode/pkg/membit"
	"membitnode/pkg/models"
	"membitnode/pkg/proxy"
	"membitnode/pkg/ratelimit"
)

const (
	// DefaultScrollInterval is the gap between timeline collection cycles,
	// measured from the end of one cycle to the start of the next.
	DefaultScrollInterval = 30 * time.Minute

	// DefaultEpochPollInterval is how often epoch metadata is refreshed.
	DefaultEpochPollInterval = 10 * time.Second

	// DefaultSubmissionGap is the minimum spacing between post submissions.
	DefaultSubmissionGap = 5 * time.Second

	// scrollCheckInterval is how often the scheduler checks whether the next
	// collection cycle is due.
	scrollCheckInterval = time.Second
)

// RewardsAPI is the slice of the rewards client a node drives, satisfied by
// *membit.Client.
type RewardsAPI interface {
	Whoami(ctx context.Context) (*membit.Whoami, error)
	FetchNextEpoch(ctx context.Context) (*membit.NextEpoch, error)
	SubmitPost(ctx context.Context, payload *membit.PostPayload) (*membit.SubmitReceipt, error)
	SubmitEngagements(ctx context.Context, payload *membit.EngagementsPayload) error
}

// Collector produces one cycle's worth of normalized timeline items,
// satisfied by *timeline.Paginator.
type Collector interface {
	Collect(ctx context.Context) []*models.TimelineItem
}

// Mirrorer rehosts an image and returns its public URL, satisfied by
// *uploader.Uploader.
type Mirrorer interface {
	Mirror(ctx context.Context, originalURL string) string
}

// Config wires one node to its account and clients.
type Config struct {
	ID      int
	Account accounts.Account
	Proxy   *proxy.Proxy

	API       RewardsAPI
	Collector Collector
	Mirror    Mirrorer

	// IPLookup resolves the node's egress address, typically through the
	// node's proxy. Optional.
	IPLookup func(ctx context.Context) (string, error)

	// Window is the seen-ID window shared with the collector. A fresh one is
	// created when nil.
	Window *dedup.SeenWindow

	// Ring receives the node's log lines for the dashboard pane. A fresh one
	// is created when nil.
	Ring *LogRing

	// Logger overrides the node's own ring-backed logger. The runner builds
	// the logger up front so the API clients can share it.
	Logger logger.Logger

	// LogLevel and Console configure the node's own logger when Logger is
	// not set. Console additionally echoes lines to stdout for headless
	// runs; the dashboard leaves it off and reads the ring instead.
	LogLevel string
	Console  bool

	ScrollInterval    time.Duration
	EpochPollInterval time.Duration
	SubmissionGap     time.Duration
}

// Node drives the collect-and-submit loop for a single account. All mutable
// state is owned by the node and exposed only through Snapshot copies.
type Node struct {
	id        int
	account   accounts.Account
	proxy     *proxy.Proxy
	api       RewardsAPI
	collector Collector
	mirror    Mirrorer
	ipLookup  func(ctx context.Context) (string, error)
	logger    logger.Logger
	ring      *LogRing

	window    *dedup.SeenWindow
	submitted *dedup.SubmittedSet
	subPacer  *ratelimit.Pacer

	scrollInterval time.Duration
	epochInterval  time.Duration

	mu             sync.Mutex
	handle         string
	userID         string
	totalPoints    float64
	epochPoints    float64
	eligiblePosts  int
	epochID        int64
	epochEnd       time.Time
	nextScrollAt   time.Time
	status         models.NodeStatus
	lastError      string
	ipAddress      string
	skipLogged     bool

	scrolling atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New creates a node from its wiring. It does not touch the network; Start
// begins the schedule.
func New(cfg Config) (*Node, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("node %d: rewards API is required", cfg.ID)
	}
	if cfg.Collector == nil {
		return nil, fmt.Errorf("node %d: collector is required", cfg.ID)
	}

	if cfg.ScrollInterval <= 0 {
		cfg.ScrollInterval = DefaultScrollInterval
	}
	if cfg.EpochPollInterval <= 0 {
		cfg.EpochPollInterval = DefaultEpochPollInterval
	}
	if cfg.SubmissionGap <= 0 {
		cfg.SubmissionGap = DefaultSubmissionGap
	}

	n := &Node{
		id:             cfg.ID,
		account:        cfg.Account,
		proxy:          cfg.Proxy,
		api:            cfg.API,
		collector:      cfg.Collector,
		mirror:         cfg.Mirror,
		ipLookup:       cfg.IPLookup,
		ring:           cfg.Ring,
		window:         cfg.Window,
		submitted:      dedup.NewSubmittedSet(),
		subPacer:       ratelimit.NewPacer(cfg.SubmissionGap),
		scrollInterval: cfg.ScrollInterval,
		epochInterval:  cfg.EpochPollInterval,
		status:         models.StatusIdle,
	}
	if n.ring == nil {
		n.ring = NewLogRing(DefaultRingSize)
	}
	if n.window == nil {
		n.window = dedup.NewSeenWindow(dedup.DefaultWindowSize)
	}

	if cfg.Logger != nil {
		n.logger = cfg.Logger
	} else {
		base, err := logger.New(logger.Options{
			Level:     cfg.LogLevel,
			NoConsole: !cfg.Console,
			Writers: []io.Writer{zerolog.ConsoleWriter{
				Out:        n.ring,
				NoColor:    true,
				TimeFormat: "15:04:05",
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", cfg.ID, err)
		}
		n.logger = base.WithField("node", cfg.ID)
	}
	return n, nil
}

// ID returns the node's ordinal, assigned from account file order.
func (n *Node) ID() int { return n.id }

// Window exposes the node's seen-ID window for paginator wiring.
func (n *Node) Window() *dedup.SeenWindow { return n.window }

// Start launches the node's schedule: an immediate bootstrap and collection
// cycle, epoch refreshes every poll interval, and a new collection cycle once
// the scroll deadline passes. Start returns immediately.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go n.run(ctx)
}

// Stop cancels the schedule and waits for in-flight work to finish. Safe to
// call more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		n.wg.Wait()
	})
}

func (n *Node) run(ctx context.Context) {
	defer n.wg.Done()

	n.bootstrap(ctx)
	n.refreshEpoch(ctx)
	n.maybeScroll(ctx)

	epochTicker := time.NewTicker(n.epochInterval)
	defer epochTicker.Stop()
	scrollTicker := time.NewTicker(scrollCheckInterval)
	defer scrollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-epochTicker.C:
			n.refreshEpoch(ctx)
		case <-scrollTicker.C:
			n.maybeScroll(ctx)
		}
	}
}

// bootstrap resolves the account identity and egress address.
func (n *Node) bootstrap(ctx context.Context) {
	who, err := n.api.Whoami(ctx)
	if err != nil {
		n.logger.WithError(err).Error("identity check failed")
		n.setError(err)
	} else {
		n.mu.Lock()
		n.handle = who.TwitterHandle
		n.userID = who.ID
		n.totalPoints = who.Point
		n.status = models.StatusConnected
		n.lastError = ""
		n.mu.Unlock()
		n.logger.InfoWithFields("connected", map[string]interface{}{
			"handle": who.TwitterHandle,
			"points": who.Point,
		})
	}

	if n.ipLookup == nil {
		return
	}
	ip, err := n.ipLookup(ctx)
	if err != nil {
		n.logger.WithError(err).Warn("egress address lookup failed")
		return
	}
	n.mu.Lock()
	n.ipAddress = ip
	n.mu.Unlock()
}

// refreshEpoch pulls current epoch metadata. A failure marks the node Error
// but leaves the previous values standing; the next successful poll restores
// Connected.
func (n *Node) refreshEpoch(ctx context.Context) {
	epoch, err := n.api.FetchNextEpoch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.logger.WithError(err).Warn("epoch refresh failed")
		n.setError(err)
		return
	}

	n.mu.Lock()
	n.epochID = epoch.EpochID
	n.epochEnd = epoch.EstimatedEndTime
	n.eligiblePosts = epoch.EligiblePostsCount
	n.epochPoints = epoch.EstimatedEpochPoints
	if epoch.AccumulatedPoints > 0 {
		n.totalPoints = epoch.AccumulatedPoints
	}
	n.status = models.StatusConnected
	n.lastError = ""
	n.mu.Unlock()
}

// maybeScroll starts a collection cycle if one is due and none is running.
// The guard is a try-acquire: an in-flight cycle makes this a no-op rather
// than queueing a second one.
func (n *Node) maybeScroll(ctx context.Context) {
	n.mu.Lock()
	due := n.nextScrollAt.IsZero() || !time.Now().Before(n.nextScrollAt)
	n.mu.Unlock()
	if !due {
		return
	}
	if !n.scrolling.CompareAndSwap(false, true) {
		// Logged once per overrunning cycle, not on every checker tick.
		n.mu.Lock()
		logSkip := !n.skipLogged
		n.skipLogged = true
		n.mu.Unlock()
		if logSkip {
			n.logger.Warn("previous collection cycle still running, deferring scroll")
		}
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer n.scrolling.Store(false)

		n.runCycle(ctx)

		n.mu.Lock()
		n.nextScrollAt = time.Now().Add(n.scrollInterval)
		n.skipLogged = false
		n.mu.Unlock()
	}()
}

func (n *Node) setError(err error) {
	n.mu.Lock()
	n.status = models.StatusError
	n.lastError = err.Error()
	n.mu.Unlock()
}

// Snapshot returns a copy of the node's current state for rendering.
func (n *Node) Snapshot() models.Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	return models.Snapshot{
		ID:                   n.id,
		Handle:               n.handle,
		UserID:               n.userID,
		TotalPoints:          n.totalPoints,
		EstimatedEpochPoints: n.epochPoints,
		EligiblePosts:        n.eligiblePosts,
		EpochID:              n.epochID,
		NextEpochCountdown:   formatCountdown(now, n.epochEnd),
		NextScrollCountdown:  formatCountdown(now, n.nextScrollAt),
		Status:               n.status,
		IPAddress:            n.ipAddress,
		ProxyDesc:            n.proxy.String(),
		Logs:                 n.ring.Lines(),
	}
}

// formatCountdown renders the time left until deadline as MM:SS. Unknown
// deadlines render as a placeholder and elapsed ones clamp to zero.
func formatCountdown(now, deadline time.Time) string {
	if deadline.IsZero() {
		return "--:--"
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	remaining = remaining.Round(time.Second)
	mins := int(remaining.Minutes())
	secs := int(remaining.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
