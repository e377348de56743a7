package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"membitnode/pkg/accounts"
	"membitnode/pkg/config"
	"membitnode/pkg/dedup"
	"membitnode/pkg/logger"
	"membitnode/pkg/membit"
	"membitnode/pkg/models"
	"membitnode/pkg/node"
	"membitnode/pkg/retry"
	"membitnode/pkg/timeline"
	"membitnode/pkg/uploader"
)

// ipEchoURL answers with the caller's public address, queried through each
// node's proxy so the dashboard shows per-node egress addresses.
const ipEchoURL = "https://api.ipify.org?format=json"

// Runner owns the node fleet: it reads the account and proxy files, wires
// one node per account, and manages their shared lifecycle.
type Runner struct {
	cfg    *config.Config
	logger logger.Logger

	mu      sync.Mutex
	nodes   []*node.Node
	baseCtx context.Context
}

// New creates a runner. Nothing is loaded or started until Start.
func New(cfg *config.Config, log logger.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Runner{cfg: cfg, logger: log}
}

// Start loads the account and proxy files and launches one node per valid
// account. An empty account file is an error; a missing proxy file is not.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseCtx = ctx
	nodes, err := r.buildNodes()
	if err != nil {
		return err
	}

	r.nodes = nodes
	for _, n := range nodes {
		n.Start(ctx)
	}
	r.logger.InfoWithFields("node fleet started", map[string]interface{}{
		"nodes": len(nodes),
	})
	return nil
}

// Reload tears down every node and rebuilds the fleet from the current file
// contents. No per-node state survives: dedup windows, submission sets and
// counters all start fresh, matching what a process restart would do.
func (r *Runner) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseCtx == nil {
		return fmt.Errorf("runner is not started")
	}

	nodes, err := r.buildNodes()
	if err != nil {
		return err
	}

	for _, n := range r.nodes {
		n.Stop()
	}

	r.nodes = nodes
	for _, n := range nodes {
		n.Start(r.baseCtx)
	}
	r.logger.InfoWithFields("node fleet reloaded", map[string]interface{}{
		"nodes": len(nodes),
	})
	return nil
}

// Stop shuts down every node and waits for in-flight work to drain.
func (r *Runner) Stop() {
	r.mu.Lock()
	nodes := r.nodes
	r.nodes = nil
	r.mu.Unlock()

	for _, n := range nodes {
		n.Stop()
	}
}

// Snapshots returns a render-ready copy of every node's state, ordered by
// node ID.
func (r *Runner) Snapshots() []models.Snapshot {
	r.mu.Lock()
	nodes := make([]*node.Node, len(r.nodes))
	copy(nodes, r.nodes)
	r.mu.Unlock()

	snaps := make([]models.Snapshot, 0, len(nodes))
	for _, n := range nodes {
		snaps = append(snaps, n.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// NodeCount reports the current fleet size.
func (r *Runner) NodeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

func (r *Runner) buildNodes() ([]*node.Node, error) {
	loaded, err := accounts.Load(r.cfg.Files.Accounts)
	if err != nil {
		return nil, err
	}
	for _, warning := range loaded.Warnings {
		r.logger.Warn(warning)
	}
	if len(loaded.Accounts) == 0 {
		return nil, fmt.Errorf("no valid accounts in %s", r.cfg.Files.Accounts)
	}

	proxies := accounts.LoadProxies(r.cfg.Files.Proxies)

	nodes := make([]*node.Node, 0, len(loaded.Accounts))
	for i, acct := range loaded.Accounts {
		n, err := r.buildNode(acct, accounts.AssignProxy(proxies, i))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", acct.ID, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *Runner) buildNode(acct *accounts.Account, entry accounts.ProxyEntry) (*node.Node, error) {
	ring := node.NewLogRing(node.DefaultRingSize)
	nodeLog, err := logger.New(logger.Options{
		Level:     r.cfg.Logging.Level,
		File:      r.cfg.Logging.File,
		NoConsole: r.cfg.Dashboard.Enabled,
		Writers: []io.Writer{zerolog.ConsoleWriter{
			Out:        ring,
			NoColor:    true,
			TimeFormat: "15:04:05",
		}},
	})
	if err != nil {
		return nil, err
	}
	nodeLog = nodeLog.WithField("node", acct.ID)

	var transport http.RoundTripper
	if entry.Err != "" {
		nodeLog.Warn(entry.Err)
	}
	if entry.Proxy != nil {
		t, err := entry.Proxy.Transport()
		if err != nil {
			nodeLog.WithError(err).Warn("proxy unusable, running direct")
			entry = accounts.ProxyEntry{}
		} else {
			transport = t
		}
	}

	apiOpts := []membit.Option{
		membit.WithBaseURL(r.cfg.API.BaseURL),
		membit.WithTimeout(r.cfg.API.Timeout),
		membit.WithRetry(apiRetryPolicy(nodeLog)),
	}
	if transport != nil {
		apiOpts = append(apiOpts, membit.WithTransport(transport))
	}
	api := membit.NewClient(acct.AccessToken, nodeLog, apiOpts...)

	tlOpts := []timeline.ClientOption{}
	if transport != nil {
		tlOpts = append(tlOpts, timeline.WithTransport(transport))
	}
	feed := timeline.NewClient(timeline.Credentials{
		CSRF:   acct.CSRF,
		Cookie: acct.Cookie,
	}, nodeLog, tlOpts...)

	window := dedup.NewSeenWindow(dedup.DefaultWindowSize)
	collector := timeline.NewPaginator(feed, window, nodeLog)

	upOpts := []uploader.Option{}
	if transport != nil {
		upOpts = append(upOpts, uploader.WithTransport(transport))
	}
	mirror := uploader.New(api, nodeLog, upOpts...)

	return node.New(node.Config{
		ID:                acct.ID,
		Account:           *acct,
		Proxy:             entry.Proxy,
		API:               api,
		Collector:         collector,
		Mirror:            mirror,
		IPLookup:          ipLookup(transport),
		Window:            window,
		Ring:              ring,
		Logger:            nodeLog,
		ScrollInterval:    r.cfg.Schedule.ScrollInterval,
		EpochPollInterval: r.cfg.Schedule.EpochPollInterval,
		SubmissionGap:     r.cfg.Schedule.SubmissionGap,
	})
}

// apiRetryPolicy is the backoff applied to the rewards client's retryable
// calls, i.e. epoch polls. Post submissions are never retried.
func apiRetryPolicy(log logger.Logger) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Logger = log
	return cfg
}

// ipLookup queries the echo service through the node's transport so proxied
// nodes report the proxy's address, not the host's.
func ipLookup(transport http.RoundTripper) func(ctx context.Context) (string, error) {
	return ipLookupAt(ipEchoURL, transport)
}

func ipLookupAt(echoURL string, transport http.RoundTripper) func(ctx context.Context) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second, Transport: transport}
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, echoURL, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("address echo returned status %d", resp.StatusCode)
		}
		var body struct {
			IP string `json:"ip"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", err
		}
		return body.IP, nil
	}
}
