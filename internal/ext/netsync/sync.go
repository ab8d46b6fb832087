package netsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/epicenterhq/epicenter-go/internal/kv"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

// Key is the conventional extension key the sync extension registers under.
const Key = "sync"

// Mode selects how the extension reaches the relay.
type Mode string

const (
	// ModeDirect connects straight to the relay; the room is the
	// document guid.
	ModeDirect Mode = "direct"
	// ModeAuthenticated obtains a per-document bearer token before
	// connecting.
	ModeAuthenticated Mode = "authenticated"
)

// Close-code sentinels surfaced through WhenReady and sync failures.
var (
	// ErrUnauthorized maps the relay's 4401 close code / HTTP 401.
	ErrUnauthorized = errors.New("netsync: unauthorized (4401)")
	// ErrRoomNotFound maps the relay's 4404 close code / HTTP 404,
	// reported only by relays not running in on-demand room mode.
	ErrRoomNotFound = errors.New("netsync: room not found (4404)")
)

// Config configures the sync extension. Mode and ServerURL are required;
// the rest defaults sensibly.
type Config struct {
	Mode      Mode
	ServerURL string

	// AuthURL is POSTed to for a token in authenticated mode; the
	// response body is {"token": "..."}. TokenFunc takes precedence when
	// both are set.
	AuthURL   string
	TokenFunc func(ctx context.Context) (string, error)

	// PullInterval is the poll period for fetching peer updates.
	// Defaults to 5s.
	PullInterval time.Duration

	// PushesPerSecond rate-limits state pushes triggered by local
	// mutations. Defaults to 4.
	PushesPerSecond float64

	// Gossip, if set, joins a memberlist cluster for cursor
	// announcements so peers pull promptly instead of waiting out
	// PullInterval.
	Gossip *GossipConfig

	// HTTPClient overrides the default client (10s timeout).
	HTTPClient *http.Client
}

// Sync is the extension's exported surface.
type Sync struct {
	cfg     Config
	client  *workspace.Client
	httpc   *http.Client
	limiter *rate.Limiter

	mu       sync.Mutex
	token    string
	cursor   uint64
	handles  map[string]int
	applying bool
	started  bool
	closed   bool

	dirty chan struct{}
	kick  chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup

	gossip *gossip
}

// Extension returns a factory for a workspace's .WithExtension chain.
func Extension(cfg Config) func(*workspace.Client) workspace.Lifecycle {
	s := &Sync{
		cfg:     cfg,
		handles: make(map[string]int),
		dirty:   make(chan struct{}, 1),
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	return func(client *workspace.Client) workspace.Lifecycle {
		s.client = client
		return workspace.Lifecycle{
			WhenReady: s.start,
			Destroy:   s.Close,
			Exports:   s,
		}
	}
}

func (s *Sync) start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	switch s.cfg.Mode {
	case ModeDirect:
	case ModeAuthenticated:
		if s.cfg.TokenFunc == nil && s.cfg.AuthURL == "" {
			return errors.New("netsync: authenticated mode requires AuthURL or TokenFunc")
		}
	default:
		return fmt.Errorf("netsync: unknown mode %q", s.cfg.Mode)
	}
	if s.cfg.ServerURL == "" {
		return errors.New("netsync: server url is required")
	}

	s.httpc = s.cfg.HTTPClient
	if s.httpc == nil {
		s.httpc = &http.Client{Timeout: 10 * time.Second}
	}
	pps := s.cfg.PushesPerSecond
	if pps <= 0 {
		pps = 4
	}
	s.limiter = rate.NewLimiter(rate.Limit(pps), 1)
	if s.cfg.PullInterval <= 0 {
		s.cfg.PullInterval = 5 * time.Second
	}

	if s.cfg.Mode == ModeAuthenticated {
		token, err := s.fetchToken(ctx)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}

	// Initial pull: surfaces unauthorized / room-not-found before the
	// extension reports ready.
	if err := s.pull(ctx); err != nil {
		return err
	}

	for ns, store := range s.client.Stores() {
		store := store
		s.handles[ns] = store.ObserveRaw(func([]kv.RawChange) {
			s.markDirty()
		})
	}

	if s.cfg.Gossip != nil {
		g, err := newGossip(*s.cfg.Gossip, s.onPeerCursor)
		if err != nil {
			return fmt.Errorf("netsync: gossip: %w", err)
		}
		s.gossip = g
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	return nil
}

// markDirty requests a push; coalesces while one is pending.
func (s *Sync) markDirty() {
	s.mu.Lock()
	applying := s.applying
	s.mu.Unlock()
	if applying {
		// Changes caused by applying a peer's state don't need to be
		// pushed back at the peer.
		return
	}
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// onPeerCursor reacts to a gossiped cursor announcement.
func (s *Sync) onPeerCursor(peer uint64) {
	s.mu.Lock()
	behind := peer > s.cursor
	s.mu.Unlock()
	if behind {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (s *Sync) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PullInterval)
			_ = s.pull(ctx)
			cancel()
		case <-s.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PullInterval)
			_ = s.push(ctx)
			cancel()
		case <-s.kick:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PullInterval)
			_ = s.pull(ctx)
			cancel()
		}
	}
}

// ForceSync pulls peer updates and pushes local state once, synchronously.
// Pull comes first so the pushed blob already reflects everything the
// relay had.
func (s *Sync) ForceSync(ctx context.Context) error {
	if err := s.pull(ctx); err != nil {
		return err
	}
	return s.push(ctx)
}

// Cursor returns the last relay cursor this node has caught up to.
func (s *Sync) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Peers returns the gossip members' names, or nil when gossip is off.
func (s *Sync) Peers() []string {
	if s.gossip == nil {
		return nil
	}
	return s.gossip.peers()
}

// fetchToken resolves the bearer token for authenticated mode.
func (s *Sync) fetchToken(ctx context.Context) (string, error) {
	if s.cfg.TokenFunc != nil {
		return s.cfg.TokenFunc(ctx)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AuthURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode); err != nil {
		return "", err
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("netsync: decode token response: %w", err)
	}
	if body.Token == "" {
		return "", ErrUnauthorized
	}
	return body.Token, nil
}

// encodeState marshals the workspace's full store map.
func (s *Sync) encodeState() ([]byte, error) {
	states := make(map[string]kv.State)
	for ns, store := range s.client.Stores() {
		st, err := store.State()
		if err != nil {
			return nil, fmt.Errorf("netsync: encode %s: %w", ns, err)
		}
		states[ns] = st
	}
	return json.Marshal(states)
}

// applyBlob merges one peer blob into the workspace's stores.
func (s *Sync) applyBlob(blob []byte) error {
	var states map[string]kv.State
	if err := json.Unmarshal(blob, &states); err != nil {
		return fmt.Errorf("netsync: decode peer blob: %w", err)
	}

	s.mu.Lock()
	s.applying = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.applying = false
		s.mu.Unlock()
	}()

	stores := s.client.Stores()
	for ns, st := range states {
		store, ok := stores[ns]
		if !ok {
			continue
		}
		if err := store.ApplyState(st); err != nil {
			return fmt.Errorf("netsync: apply %s: %w", ns, err)
		}
	}
	return nil
}

// push POSTs the workspace's state to the relay, rate-limited.
func (s *Sync) push(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	blob, err := s.encodeState()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ServerURL+"/updates", bytes.NewReader(blob))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode); err != nil {
		return err
	}

	var body struct {
		Cursor uint64 `json:"cursor"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return err
	}

	// The local cursor only advances on pull: peers' blobs may sit between
	// our last pull and where this push landed, and skipping them would
	// lose their state. The new head is still worth announcing so peers
	// pull promptly.
	if s.gossip != nil {
		s.gossip.announce(body.Cursor)
	}
	return nil
}

// pull fetches and applies every update past the local cursor.
func (s *Sync) pull(ctx context.Context) error {
	s.mu.Lock()
	since := s.cursor
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.ServerURL+"/updates?since="+strconv.FormatUint(since, 10), nil)
	if err != nil {
		return err
	}
	s.authorize(req)
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode); err != nil {
		return err
	}

	var body struct {
		Updates [][]byte `json:"updates"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&body); err != nil {
		return err
	}
	for _, blob := range body.Updates {
		if err := s.applyBlob(blob); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if head := since + uint64(len(body.Updates)); head > s.cursor {
		s.cursor = head
	}
	s.mu.Unlock()
	return nil
}

func (s *Sync) authorize(req *http.Request) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func statusErr(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrRoomNotFound
	case code >= 400:
		return fmt.Errorf("netsync: relay returned status %d", code)
	}
	return nil
}

// Close stops the loop, leaves the gossip cluster, and unsubscribes from
// the stores. Idempotent.
func (s *Sync) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if started {
		close(s.stop)
		s.wg.Wait()
	}
	if s.gossip != nil {
		s.gossip.close()
	}
	stores := s.client.Stores()
	for ns, handle := range s.handles {
		if store, ok := stores[ns]; ok {
			store.UnobserveRaw(handle)
		}
	}
	s.handles = map[string]int{}
	return nil
}
