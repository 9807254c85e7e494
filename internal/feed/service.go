package feed

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oakfin/kitefeed/internal/connection"
	"github.com/oakfin/kitefeed/internal/hub"
	"github.com/oakfin/kitefeed/internal/model"
	"github.com/oakfin/kitefeed/internal/shard"
	"github.com/oakfin/kitefeed/internal/wire"
)

// Credentials supplies the fully-formed feed URL, consulted once per connect
// attempt so rotated access tokens take effect on the next dial.
type Credentials interface {
	FeedURL(ctx context.Context) (string, error)
}

// Config configures the service.
type Config struct {
	Mode               model.Mode              // Data mode requested for new subscriptions
	ConnectWaitTimeout time.Duration           // How long EnsureConnected waits on an in-progress attempt
	BackoffBase        time.Duration           // First retry delay
	BackoffMax         time.Duration           // Retry delay cap
	Client             connection.ClientConfig // Socket-level settings (URL filled per attempt)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:               model.ModeQuote,
		ConnectWaitTimeout: 10 * time.Second,
		BackoffBase:        time.Second,
		BackoffMax:         30 * time.Second,
		Client:             connection.DefaultClientConfig(),
	}
}

// Service is the shared connection service. One instance per process,
// constructed by the composition root and passed by reference to consumers.
type Service struct {
	cfg       Config
	logger    *slog.Logger
	creds     Credentials
	processor *shard.Processor
	hub       *hub.Hub

	state    atomic.Int32
	failures atomic.Int32 // Consecutive failed connect attempts
	opened   atomic.Bool  // Session-open already published

	// Subscription set: grow-only, sticky for the life of the process.
	subMu       sync.RWMutex
	subs        map[uint32]*model.Subscription // token → subscription
	symbolToken map[string]uint32

	// Tokens already subscribed upstream on the current connection
	// generation. Reset on every successful dial. flushMu serializes
	// flushUnsent passes so two flushers never double-send a token.
	sentMu  sync.Mutex
	sent    map[uint32]bool
	flushMu sync.Mutex

	// Current connection generation.
	connMu    sync.Mutex
	client    connection.Client
	genCancel context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// newClient is swapped in tests.
	newClient func(connection.ClientConfig, *slog.Logger) connection.Client

	// Metrics hooks, set before Start.
	OnReconnect    func()
	OnStateChange  func(State)
	OnPacket       func()
	OnUnknownToken func()
}

// NewService creates the service. It does not connect until the first
// Subscribe or EnsureConnected call.
func NewService(cfg Config, creds Credentials, processor *shard.Processor, h *hub.Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectWaitTimeout <= 0 {
		cfg.ConnectWaitTimeout = DefaultConfig().ConnectWaitTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultConfig().BackoffMax
	}
	if cfg.Mode == "" {
		cfg.Mode = model.ModeQuote
	}

	return &Service{
		cfg:         cfg,
		logger:      logger,
		creds:       creds,
		processor:   processor,
		hub:         h,
		subs:        make(map[uint32]*model.Subscription),
		symbolToken: make(map[string]uint32),
		sent:        make(map[uint32]bool),
		newClient:   connection.NewClient,
	}
}

// Start arms the service. Connecting is still lazy.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("feed service started", "mode", s.cfg.Mode)
	return nil
}

// State returns the current connection state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Subscribe registers a sticky subscription for symbol under token.
//
// Registration is idempotent and always succeeds while the service is live:
// if connected, the subscribe and mode-set frames go out immediately; if not,
// the token is queued in the subscription map and a connection attempt is
// kicked off; the replay-all performed on connect flushes every queued token
// as one combined request. Connectivity problems are never surfaced here;
// consumers watch the hub's connection stream.
func (s *Service) Subscribe(symbol string, token uint32, isIndex bool) bool {
	if s.State() == Disposing {
		return false
	}

	s.subMu.Lock()
	if _, exists := s.subs[token]; exists {
		s.subMu.Unlock()
		return true
	}
	sub := &model.Subscription{
		Symbol:       symbol,
		Token:        token,
		Mode:         s.cfg.Mode,
		IsIndex:      isIndex,
		SubscribedAt: time.Now(),
	}
	s.subs[token] = sub
	s.symbolToken[symbol] = token
	s.subMu.Unlock()

	s.logger.Debug("subscription registered",
		"symbol", symbol,
		"token", token,
		"is_index", isIndex,
	)

	if s.State() == Connected {
		s.sendSubscribe([]uint32{token}, s.cfg.Mode)
		return true
	}

	// Queued: the connect path replays the whole map once the socket is up.
	// A registration landing after that replay has already snapshotted the
	// map would otherwise stay silently dead until an unrelated reconnect,
	// so flush whatever the generation has not subscribed yet once the
	// connection resolves.
	go func() {
		if s.EnsureConnected(s.ctx) {
			s.flushUnsent()
		}
	}()
	return true
}

// EnsureConnected blocks until the connection is up, an in-progress attempt
// resolves, or the wait budget runs out. Exactly one caller wins the CAS and
// drives the actual connect; everyone else observes the outcome.
func (s *Service) EnsureConnected(ctx context.Context) bool {
	for {
		switch st := s.State(); {
		case st == Connected:
			return true
		case st == Disposing:
			return false
		case st.inProgress():
			return s.awaitConnected(ctx)
		case s.transition(Disconnected, Connecting):
			s.wg.Add(1)
			go s.connectLoop()
			return s.awaitConnected(ctx)
		}
		// Lost the CAS race; re-read and fall through to waiting.
	}
}

// awaitConnected polls the state machine with a bounded budget.
func (s *Service) awaitConnected(ctx context.Context) bool {
	deadline := time.NewTimer(s.cfg.ConnectWaitTimeout)
	defer deadline.Stop()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.State() == Connected
		case <-deadline.C:
			return s.State() == Connected
		case <-tick.C:
			switch st := s.State(); st {
			case Connected:
				return true
			case Disposing:
				return false
			}
		}
	}
}

// Close moves the state machine to the terminal Disposing state, cancelling
// in-flight I/O and any pending backoff wait. No further reconnect happens.
func (s *Service) Close() error {
	prev := State(s.state.Swap(int32(Disposing)))
	if prev == Disposing {
		return nil
	}
	s.notifyState(Disposing)
	s.logger.Info("feed service disposing", "previous_state", prev.String())

	if s.cancel != nil {
		s.cancel()
	}

	s.connMu.Lock()
	if s.genCancel != nil {
		s.genCancel()
	}
	client := s.client
	s.client = nil
	s.connMu.Unlock()

	if client != nil {
		client.Close()
	}

	if s.hub != nil && s.opened.Load() {
		s.hub.PublishSession(hub.SessionEvent{Type: hub.SessionClose, At: time.Now()})
	}

	s.wg.Wait()
	s.logger.Info("feed service stopped")
	return nil
}

// Subscriptions returns a snapshot of the sticky subscription set.
func (s *Service) Subscriptions() []model.Subscription {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	out := make([]model.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	return out
}

// TokenForSymbol resolves a symbol through the bidirectional map.
func (s *Service) TokenForSymbol(symbol string) (uint32, bool) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	tok, ok := s.symbolToken[symbol]
	return tok, ok
}

// SymbolForToken resolves a token through the bidirectional map.
func (s *Service) SymbolForToken(token uint32) (string, bool) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	sub, ok := s.subs[token]
	if !ok {
		return "", false
	}
	return sub.Symbol, true
}

// transition performs one CAS on the state machine.
func (s *Service) transition(from, to State) bool {
	if s.state.CompareAndSwap(int32(from), int32(to)) {
		s.notifyState(to)
		return true
	}
	return false
}

func (s *Service) notifyState(st State) {
	if s.OnStateChange != nil {
		s.OnStateChange(st)
	}
}

// connectLoop drives connect attempts until one succeeds or the service is
// disposed. Failures are non-fatal: the attempt counter grows the backoff
// delay, capped, and resets on the first success.
func (s *Service) connectLoop() {
	defer s.wg.Done()

	for {
		if s.State() == Disposing {
			return
		}

		if count := s.failures.Load(); count > 0 {
			delay := backoffDelay(s.cfg.BackoffBase, s.cfg.BackoffMax, count)
			st := s.State()
			if st == Connecting || st == Reconnecting {
				s.transition(st, BackingOff)
			}
			s.logger.Info("backing off before reconnect",
				"attempt", count,
				"delay", delay,
			)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			if !s.transition(BackingOff, Connecting) {
				return // Disposed during the wait.
			}
		}

		if s.connectOnce() {
			return
		}
		s.failures.Add(1)
	}
}

// connectOnce performs a single dial + replay-all. Reports success.
func (s *Service) connectOnce() bool {
	url, err := s.creds.FeedURL(s.ctx)
	if err != nil {
		s.logger.Error("failed to resolve feed url", "error", err)
		return false
	}

	clientCfg := s.cfg.Client
	clientCfg.URL = url
	client := s.newClient(clientCfg, s.logger)

	// New generation: nothing is subscribed upstream yet.
	s.sentMu.Lock()
	s.sent = make(map[uint32]bool)
	s.sentMu.Unlock()

	genCtx, genCancel := context.WithCancel(s.ctx)

	if err := client.Connect(genCtx); err != nil {
		genCancel()
		s.logger.Warn("connect attempt failed",
			"attempt", s.failures.Load()+1,
			"error", err,
		)
		return false
	}

	s.connMu.Lock()
	s.client = client
	s.genCancel = genCancel
	s.connMu.Unlock()

	// Replay the full subscription map before anything else so reconnection
	// is transparent to consumers. A send failure here means the socket died
	// under us; treat the attempt as failed.
	if err := s.resubscribeAll(client); err != nil {
		s.logger.Warn("resubscribe after connect failed", "error", err)
		client.Close()
		genCancel()
		return false
	}

	s.failures.Store(0)

	st := s.State()
	if st == Disposing {
		client.Close()
		genCancel()
		return true
	}
	s.transition(st, Connected)

	// Catch tokens registered between the replay snapshot and the Connected
	// transition whose Subscribe-side flush already gave up waiting.
	s.flushUnsent()

	s.logger.Info("feed connected", "subscriptions", s.subscriptionCount())

	if s.hub != nil {
		s.hub.PublishConnection(hub.ConnectionEvent{Type: hub.ConnectionReady, At: time.Now()})
		if s.opened.CompareAndSwap(false, true) {
			s.hub.PublishSession(hub.SessionEvent{Type: hub.SessionOpen, At: time.Now()})
		}
	}

	s.wg.Add(1)
	go s.receiveLoop(client, genCtx)
	return true
}

func (s *Service) subscriptionCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// resubscribeAll sends one combined subscribe and one combined mode-set frame
// covering every registered token. A pure function of the subscription map:
// no incremental diffing across disconnect boundaries.
func (s *Service) resubscribeAll(client connection.Client) error {
	s.subMu.RLock()
	tokens := make([]uint32, 0, len(s.subs))
	byMode := make(map[model.Mode][]uint32)
	for tok, sub := range s.subs {
		tokens = append(tokens, tok)
		byMode[sub.Mode] = append(byMode[sub.Mode], tok)
	}
	s.subMu.RUnlock()

	if len(tokens) == 0 {
		return nil
	}

	frame, err := wire.SubscribeMessage(tokens)
	if err != nil {
		return err
	}
	if err := client.SendText(frame); err != nil {
		return err
	}

	for mode, toks := range byMode {
		frame, err := wire.ModeMessage(mode, toks)
		if err != nil {
			return err
		}
		if err := client.SendText(frame); err != nil {
			return err
		}
	}

	s.markSent(tokens)
	s.logger.Info("subscriptions replayed", "tokens", len(tokens))
	return nil
}

// markSent records tokens as subscribed on the current generation.
func (s *Service) markSent(tokens []uint32) {
	s.sentMu.Lock()
	for _, tok := range tokens {
		s.sent[tok] = true
	}
	s.sentMu.Unlock()
}

// flushUnsent subscribes every registered token the current generation has
// not sent upstream yet. The replay performed on connect snapshots the
// subscription map before the Connected transition; tokens registered after
// that snapshot land here.
func (s *Service) flushUnsent() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.subMu.RLock()
	s.sentMu.Lock()
	byMode := make(map[model.Mode][]uint32)
	for tok, sub := range s.subs {
		if !s.sent[tok] {
			byMode[sub.Mode] = append(byMode[sub.Mode], tok)
		}
	}
	s.sentMu.Unlock()
	s.subMu.RUnlock()

	for mode, toks := range byMode {
		s.sendSubscribe(toks, mode)
	}
}

// sendSubscribe issues subscribe + mode-set for tokens on the live socket.
// Failures are logged only; the receive loop notices a dead socket and the
// reconnect replay covers the subscription.
func (s *Service) sendSubscribe(tokens []uint32, mode model.Mode) {
	s.connMu.Lock()
	client := s.client
	s.connMu.Unlock()
	if client == nil {
		return
	}

	if frame, err := wire.SubscribeMessage(tokens); err == nil {
		if err := client.SendText(frame); err != nil {
			s.logger.Warn("subscribe send failed", "error", err)
			return
		}
		s.markSent(tokens)
	}
	if frame, err := wire.ModeMessage(mode, tokens); err == nil {
		if err := client.SendText(frame); err != nil {
			s.logger.Warn("mode send failed", "error", err)
		}
	}
}

// receiveLoop consumes one connection generation until it dies. It blocks
// only on channel reads; decoded ticks go to the shard processor, which never
// blocks the loop.
func (s *Service) receiveLoop(client connection.Client, genCtx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-genCtx.Done():
			return

		case err := <-client.Errors():
			s.handleDisconnect(client, err)
			return

		case frame, ok := <-client.Frames():
			if !ok {
				return
			}
			switch frame.Type {
			case websocket.BinaryMessage:
				s.handleBinary(frame)
			case websocket.TextMessage:
				// Postbacks and error notices; informational only.
				s.logger.Debug("text frame from feed", "data", string(frame.Data))
			}
		}
	}
}

// handleBinary decodes one binary frame and dispatches its packets.
func (s *Service) handleBinary(frame connection.Frame) {
	for _, packet := range wire.DecodeMessage(frame.Data) {
		if len(packet) < 4 {
			continue
		}
		if s.OnPacket != nil {
			s.OnPacket()
		}
		token := binary.BigEndian.Uint32(packet[0:4])

		s.subMu.RLock()
		sub, ok := s.subs[token]
		s.subMu.RUnlock()
		if !ok {
			// Feed can push tokens we never asked for; not subscribed, drop.
			if s.OnUnknownToken != nil {
				s.OnUnknownToken()
			}
			continue
		}

		tick := s.processor.Rent()
		wire.DecodePacket(packet, sub.IsIndex, tick)
		tick.Symbol = sub.Symbol
		tick.ReceivedAt = frame.ReceivedAt

		// Dispatch owns the tick from here, including the overflow path.
		s.processor.Dispatch(tick)
	}
}

// handleDisconnect forces Disconnected, notifies consumers, and schedules the
// reconnect. Terminal if the service is disposing.
func (s *Service) handleDisconnect(client connection.Client, err error) {
	client.Close()

	if s.State() == Disposing {
		return
	}

	s.state.Store(int32(Disconnected))
	s.notifyState(Disconnected)

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.logger.Warn("feed connection lost", "error", reason)

	if s.hub != nil {
		s.hub.PublishConnection(hub.ConnectionEvent{
			Type:   hub.ConnectionLost,
			At:     time.Now(),
			Reason: reason,
		})
	}
	if s.OnReconnect != nil {
		s.OnReconnect()
	}

	s.failures.Add(1)
	if s.transition(Disconnected, Reconnecting) {
		s.wg.Add(1)
		go s.connectLoop()
	}
}

// backoffDelay computes min(2^(count-1) × base, max).
func backoffDelay(base, max time.Duration, count int32) time.Duration {
	if count < 1 {
		return 0
	}
	delay := base << uint(count-1)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
