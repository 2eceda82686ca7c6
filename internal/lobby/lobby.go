package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	Cmd engine.Command
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	Req   engine.JoinRequest
	Reply chan engine.JoinResult
}

func (Join) isLobbyMsg() {}

// Attach registers a connection for a player; snapshots for that player are
// pushed to Outbox until Detach or shutdown.
type Attach struct {
	ClientID string
	PlayerID string
	Outbox   chan Snapshot
}

func (Attach) isLobbyMsg() {}

type Detach struct{ ClientID string }

func (Detach) isLobbyMsg() {}

// Leave marks a player disconnected and drops all of their connections.
type Leave struct{ PlayerID string }

func (Leave) isLobbyMsg() {}

type Start struct {
	PlayerID string
	Reply    chan error
}

func (Start) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct {
	gen   uint64
	stage engine.Stage
}

func (timerFired) isLobbyMsg() {}

type deckReady struct {
	cards []content.Card
	err   error
	reply chan error
}

func (deckReady) isLobbyMsg() {}

type Snapshot struct {
	Version int
	State   engine.View
}

// View is a race-free copy of lobby internals for tests and housekeeping.
type View struct {
	Version    int
	NumClients int
	LastActive time.Time
	State      engine.View
	Armed      *engine.Stage
}

// Change is what store-level listeners hear after every mutation.
type Change struct {
	LobbyID string
	Version int
	Phase   engine.Phase
	Round   int
}

type Config struct {
	Provider content.Provider
	Log      *zap.Logger
	// Notify is called from the lobby goroutine after each mutation.
	Notify func(Change)
	// FetchTimeout bounds the deck fetch during start.
	FetchTimeout time.Duration
}

type client struct {
	playerID string
	outbox   chan Snapshot
}

type Lobby struct {
	inbox   chan Msg
	game    *engine.Game
	version int
	clients map[string]client
	timer   timerSlot
	armed   *engine.Stage

	provider     content.Provider
	fetchTimeout time.Duration
	notify       func(Change)
	log          *zap.Logger
	lastActive   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, game *engine.Game, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Provider == nil {
		cfg.Provider = content.Generated{}
	}
	cfg.Log = logging.Resolve(cfg.Log)
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	l := &Lobby{
		inbox:        make(chan Msg, 64), // Small buffer
		game:         game,
		clients:      make(map[string]client),
		provider:     cfg.Provider,
		fetchTimeout: cfg.FetchTimeout,
		notify:       cfg.Notify,
		log:          cfg.Log.With(zap.String("lobby", game.ID)),
		lastActive:   time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) ID() string { return l.game.ID }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				res := l.game.Join(msg.Req)
				msg.Reply <- res
				if res.Created {
					l.log.Info("player joined",
						zap.String("player", res.Player.ID),
						zap.Bool("spectator", res.Spectator),
						zap.String("note", string(res.Note)))
					l.commit()
				}

			case Attach:
				l.clients[msg.ClientID] = client{playerID: msg.PlayerID, outbox: msg.Outbox}
				l.lastActive = time.Now()
				if l.game.SetConnected(msg.PlayerID, true) {
					l.commit()
					break
				}
				// Nothing changed for anyone else; catch the new client up.
				select {
				case msg.Outbox <- l.snapshotFor(msg.PlayerID):
				default:
				}

			case Detach:
				c, ok := l.clients[msg.ClientID]
				if !ok {
					break
				}
				delete(l.clients, msg.ClientID)
				l.lastActive = time.Now()
				if !l.hasClient(c.playerID) && l.game.SetConnected(c.playerID, false) {
					l.commit()
				}

			case Leave:
				for id, c := range l.clients {
					if c.playerID == msg.PlayerID {
						close(c.outbox)
						delete(l.clients, id)
					}
				}
				if l.game.SetConnected(msg.PlayerID, false) {
					l.commit()
				}

			case FromClient:
				events, err := engine.Apply(l.game, msg.Cmd)
				if err != nil {
					l.log.Debug("command ignored",
						zap.String("type", string(msg.Cmd.Type)),
						zap.String("player", msg.Cmd.PlayerID),
						zap.Error(err))
					break
				}
				l.logEvents(events)
				l.commit()

			case Start:
				req, err := l.game.PrepareStart(msg.PlayerID)
				if err != nil {
					msg.Reply <- err
					break
				}
				l.log.Info("starting game", zap.Int("deck", req.Count), zap.String("theme", string(req.Theme)))
				l.commit()
				go l.fetchDeck(req, msg.Reply)

			case deckReady:
				if msg.err != nil {
					l.game.AbortStart()
					l.log.Warn("deck fetch failed", zap.Error(msg.err))
					msg.reply <- fmt.Errorf("fetch deck: %w", msg.err)
					l.commit()
					break
				}
				if len(msg.cards) < engine.HandSize(l.game.Settings.Rounds)*l.game.ActiveCount() {
					l.log.Warn("short deck, dealing short hands", zap.Int("cards", len(msg.cards)))
				}
				events, err := l.game.CompleteStart(msg.cards)
				msg.reply <- err
				l.logEvents(events)
				l.commit()

			case timerFired:
				if !l.timer.current(msg.gen) {
					l.log.Debug("dropping stale timer", zap.Stringer("stage", msg.stage))
					break
				}
				events, err := engine.Apply(l.game, engine.Command{Type: engine.CmdTimeoutAdvance, Stage: msg.stage})
				if err != nil {
					l.log.Debug("timer ignored", zap.Stringer("stage", msg.stage), zap.Error(err))
					break
				}
				l.logEvents(events)
				l.commit()

			case GetState:
				// reflect internal state without data races
				v := View{
					Version:    l.version,
					NumClients: len(l.clients),
					LastActive: l.lastActive,
					State:      l.game.Project(""),
				}
				if l.armed != nil {
					s := *l.armed
					v.Armed = &s
				}
				msg.Reply <- v

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// commit publishes a mutation: bump the version, line the timer up with the
// new stage, push snapshots and tell listeners.
func (l *Lobby) commit() {
	l.version++
	l.lastActive = time.Now()
	l.syncTimer()
	l.broadcast()
	if l.notify != nil {
		c := Change{LobbyID: l.game.ID, Version: l.version, Phase: l.game.Phase}
		if l.game.Round != nil {
			c.Round = l.game.Round.Number
		}
		l.notify(c)
	}
}

func (l *Lobby) syncTimer() {
	stage, ok := l.game.Stage()
	if !ok {
		l.timer.stop()
		l.armed = nil
		return
	}
	if l.armed != nil && *l.armed == stage {
		return
	}
	deadline, _ := l.game.Deadline()
	l.armed = &stage
	l.timer.arm(time.Until(deadline), func(gen uint64) {
		_ = l.Post(context.Background(), timerFired{gen: gen, stage: stage})
	})
}

func (l *Lobby) fetchDeck(req engine.DeckRequest, reply chan error) {
	ctx, cancel := context.WithTimeout(l.ctx, l.fetchTimeout)
	defer cancel()
	ctx, span := otel.Tracer("promptparty/lobby").Start(ctx, "lobby.Start")
	span.SetAttributes(
		attribute.String("lobby.id", l.game.ID),
		attribute.Int("deck.count", req.Count),
		attribute.String("deck.theme", string(req.Theme)))
	cards, err := l.provider.Fetch(ctx, req.Count, req.Theme)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deck fetch failed")
	}
	span.End()
	if err := l.Post(context.Background(), deckReady{cards: cards, err: err, reply: reply}); err != nil {
		reply <- err
	}
}

func (l *Lobby) snapshotFor(playerID string) Snapshot {
	return Snapshot{Version: l.version, State: l.game.Project(playerID)}
}

func (l *Lobby) hasClient(playerID string) bool {
	for _, c := range l.clients {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

func (l *Lobby) broadcast() {
	var dropped []string
	for id, c := range l.clients {
		select {
		case c.outbox <- l.snapshotFor(c.playerID):
			//ok
		default:
			// Client is slow/full - drop them.
			close(c.outbox)
			delete(l.clients, id)
			dropped = append(dropped, c.playerID)
		}
	}

	changed := false
	for _, pid := range dropped {
		if !l.hasClient(pid) && l.game.SetConnected(pid, false) {
			changed = true
		}
	}
	if changed {
		l.commit()
	}
}

func (l *Lobby) logEvents(events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtPhaseAdvanced, engine.EvtGameCompleted, engine.EvtRoundScored:
			l.log.Info("round progress",
				zap.String("event", string(e.Type)),
				zap.Int("round", e.Round),
				zap.String("phase", string(e.Phase)))
		default:
			l.log.Debug("game event",
				zap.String("event", string(e.Type)),
				zap.String("player", e.PlayerID),
				zap.Int("round", e.Round))
		}
	}
}

func (l *Lobby) shutdown() {
	l.timer.stop()
	l.armed = nil
	for id, c := range l.clients {
		close(c.outbox) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

// Close stops the lobby without going through the inbox, so it never blocks.
func (l *Lobby) Close() { l.cancel() }

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Post delivers m to the lobby unless it has shut down or ctx ends first.
func (l *Lobby) Post(ctx context.Context, m Msg) error {
	select {
	case l.inbox <- m:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues a player command. Rejections are silent by design of the game:
// the sender simply sees no change.
func (l *Lobby) Send(ctx context.Context, cmd engine.Command) error {
	return l.Post(ctx, FromClient{Cmd: cmd})
}

// Leave marks a player disconnected and closes their connections.
func (l *Lobby) Leave(ctx context.Context, playerID string) error {
	return l.Post(ctx, Leave{PlayerID: playerID})
}

func (l *Lobby) Join(ctx context.Context, req engine.JoinRequest) (engine.JoinResult, error) {
	reply := make(chan engine.JoinResult, 1)
	if err := l.Post(ctx, Join{Req: req, Reply: reply}); err != nil {
		return engine.JoinResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-l.done:
		return engine.JoinResult{}, ErrClosed
	case <-ctx.Done():
		return engine.JoinResult{}, ctx.Err()
	}
}

// Start asks the lobby to start a game and waits until hands are dealt or the
// start is refused.
func (l *Lobby) Start(ctx context.Context, playerID string) error {
	reply := make(chan error, 1)
	if err := l.Post(ctx, Start{PlayerID: playerID, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lobby) Inspect(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := l.Post(ctx, GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
