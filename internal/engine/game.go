// Package engine holds the game rules for one lobby: players, settings, the
// active round and every transition between phases. It does no I/O and runs no
// goroutines; the lobby actor serialises calls into it.
package engine

import (
	"math/rand"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/random"
)

const (
	MaxNameLength = 24
	DefaultName   = "Player"
	DefaultAvatar = "🙂"
)

// Note explains why a join ended up as a spectator.
type Note string

const (
	NoteRequestedSpectator Note = "requested_spectator"
	NoteForcedSpectator    Note = "forced_spectator"
)

// Moment is a scored submission kept for the end-of-game highlights.
type Moment struct {
	Round  int          `json:"round"`
	Card   content.Card `json:"card"`
	Prompt string       `json:"prompt"`
	Points int          `json:"points"`
}

type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Avatar    string         `json:"avatar"`
	IsHost    bool           `json:"is_host"`
	Connected bool           `json:"connected"`
	Spectator bool           `json:"spectator"`
	Score     int            `json:"score"`
	Hand      []content.Card `json:"hand,omitempty"`
	Best      *Moment        `json:"best,omitempty"`
}

// Timings are the fixed phase durations.
type Timings struct {
	Selection time.Duration
	Voting    time.Duration
	Results   time.Duration
}

func DefaultTimings() Timings {
	return Timings{Selection: 60 * time.Second, Voting: 45 * time.Second, Results: 12 * time.Second}
}

// Options carries the collaborators a Game needs. Zero values get production
// defaults.
type Options struct {
	Timings Timings
	Now     func() time.Time
	Seeds   random.Source
	NewID   func() string
}

// Game is the whole state of one lobby.
type Game struct {
	ID       string
	Settings Settings
	HostID   string
	Players  map[string]*Player
	Phase    Phase
	Round    *Round

	// DrawPile holds the undealt remainder of the deck.
	DrawPile    []content.Card
	UsedPrompts map[string]bool

	order      []string
	promptPool []content.Prompt
	poolTheme  content.Theme
	starting   bool

	timings Timings
	now     func() time.Time
	seeds   random.Source
	newID   func() string
	rng     *rand.Rand
}

func NewGame(id string, settings Settings, opts Options) *Game {
	if opts.Timings == (Timings{}) {
		opts.Timings = DefaultTimings()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seeds == nil {
		opts.Seeds = random.CryptoSource()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Game{
		ID:          id,
		Settings:    settings.Sanitize(),
		Players:     make(map[string]*Player),
		Phase:       PhaseLobby,
		UsedPrompts: make(map[string]bool),
		timings:     opts.Timings,
		now:         opts.Now,
		seeds:       opts.Seeds,
		newID:       opts.NewID,
		rng:         random.New(opts.Seeds()),
	}
}

// Order returns player ids in join order.
func (g *Game) Order() []string { return slices.Clone(g.order) }

// Starting reports whether a deck fetch is in flight.
func (g *Game) Starting() bool { return g.starting }

// Stage returns the currently timed stage, if any.
func (g *Game) Stage() (Stage, bool) {
	if g.Round == nil {
		return Stage{}, false
	}
	return Stage{Round: g.Round.Number, Phase: g.Phase}, true
}

// Deadline returns when the current stage times out.
func (g *Game) Deadline() (time.Time, bool) {
	if g.Round == nil || g.Round.Deadline.IsZero() {
		return time.Time{}, false
	}
	return g.Round.Deadline, true
}

func (g *Game) inGame() bool {
	return g.Phase == PhaseSelection || g.Phase == PhaseVoting || g.Phase == PhaseRoundResults
}

// activeIDs returns non-spectator players in join order.
func (g *Game) activeIDs() []string {
	ids := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if !g.Players[id].Spectator {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Game) ActiveCount() int { return len(g.activeIDs()) }

func (g *Game) activePlayer(id string) (*Player, error) {
	p, ok := g.Players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.Spectator {
		return nil, ErrSpectator
	}
	return p, nil
}

type JoinRequest struct {
	ExistingID string
	Name       string
	Avatar     string
	Spectator  bool
}

type JoinResult struct {
	Player    Player
	Spectator bool
	Note      Note
	// Created is false when ExistingID matched a known player.
	Created bool
}

// Join adds a player or, when ExistingID names a known player, returns that
// player untouched.
func (g *Game) Join(req JoinRequest) JoinResult {
	if p, ok := g.Players[req.ExistingID]; ok && req.ExistingID != "" {
		return JoinResult{Player: p.detach(), Spectator: p.Spectator}
	}

	p := &Player{
		ID:        g.newID(),
		Name:      cleanName(req.Name),
		Avatar:    cleanAvatar(req.Avatar),
		Connected: true,
		Spectator: req.Spectator,
	}
	res := JoinResult{Created: true}
	switch {
	case req.Spectator:
		res.Note = NoteRequestedSpectator
	case g.Phase != PhaseLobby && g.ActiveCount() >= g.Settings.MaxPlayers:
		p.Spectator = true
		res.Note = NoteForcedSpectator
	}

	g.Players[p.ID] = p
	g.order = append(g.order, p.ID)

	if !p.Spectator && g.inGame() {
		g.dealLateHand(p)
	}
	g.reassignHost()

	res.Player = p.detach()
	res.Spectator = p.Spectator
	return res
}

// detach copies a player so the copy shares nothing with the live state.
func (p *Player) detach() Player {
	cp := *p
	cp.Hand = slices.Clone(p.Hand)
	if p.Best != nil {
		best := *p.Best
		cp.Best = &best
	}
	return cp
}

// dealLateHand gives a player who joins mid-game enough cards for the rounds
// they can still play, from the draw pile.
func (g *Game) dealLateHand(p *Player) {
	remaining := g.Settings.Rounds - g.Round.Number
	if g.Phase == PhaseSelection {
		remaining++
	}
	p.Hand = g.draw(remaining + 2)
}

// draw takes up to n cards from the tail of the draw pile.
func (g *Game) draw(n int) []content.Card {
	n = max(0, min(n, len(g.DrawPile)))
	cut := len(g.DrawPile) - n
	hand := slices.Clone(g.DrawPile[cut:])
	slices.Reverse(hand)
	g.DrawPile = g.DrawPile[:cut]
	return hand
}

// SetConnected records a player's connection state. It reports whether
// anything changed.
func (g *Game) SetConnected(id string, connected bool) bool {
	p, ok := g.Players[id]
	if !ok || p.Connected == connected {
		return false
	}
	p.Connected = connected
	g.reassignHost()
	return true
}

// reassignHost keeps the host a non-spectator, preferring a connected one.
func (g *Game) reassignHost() {
	eligible := func(id string, needConnected bool) bool {
		p, ok := g.Players[id]
		return ok && !p.Spectator && (p.Connected || !needConnected)
	}

	next := g.HostID
	if !eligible(next, true) {
		next = ""
		for _, id := range g.order {
			if eligible(id, true) {
				next = id
				break
			}
		}
		if next == "" && eligible(g.HostID, false) {
			next = g.HostID
		}
		if next == "" {
			for _, id := range g.order {
				if eligible(id, false) {
					next = id
					break
				}
			}
		}
	}

	g.HostID = next
	for id, p := range g.Players {
		p.IsHost = id == next
	}
}

func (g *Game) updateProfile(id, name, avatar string) ([]Event, error) {
	p, ok := g.Players[id]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	p.Name = cleanName(name)
	p.Avatar = cleanAvatar(avatar)
	return []Event{{Type: EvtProfileUpdated, PlayerID: id}}, nil
}

func (g *Game) updateSettings(id string, s Settings) ([]Event, error) {
	if id == "" || id != g.HostID {
		return nil, ErrNotHost
	}
	if g.Phase != PhaseLobby && g.Phase != PhaseFinalResults {
		return nil, ErrWrongPhase
	}
	// The deck in flight was sized for the current settings.
	if g.starting {
		return nil, ErrAlreadyStarting
	}
	g.Settings = s.Sanitize()
	return []Event{{Type: EvtSettingsUpdated, PlayerID: id}}, nil
}

// PrepareStart validates a start request and marks the game as starting. The
// caller fetches a deck matching the returned request and hands it to
// CompleteStart, or calls AbortStart if the fetch is abandoned.
func (g *Game) PrepareStart(id string) (DeckRequest, error) {
	if _, err := g.activePlayer(id); err != nil {
		return DeckRequest{}, err
	}
	if g.starting {
		return DeckRequest{}, ErrAlreadyStarting
	}
	if g.Phase != PhaseLobby && g.Phase != PhaseFinalResults {
		return DeckRequest{}, ErrWrongPhase
	}
	active := g.ActiveCount()
	if active < MinActivePlayers {
		return DeckRequest{}, ErrNotEnoughPlayers
	}
	g.starting = true
	return DeckRequest{Count: DeckSize(active, g.Settings.Rounds), Theme: g.Settings.Theme}, nil
}

func (g *Game) AbortStart() { g.starting = false }

// CompleteStart resets scores, deals the fetched deck and opens round one.
// A short deck deals short hands.
func (g *Game) CompleteStart(deck []content.Card) ([]Event, error) {
	if !g.starting {
		return nil, ErrWrongPhase
	}
	g.starting = false
	active := g.activeIDs()
	if len(active) < MinActivePlayers {
		return nil, ErrNotEnoughPlayers
	}

	for _, p := range g.Players {
		p.Score = 0
		p.Hand = nil
		p.Best = nil
	}
	g.DrawPile = slices.Clone(deck)
	g.rng.Shuffle(len(g.DrawPile), func(i, j int) {
		g.DrawPile[i], g.DrawPile[j] = g.DrawPile[j], g.DrawPile[i]
	})
	for _, id := range active {
		g.Players[id].Hand = g.draw(HandSize(g.Settings.Rounds))
	}
	if g.poolTheme != g.Settings.Theme {
		g.promptPool = nil
		g.poolTheme = g.Settings.Theme
	}

	return g.beginRound(1), nil
}

// pickPrompt draws an unused prompt, regenerating the pool once it runs dry.
func (g *Game) pickPrompt() content.Prompt {
	if len(g.promptPool) == 0 {
		for _, p := range content.Prompts(g.Settings.Theme) {
			if !g.UsedPrompts[p.ID] {
				g.promptPool = append(g.promptPool, p)
			}
		}
		if len(g.promptPool) == 0 {
			g.promptPool = content.Prompts(g.Settings.Theme)
			for _, p := range g.promptPool {
				delete(g.UsedPrompts, p.ID)
			}
		}
		g.rng.Shuffle(len(g.promptPool), func(i, j int) {
			g.promptPool[i], g.promptPool[j] = g.promptPool[j], g.promptPool[i]
		})
	}
	last := len(g.promptPool) - 1
	p := g.promptPool[last]
	g.promptPool = g.promptPool[:last]
	g.UsedPrompts[p.ID] = true
	return p
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(s) > MaxNameLength {
		s = string([]rune(s)[:MaxNameLength])
	}
	return s
}

func cleanAvatar(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultAvatar
	}
	if utf8.RuneCountInString(s) > 4 {
		s = string([]rune(s)[:4])
	}
	return s
}
