package engine

import (
	"math/rand"
	"slices"
	"time"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/random"
	"github.com/DoyleJ11/promptparty-backend/internal/scoring"
)

type Round struct {
	Number int
	Prompt content.Prompt
	// Submissions maps player id to the card they played.
	Submissions map[string]content.Card
	// Slots maps player id to the anonymous label shown during voting.
	Slots map[string]string
	// Votes maps voter id to their ranking of player ids.
	Votes    map[string][]string
	Deadline time.Time
	// Seed drives every random choice of the round, including the
	// leaderboard tie-break.
	Seed        int64
	Leaderboard []scoring.Entry

	rng *rand.Rand
}

// SlotOwner returns the player behind a slot label.
func (r *Round) SlotOwner(label string) (string, bool) {
	for id, l := range r.Slots {
		if l == label {
			return id, true
		}
	}
	return "", false
}

func (g *Game) beginRound(n int) []Event {
	seed := g.seeds()
	g.Round = &Round{
		Number:      n,
		Prompt:      g.pickPrompt(),
		Submissions: make(map[string]content.Card),
		Slots:       make(map[string]string),
		Votes:       make(map[string][]string),
		Seed:        seed,
		rng:         random.New(seed),
	}
	g.Phase = PhaseSelection
	g.Round.Deadline = g.now().Add(g.timings.Selection)

	events := []Event{{Type: EvtPhaseAdvanced, Round: n, Phase: PhaseSelection}}
	if g.selectionComplete() {
		events = append(events, g.closeSelection()...)
	}
	return events
}

// expectedSubmitters are active players who have submitted or still can.
func (g *Game) expectedSubmitters() []string {
	var ids []string
	for _, id := range g.activeIDs() {
		if _, done := g.Round.Submissions[id]; done || len(g.Players[id].Hand) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Game) selectionComplete() bool {
	for _, id := range g.expectedSubmitters() {
		if _, ok := g.Round.Submissions[id]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) submitCard(id, cardID string) ([]Event, error) {
	p, err := g.activePlayer(id)
	if err != nil {
		return nil, err
	}
	if g.Phase != PhaseSelection {
		return nil, ErrWrongPhase
	}
	if _, done := g.Round.Submissions[id]; done {
		return nil, ErrAlreadySubmitted
	}
	idx := slices.IndexFunc(p.Hand, func(c content.Card) bool { return c.ID == cardID })
	if idx < 0 {
		return nil, ErrCardNotInHand
	}

	g.playCard(p, idx)
	events := []Event{{Type: EvtCardSubmitted, PlayerID: id, Round: g.Round.Number}}
	if g.selectionComplete() {
		events = append(events, g.closeSelection()...)
	}
	return events, nil
}

func (g *Game) playCard(p *Player, idx int) {
	g.Round.Submissions[p.ID] = p.Hand[idx]
	p.Hand = slices.Delete(p.Hand, idx, idx+1)
}

// closeSelection auto-submits for stragglers, labels the submissions and
// opens voting.
func (g *Game) closeSelection() []Event {
	r := g.Round
	var events []Event
	for _, id := range g.activeIDs() {
		p := g.Players[id]
		if _, done := r.Submissions[id]; done || len(p.Hand) == 0 {
			continue
		}
		g.playCard(p, r.rng.Intn(len(p.Hand)))
		events = append(events, Event{Type: EvtAutoSubmitted, PlayerID: id, Round: r.Number})
	}

	submitters := g.submitters()
	for i, j := range r.rng.Perm(len(submitters)) {
		r.Slots[submitters[j]] = slotLabel(i)
	}

	g.Phase = PhaseVoting
	r.Deadline = g.now().Add(g.timings.Voting)
	events = append(events, Event{Type: EvtPhaseAdvanced, Round: r.Number, Phase: PhaseVoting})
	if g.votingComplete() {
		events = append(events, g.closeVoting()...)
	}
	return events
}

func slotLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return string(rune('A'+i/26-1)) + string(rune('A'+i%26))
}

// submitters returns ids with a submission this round, in join order.
func (g *Game) submitters() []string {
	var ids []string
	for _, id := range g.order {
		if _, ok := g.Round.Submissions[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// targets returns the submissions a voter must rank: everyone's but their own.
func (g *Game) targets(voter string) []string {
	return slices.DeleteFunc(g.submitters(), func(id string) bool { return id == voter })
}

// expectedVoters are active players with at least one submission to rank.
func (g *Game) expectedVoters() []string {
	var ids []string
	for _, id := range g.activeIDs() {
		if len(g.targets(id)) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Game) votingComplete() bool {
	for _, id := range g.expectedVoters() {
		if _, ok := g.Round.Votes[id]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) resolveSlots(labels []string) ([]string, bool) {
	if g.Round == nil {
		return nil, false
	}
	ranking := make([]string, 0, len(labels))
	for _, l := range labels {
		id, ok := g.Round.SlotOwner(l)
		if !ok {
			return nil, false
		}
		ranking = append(ranking, id)
	}
	return ranking, true
}

// validRanking reports whether ranking is a permutation of want.
func validRanking(ranking, want []string) bool {
	if len(ranking) != len(want) {
		return false
	}
	a, b := slices.Clone(ranking), slices.Clone(want)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func (g *Game) submitVote(id string, ranking []string) ([]Event, error) {
	if _, err := g.activePlayer(id); err != nil {
		return nil, err
	}
	if g.Phase != PhaseVoting {
		return nil, ErrWrongPhase
	}
	if _, done := g.Round.Votes[id]; done {
		return nil, ErrAlreadySubmitted
	}
	targets := g.targets(id)
	if len(targets) == 0 || !validRanking(ranking, targets) {
		return nil, ErrInvalidVote
	}

	g.Round.Votes[id] = slices.Clone(ranking)
	events := []Event{{Type: EvtVoteSubmitted, PlayerID: id, Round: g.Round.Number}}
	if g.votingComplete() {
		events = append(events, g.closeVoting()...)
	}
	return events, nil
}

// closeVoting auto-votes for stragglers, scores the round and shows results.
func (g *Game) closeVoting() []Event {
	r := g.Round
	var events []Event
	for _, id := range g.expectedVoters() {
		if _, done := r.Votes[id]; done {
			continue
		}
		targets := g.targets(id)
		ranking := make([]string, len(targets))
		for i, j := range r.rng.Perm(len(targets)) {
			ranking[i] = targets[j]
		}
		r.Votes[id] = ranking
		events = append(events, Event{Type: EvtAutoVoted, PlayerID: id, Round: r.Number})
	}

	r.Leaderboard = scoring.Tally(g.submitters(), r.Votes, r.Seed)
	for _, e := range r.Leaderboard {
		p := g.Players[e.PlayerID]
		p.Score += e.Points
		if p.Best == nil || e.Points > p.Best.Points {
			p.Best = &Moment{Round: r.Number, Card: r.Submissions[e.PlayerID], Prompt: r.Prompt.Text, Points: e.Points}
		}
	}
	events = append(events, Event{Type: EvtRoundScored, Round: r.Number})

	g.Phase = PhaseRoundResults
	r.Deadline = g.now().Add(g.timings.Results)
	events = append(events, Event{Type: EvtPhaseAdvanced, Round: r.Number, Phase: PhaseRoundResults})
	return events
}

func (g *Game) closeResults() []Event {
	n := g.Round.Number
	if n >= g.Settings.Rounds {
		g.Phase = PhaseFinalResults
		g.Round = nil
		return []Event{{Type: EvtGameCompleted, Round: n, Phase: PhaseFinalResults}}
	}
	return g.beginRound(n + 1)
}

// timeout closes the given stage if it is still the current one.
func (g *Game) timeout(s Stage) ([]Event, error) {
	cur, ok := g.Stage()
	if !ok || cur != s {
		return nil, ErrStaleTimer
	}
	switch g.Phase {
	case PhaseSelection:
		return g.closeSelection(), nil
	case PhaseVoting:
		return g.closeVoting(), nil
	case PhaseRoundResults:
		return g.closeResults(), nil
	default:
		return nil, ErrWrongPhase
	}
}
