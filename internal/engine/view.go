package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
)

// View is what one viewer is allowed to see of a lobby.
type View struct {
	LobbyID  string       `json:"lobby_id"`
	ViewerID string       `json:"viewer_id,omitempty"`
	Settings Settings     `json:"settings"`
	Players  []PlayerView `json:"players"`
	HostID   string       `json:"host_id"`
	Phase    Phase        `json:"phase"`
	Starting bool         `json:"starting,omitempty"`
	Round    *RoundView   `json:"round,omitempty"`
	Final    []Standing   `json:"final,omitempty"`
}

type PlayerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	IsHost       bool   `json:"is_host"`
	Connected    bool   `json:"connected"`
	Spectator    bool   `json:"spectator"`
	Score        int    `json:"score"`
	HasSubmitted bool   `json:"has_submitted"`
	HasVoted     bool   `json:"has_voted"`
}

type RoundView struct {
	Number      int              `json:"number"`
	TotalRounds int              `json:"total_rounds"`
	Prompt      string           `json:"prompt"`
	Phase       Phase            `json:"phase"`
	Deadline    time.Time        `json:"deadline"`
	Hand        []content.Card   `json:"hand,omitempty"`
	Submission  *content.Card    `json:"submission,omitempty"`
	Submissions []SubmissionView `json:"submissions,omitempty"`
	// Targets are the slot labels the viewer must rank.
	Targets     []string          `json:"targets,omitempty"`
	Vote        []string          `json:"vote,omitempty"`
	Leaderboard []LeaderboardView `json:"leaderboard,omitempty"`
}

// SubmissionView hides PlayerID until voting has closed.
type SubmissionView struct {
	Slot     string       `json:"slot"`
	Card     content.Card `json:"card"`
	PlayerID string       `json:"player_id,omitempty"`
}

type LeaderboardView struct {
	Rank       int          `json:"rank"`
	PlayerID   string       `json:"player_id"`
	Slot       string       `json:"slot"`
	Card       content.Card `json:"card"`
	Points     int          `json:"points"`
	Firsts     int          `json:"firsts"`
	Seconds    int          `json:"seconds"`
	Placements []int        `json:"placements"`
}

type Standing struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name"`
	Avatar   string  `json:"avatar"`
	Score    int     `json:"score"`
	Best     *Moment `json:"best,omitempty"`
}

// Project builds the view for viewer. An empty or unknown viewer gets the
// public view with no hand.
func (g *Game) Project(viewer string) View {
	v := View{
		LobbyID:  g.ID,
		ViewerID: viewer,
		Settings: g.Settings,
		HostID:   g.HostID,
		Phase:    g.Phase,
		Starting: g.starting,
	}

	for _, id := range g.order {
		p := g.Players[id]
		pv := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Avatar:    p.Avatar,
			IsHost:    p.IsHost,
			Connected: p.Connected,
			Spectator: p.Spectator,
			Score:     p.Score,
		}
		if g.Round != nil {
			_, pv.HasSubmitted = g.Round.Submissions[id]
			_, pv.HasVoted = g.Round.Votes[id]
		}
		v.Players = append(v.Players, pv)
	}

	if g.Round != nil {
		v.Round = g.projectRound(viewer)
	}
	if g.Phase == PhaseFinalResults {
		v.Final = g.Standings()
	}
	return v
}

func (g *Game) projectRound(viewer string) *RoundView {
	r := g.Round
	rv := &RoundView{
		Number:      r.Number,
		TotalRounds: g.Settings.Rounds,
		Prompt:      r.Prompt.Text,
		Phase:       g.Phase,
		Deadline:    r.Deadline,
	}
	if p, ok := g.Players[viewer]; ok {
		rv.Hand = slices.Clone(p.Hand)
		if c, ok := r.Submissions[viewer]; ok {
			rv.Submission = &c
		}
	}

	switch g.Phase {
	case PhaseVoting:
		for _, id := range g.slotOrder() {
			if id == viewer {
				continue
			}
			rv.Submissions = append(rv.Submissions, SubmissionView{Slot: r.Slots[id], Card: r.Submissions[id]})
			if p, ok := g.Players[viewer]; ok && !p.Spectator {
				rv.Targets = append(rv.Targets, r.Slots[id])
			}
		}
	case PhaseRoundResults:
		for _, id := range g.slotOrder() {
			rv.Submissions = append(rv.Submissions, SubmissionView{Slot: r.Slots[id], Card: r.Submissions[id], PlayerID: id})
		}
		for _, e := range r.Leaderboard {
			rv.Leaderboard = append(rv.Leaderboard, LeaderboardView{
				Rank:       e.Rank,
				PlayerID:   e.PlayerID,
				Slot:       r.Slots[e.PlayerID],
				Card:       r.Submissions[e.PlayerID],
				Points:     e.Points,
				Firsts:     e.Firsts,
				Seconds:    e.Seconds,
				Placements: slices.Clone(e.Placements),
			})
		}
	}

	if ranking, ok := r.Votes[viewer]; ok {
		for _, id := range ranking {
			rv.Vote = append(rv.Vote, r.Slots[id])
		}
	}
	return rv
}

// slotOrder returns submitters sorted by slot label.
func (g *Game) slotOrder() []string {
	ids := g.submitters()
	slices.SortFunc(ids, func(a, b string) int {
		la, lb := g.Round.Slots[a], g.Round.Slots[b]
		if c := cmp.Compare(len(la), len(lb)); c != 0 {
			return c
		}
		return cmp.Compare(la, lb)
	})
	return ids
}

// Standings ranks active players by cumulative score. Equal scores share a
// rank; join order keeps the listing stable.
func (g *Game) Standings() []Standing {
	var out []Standing
	for _, id := range g.activeIDs() {
		p := g.Players[id]
		s := Standing{PlayerID: id, Name: p.Name, Avatar: p.Avatar, Score: p.Score}
		if p.Best != nil {
			best := *p.Best
			s.Best = &best
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Standing) int { return cmp.Compare(b.Score, a.Score) })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}
