package ledger

import (
	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── Chess Match Recording ──────────────────────────────────────────────────

// MatchParams carries the identity, outcome, and rating configuration for
// one recorded match.
type MatchParams struct {
	ID        string
	WhiteID   string
	BlackID   string
	Result    domain.MatchResult
	KFactor   int
	Baseline  int
	Timestamp int64
}

// playerRating resolves a participant's current rating. Students who have
// never been rated (zero value) and opponents who are not on the roster at
// all start from the baseline. Ratings are unclamped, so a stored negative
// rating is a real rating and is used as-is.
func playerRating(d *domain.AppData, playerID string, baseline int) int {
	if i := d.FindStudent(playerID); i >= 0 && d.Students[i].ChessRating != 0 {
		return d.Students[i].ChessRating
	}
	return baseline
}

// RecordMatch resolves both ratings, runs the Elo update, prepends a match
// record, and updates each roster participant's rating and games-played
// counter. Participants missing from the roster are rated for the match but
// not updated; there is no record to update. Recording never fails: the
// match stands as played.
//
// There is no reversal path: a later contested match does not recompute
// ratings or decrement games played.
func RecordMatch(d domain.AppData, p MatchParams) (domain.AppData, domain.ChessMatch) {
	white := playerRating(&d, p.WhiteID, p.Baseline)
	black := playerRating(&d, p.BlackID, p.Baseline)

	newWhite, newBlack, delta := domain.EloUpdate(white, black, p.Result, p.KFactor)

	match := domain.ChessMatch{
		ID:          p.ID,
		Timestamp:   p.Timestamp,
		WhiteID:     p.WhiteID,
		BlackID:     p.BlackID,
		Result:      p.Result,
		WhiteRating: newWhite,
		BlackRating: newBlack,
		RatingDelta: delta,
		Status:      "active",
	}

	students := cloneStudents(d.Students)
	if i := d.FindStudent(p.WhiteID); i >= 0 {
		students[i].ChessRating = newWhite
		students[i].ChessGames++
	}
	if i := d.FindStudent(p.BlackID); i >= 0 {
		students[i].ChessRating = newBlack
		students[i].ChessGames++
	}

	d.Students = students
	d.ChessMatches = prependMatch(d.ChessMatches, match)
	return d, match
}

func prependMatch(in []domain.ChessMatch, m domain.ChessMatch) []domain.ChessMatch {
	out := make([]domain.ChessMatch, 0, len(in)+1)
	out = append(out, m)
	out = append(out, in...)
	return out
}

// ─── Tournament Pairing ─────────────────────────────────────────────────────

// NextRound pairs active students for the next tournament round: sorted by
// current tournament score, then rating, and paired adjacently. With an odd
// field the lowest-ranked player receives a bye worth a win.
func NextRound(d domain.AppData, winPoints int) (domain.AppData, domain.TournamentRound) {
	type seed struct {
		id     string
		score  int
		rating int
	}

	var seeds []seed
	for _, st := range d.Students {
		if st.Status != domain.StudentActive {
			continue
		}
		seeds = append(seeds, seed{
			id:     st.ID,
			score:  d.Tournament.Scores[st.ID],
			rating: st.ChessRating,
		})
	}

	// Insertion sort by (score desc, rating desc); fields are small.
	for i := 1; i < len(seeds); i++ {
		for j := i; j > 0; j-- {
			a, b := seeds[j-1], seeds[j]
			if b.score > a.score || (b.score == a.score && b.rating > a.rating) {
				seeds[j-1], seeds[j] = b, a
			} else {
				break
			}
		}
	}

	round := domain.TournamentRound{
		Number:   len(d.Tournament.Rounds) + 1,
		Pairings: []domain.Pairing{},
	}
	scores := cloneScores(d.Tournament.Scores)

	for i := 0; i+1 < len(seeds); i += 2 {
		round.Pairings = append(round.Pairings, domain.Pairing{
			WhiteID: seeds[i].id,
			BlackID: seeds[i+1].id,
		})
	}
	if len(seeds)%2 == 1 {
		bye := seeds[len(seeds)-1].id
		round.Pairings = append(round.Pairings, domain.Pairing{WhiteID: bye})
		scores[bye] += winPoints
	}

	rounds := make([]domain.TournamentRound, 0, len(d.Tournament.Rounds)+1)
	rounds = append(rounds, d.Tournament.Rounds...)
	rounds = append(rounds, round)

	d.Tournament.Rounds = rounds
	d.Tournament.Scores = scores
	return d, round
}

// ReportPairing records the result of one board: the pairing is marked,
// tournament scores update, and the game goes through the normal match
// recording path so ratings move.
func ReportPairing(d domain.AppData, roundNumber, board int, result domain.MatchResult, p MatchParams) (domain.AppData, domain.ChessMatch, error) {
	ri := -1
	for i := range d.Tournament.Rounds {
		if d.Tournament.Rounds[i].Number == roundNumber {
			ri = i
			break
		}
	}
	if ri < 0 || board < 0 || board >= len(d.Tournament.Rounds[ri].Pairings) {
		return d, domain.ChessMatch{}, domain.ErrMatchNotFound
	}

	pairing := d.Tournament.Rounds[ri].Pairings[board]
	if pairing.BlackID == "" || pairing.Result != "" {
		return d, domain.ChessMatch{}, domain.ErrMatchNotFound
	}

	p.WhiteID = pairing.WhiteID
	p.BlackID = pairing.BlackID
	p.Result = result
	next, match := RecordMatch(d, p)

	rounds := make([]domain.TournamentRound, len(next.Tournament.Rounds))
	copy(rounds, next.Tournament.Rounds)
	pairings := make([]domain.Pairing, len(rounds[ri].Pairings))
	copy(pairings, rounds[ri].Pairings)
	pairings[board].Result = result
	rounds[ri].Pairings = pairings

	scores := cloneScores(next.Tournament.Scores)
	win := next.Settings.Tournament.Win()
	draw := next.Settings.Tournament.Draw()
	switch result {
	case domain.ResultWhite:
		scores[pairing.WhiteID] += win
	case domain.ResultBlack:
		scores[pairing.BlackID] += win
	case domain.ResultDraw:
		scores[pairing.WhiteID] += draw
		scores[pairing.BlackID] += draw
	}

	next.Tournament.Rounds = rounds
	next.Tournament.Scores = scores
	return next, match, nil
}

func cloneScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
