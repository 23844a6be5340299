package ledger

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/observability"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

// ─── Live Events ────────────────────────────────────────────────────────────

// Event is one stone movement, published to the live ledger feed.
type Event struct {
	Type        string `json:"type"` // transaction type, or "match"
	StudentID   string `json:"studentId"`
	Amount      int    `json:"amount"`
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// ─── Service ────────────────────────────────────────────────────────────────

// Service applies ledger mutators through the synchronized store's single
// apply point and owns the non-deterministic inputs (ids, clock, dice) so
// the mutators themselves stay pure.
type Service struct {
	store    *store.Store
	kFactor  int
	baseline int
	now      func() time.Time
	newID    func() string
	intn     func(int) int
	notify   func(Event)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithChessConfig overrides the Elo K-factor and baseline rating.
func WithChessConfig(kFactor, baseline int) ServiceOption {
	return func(s *Service) {
		s.kFactor = kFactor
		s.baseline = baseline
	}
}

// WithClock injects the clock (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDs injects the id generator (tests).
func WithIDs(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

// WithSeed makes gacha rolls reproducible.
func WithSeed(seed int64) ServiceOption {
	return func(s *Service) { s.intn = rand.New(rand.NewSource(seed)).Intn }
}

// WithNotify registers the live-event sink (the SSE hub).
func WithNotify(notify func(Event)) ServiceOption {
	return func(s *Service) { s.notify = notify }
}

// NewService creates the ledger service on top of a bound store.
func NewService(st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    st,
		kFactor:  domain.DefaultKFactor,
		baseline: domain.BaselineRating,
		now:      time.Now,
		newID:    uuid.NewString,
		intn:     rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// apply runs one mutator through the store. The closure never lets an error
// escape the apply boundary: on failure the previous snapshot is returned
// unchanged and the error surfaces here, for the HTTP layer only.
func (s *Service) apply(kind string, fn func(domain.AppData) (domain.AppData, error)) error {
	var ferr error
	_, applied := s.store.Apply(func(d domain.AppData) domain.AppData {
		next, err := fn(d)
		if err != nil {
			ferr = err
			return d
		}
		return next
	})
	if !applied && ferr == nil {
		ferr = store.ErrNotLive
	}

	outcome := "ok"
	if ferr != nil {
		outcome = "error"
	}
	observability.MutationsTotal.WithLabelValues(kind, outcome).Inc()
	return ferr
}

func (s *Service) emit(e Event) {
	if s.notify != nil {
		s.notify(e)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// Credit applies a generic signed credit/debit to a student.
func (s *Service) Credit(studentID string, amount int, txType domain.TransactionType, description string) (domain.Transaction, error) {
	if txType == "" {
		txType = domain.TxManual
	}
	p := TxParams{
		ID:          s.newID(),
		StudentID:   studentID,
		Type:        txType,
		Description: description,
		Amount:      amount,
		Timestamp:   s.now().UnixMilli(),
	}

	var tx domain.Transaction
	err := s.apply("credit", func(d domain.AppData) (domain.AppData, error) {
		next, created, err := AddTransaction(d, p)
		tx = created
		return next, err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	observability.StonesMoved.WithLabelValues("credit").Add(float64(abs(amount)))
	s.emit(Event{Type: string(txType), StudentID: studentID, Amount: amount, Description: description, Timestamp: p.Timestamp})
	return tx, nil
}

// Cancel flips an active transaction to cancelled and reverses its balance
// effect.
func (s *Service) Cancel(txID string) error {
	return s.apply("cancel", func(d domain.AppData) (domain.AppData, error) {
		return CancelTransaction(d, txID)
	})
}

// Delete removes a ledger entry without touching any balance.
func (s *Service) Delete(txID string) error {
	return s.apply("delete", func(d domain.AppData) (domain.AppData, error) {
		return DeleteTransaction(d, txID)
	})
}

// Transfer moves stones between two students.
func (s *Service) Transfer(fromID, toID string, amount int) error {
	p := TransferParams{
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		OutTxID:   s.newID(),
		InTxID:    s.newID(),
		Timestamp: s.now().UnixMilli(),
	}
	err := s.apply("transfer", func(d domain.AppData) (domain.AppData, error) {
		return Transfer(d, p)
	})
	if err != nil {
		return err
	}

	observability.StonesMoved.WithLabelValues("transfer").Add(float64(amount))
	s.emit(Event{Type: string(domain.TxTransfer), StudentID: fromID, Amount: -amount, Timestamp: p.Timestamp})
	return nil
}

// PurchaseItem buys one shop item, optionally applying a coupon.
func (s *Service) PurchaseItem(studentID, itemID, couponCode string) (domain.Transaction, error) {
	p := ShopPurchaseParams{
		TxID:       s.newID(),
		StudentID:  studentID,
		ItemID:     itemID,
		CouponCode: couponCode,
		Timestamp:  s.now().UnixMilli(),
	}

	var tx domain.Transaction
	err := s.apply("purchase", func(d domain.AppData) (domain.AppData, error) {
		next, created, err := PurchaseItem(d, p)
		tx = created
		return next, err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	observability.StonesMoved.WithLabelValues("purchase").Add(float64(abs(tx.Amount)))
	s.emit(Event{Type: string(domain.TxPurchase), StudentID: studentID, Amount: tx.Amount, Description: tx.Description, Timestamp: p.Timestamp})
	return tx, nil
}

// ─── Chess Operations ───────────────────────────────────────────────────────

// RecordMatch records a rated match between two players.
func (s *Service) RecordMatch(whiteID, blackID string, result domain.MatchResult) (domain.ChessMatch, error) {
	p := MatchParams{
		ID:        s.newID(),
		WhiteID:   whiteID,
		BlackID:   blackID,
		Result:    result,
		KFactor:   s.kFactor,
		Baseline:  s.baseline,
		Timestamp: s.now().UnixMilli(),
	}

	var match domain.ChessMatch
	err := s.apply("match", func(d domain.AppData) (domain.AppData, error) {
		next, m := RecordMatch(d, p)
		match = m
		return next, nil
	})
	if err != nil {
		return domain.ChessMatch{}, err
	}

	s.emit(Event{Type: "match", StudentID: whiteID, Amount: match.RatingDelta, Timestamp: p.Timestamp})
	return match, nil
}

// NextTournamentRound generates pairings for the next round.
func (s *Service) NextTournamentRound() (domain.TournamentRound, error) {
	var round domain.TournamentRound
	err := s.apply("tournament_round", func(d domain.AppData) (domain.AppData, error) {
		next, r := NextRound(d, d.Settings.Tournament.Win())
		round = r
		return next, nil
	})
	return round, err
}

// ReportPairing records the result of one tournament board.
func (s *Service) ReportPairing(roundNumber, board int, result domain.MatchResult) (domain.ChessMatch, error) {
	p := MatchParams{
		ID:        s.newID(),
		KFactor:   s.kFactor,
		Baseline:  s.baseline,
		Timestamp: s.now().UnixMilli(),
	}

	var match domain.ChessMatch
	err := s.apply("tournament_result", func(d domain.AppData) (domain.AppData, error) {
		next, m, err := ReportPairing(d, roundNumber, board, result, p)
		match = m
		return next, err
	})
	if err != nil {
		return domain.ChessMatch{}, err
	}
	return match, nil
}

// ─── Academy Operations ─────────────────────────────────────────────────────

// AddStudent enrolls a new student.
func (s *Service) AddStudent(name, rank, group string) (domain.Student, error) {
	p := StudentParams{
		ID:        s.newID(),
		Name:      name,
		Rank:      rank,
		Group:     group,
		Timestamp: s.now().UnixMilli(),
	}

	var st domain.Student
	err := s.apply("student_add", func(d domain.AppData) (domain.AppData, error) {
		next, created, err := AddStudent(d, p)
		st = created
		return next, err
	})
	if err != nil {
		return domain.Student{}, err
	}
	return st, nil
}

// UpdateStudent changes a student's name, rank, or group.
func (s *Service) UpdateStudent(id, name, rank, group string) (domain.Student, error) {
	p := StudentParams{ID: id, Name: name, Rank: rank, Group: group}

	var st domain.Student
	err := s.apply("student_update", func(d domain.AppData) (domain.AppData, error) {
		next, updated, err := UpdateStudent(d, p)
		st = updated
		return next, err
	})
	if err != nil {
		return domain.Student{}, err
	}
	return st, nil
}

// DeleteStudent removes a student from the roster.
func (s *Service) DeleteStudent(id string) error {
	return s.apply("student_delete", func(d domain.AppData) (domain.AppData, error) {
		return DeleteStudent(d, id)
	})
}

// CompleteMission credits a mission reward and records the completion.
func (s *Service) CompleteMission(studentID, missionID string) (domain.Transaction, error) {
	p := CompletionParams{
		CompletionID: s.newID(),
		TxID:         s.newID(),
		MissionID:    missionID,
		StudentID:    studentID,
		Timestamp:    s.now().UnixMilli(),
	}

	var tx domain.Transaction
	err := s.apply("mission", func(d domain.AppData) (domain.AppData, error) {
		next, created, err := CompleteMission(d, p)
		tx = created
		return next, err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.emit(Event{Type: string(domain.TxMission), StudentID: studentID, Amount: tx.Amount, Description: tx.Description, Timestamp: p.Timestamp})
	return tx, nil
}

// DrawGacha spends one ticket and credits the drawn prize.
func (s *Service) DrawGacha(studentID string) (domain.GachaPrize, domain.Transaction, error) {
	var prize domain.GachaPrize
	var tx domain.Transaction
	err := s.apply("gacha", func(d domain.AppData) (domain.AppData, error) {
		total := TotalGachaWeight(d)
		roll := 0
		if total > 0 {
			roll = s.intn(total)
		}
		next, pr, created, err := DrawGacha(d, GachaParams{
			TxID:      s.newID(),
			StudentID: studentID,
			Roll:      roll,
			Timestamp: s.now().UnixMilli(),
		})
		prize, tx = pr, created
		return next, err
	})
	if err != nil {
		return domain.GachaPrize{}, domain.Transaction{}, err
	}

	s.emit(Event{Type: string(domain.TxGacha), StudentID: studentID, Amount: tx.Amount, Description: prize.Name, Timestamp: tx.Timestamp})
	return prize, tx, nil
}

// ─── Read Models ────────────────────────────────────────────────────────────

// Snapshot exposes the current snapshot and session status.
func (s *Service) Snapshot() (domain.AppData, store.Status) {
	return s.store.Snapshot()
}

// TransactionsFor returns a student's ledger entries, newest first.
func (s *Service) TransactionsFor(studentID string) []domain.Transaction {
	d, _ := s.store.Snapshot()
	var out []domain.Transaction
	for _, tx := range d.Transactions {
		if studentID == "" || tx.StudentID == studentID {
			out = append(out, tx)
		}
	}
	return out
}

// LeaderboardEntry is one row of the stones leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	StudentID   string `json:"studentId"`
	Name        string `json:"name"`
	Stones      int    `json:"stones"`
	ChessRating int    `json:"chessRating,omitempty"`
}

// Leaderboard ranks active students by stones, ties broken by chess rating.
func (s *Service) Leaderboard() []LeaderboardEntry {
	d, _ := s.store.Snapshot()

	var rows []LeaderboardEntry
	for _, st := range d.Students {
		if st.Status != domain.StudentActive {
			continue
		}
		rows = append(rows, LeaderboardEntry{
			StudentID:   st.ID,
			Name:        st.Name,
			Stones:      st.Stones,
			ChessRating: st.ChessRating,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Stones != rows[j].Stones {
			return rows[i].Stones > rows[j].Stones
		}
		return rows[i].ChessRating > rows[j].ChessRating
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
