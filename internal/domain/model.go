// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the application; it depends on nothing.
//
// JSON tags follow the persisted document shape (camelCase, `_updatedAt`),
// which is fixed: documents written by earlier deployments must keep reading.
package domain

// ─── Student Types ──────────────────────────────────────────────────────────

// StudentStatus marks whether a student is currently enrolled.
type StudentStatus string

const (
	StudentActive   StudentStatus = "active"
	StudentInactive StudentStatus = "inactive"
)

// Student is one enrolled member of the academy.
// Stones is always kept within [0, MaxStones] by the ledger mutators;
// MaxStones is the ceiling of the student's group tier.
type Student struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Rank           string        `json:"rank"`
	Group          string        `json:"group"`
	Stones         int           `json:"stones"`
	MaxStones      int           `json:"maxStones"`
	Status         StudentStatus `json:"status"`
	ChessRating    int           `json:"chessRating,omitempty"`
	ChessGames     int           `json:"chessGames,omitempty"`
	JosekiProgress int           `json:"josekiProgress,omitempty"`
	CreatedAt      int64         `json:"createdAt,omitempty"` // epoch millis
}

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionType is the business reason for a stone movement.
type TransactionType string

const (
	TxManual          TransactionType = "manual"
	TxPurchase        TransactionType = "purchase"
	TxTransfer        TransactionType = "transfer"
	TxChessAttendance TransactionType = "chess-attendance"
	TxAdjustment      TransactionType = "adjustment"
	TxMission         TransactionType = "mission"
	TxGacha           TransactionType = "gacha"
)

// TransactionStatus is the lifecycle state of a ledger entry.
// The only legal transition is active → cancelled.
type TransactionStatus string

const (
	TxActive    TransactionStatus = "active"
	TxCancelled TransactionStatus = "cancelled"
)

// Transaction is one immutable ledger entry. Amount is signed; the balance
// snapshot pair is captured at creation time and never recomputed.
type Transaction struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"studentId"`
	Type               TransactionType   `json:"type"`
	Description        string            `json:"description"`
	Amount             int               `json:"amount"`
	Timestamp          int64             `json:"timestamp"` // epoch millis
	Status             TransactionStatus `json:"status"`
	StoneBalanceBefore int               `json:"stoneBalanceBefore"`
	StoneBalanceAfter  int               `json:"stoneBalanceAfter"`
	LinkedID           string            `json:"linkedId,omitempty"` // pairs the two sides of a transfer
}

// ─── Chess Types ────────────────────────────────────────────────────────────

// MatchResult is the outcome of a chess match from white's perspective.
type MatchResult string

const (
	ResultWhite MatchResult = "white"
	ResultBlack MatchResult = "black"
	ResultDraw  MatchResult = "draw"
)

// ChessMatch records one rated match. Ratings stored here are the ratings
// AFTER the match; they are never retroactively recomputed.
type ChessMatch struct {
	ID          string      `json:"id"`
	Timestamp   int64       `json:"timestamp"`
	WhiteID     string      `json:"whiteId"`
	BlackID     string      `json:"blackId"`
	Result      MatchResult `json:"result"`
	WhiteRating int         `json:"whiteRating"`
	BlackRating int         `json:"blackRating"`
	RatingDelta int         `json:"ratingDelta"` // delta applied to white; black gets the negation
	Status      string      `json:"status"`
}

// ─── Mission Types ──────────────────────────────────────────────────────────

// MissionKind distinguishes the three mission boards.
type MissionKind string

const (
	MissionRegular MissionKind = "regular"
	MissionSpecial MissionKind = "special"
	MissionEvent   MissionKind = "event"
)

// Mission is a task a student can complete for a stone reward.
type Mission struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Reward      int         `json:"reward"`
	Kind        MissionKind `json:"kind"`
}

// MissionCompletion records one student finishing one mission.
type MissionCompletion struct {
	ID        string `json:"id"`
	MissionID string `json:"missionId"`
	StudentID string `json:"studentId"`
	Timestamp int64  `json:"timestamp"`
}

// ─── Shop Types ─────────────────────────────────────────────────────────────

// ShopItem is a purchasable reward. Stock < 0 means unlimited.
type ShopItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Stock      int    `json:"stock"`
	CategoryID string `json:"categoryId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ShopCategory groups shop items for display.
type ShopCategory struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Coupon reduces the cost of a purchase by a flat amount. Single use.
type Coupon struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Discount int    `json:"discount"`
	Used     bool   `json:"used"`
}

// ─── Gacha Types ────────────────────────────────────────────────────────────

// GachaPrize is one entry in the prize table.
type GachaPrize struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount int    `json:"amount"` // stones credited when drawn
	Weight int    `json:"weight"`
}

// GachaState holds per-student ticket counts and the prize table.
type GachaState struct {
	Tickets map[string]int `json:"tickets"`
	Prizes  []GachaPrize   `json:"prizes"`
}

// ─── Tournament Types ───────────────────────────────────────────────────────

// Pairing is one board in a tournament round. Result is empty until reported.
type Pairing struct {
	WhiteID string      `json:"whiteId"`
	BlackID string      `json:"blackId"` // empty for a bye
	Result  MatchResult `json:"result,omitempty"`
}

// TournamentRound is one generated round of pairings.
type TournamentRound struct {
	Number   int       `json:"number"`
	Pairings []Pairing `json:"pairings"`
}

// TournamentData holds the current tournament's rounds and per-player scores.
type TournamentData struct {
	Name   string            `json:"name,omitempty"`
	Rounds []TournamentRound `json:"rounds"`
	Scores map[string]int    `json:"scores"` // player id → points
}

// ─── Settings Types ─────────────────────────────────────────────────────────

// GroupConfig defines the stone ceiling for one skill tier.
type GroupConfig struct {
	Name      string `json:"name"`
	MaxStones int    `json:"maxStones"`
}

// GeneralSettings are academy-wide knobs.
type GeneralSettings struct {
	AcademyName  string `json:"academyName"`
	DefaultGroup string `json:"defaultGroup"`
}

// Settings values applied when a numeric key is absent from the document.
const (
	DefaultRewardMultiplier = 1
	DefaultTournamentRounds = 3
	DefaultWinPoints        = 2
	DefaultDrawPoints       = 1
)

// Numeric settings fields are pointers: a stored zero is data and must
// survive a merge, while nil means the key was never written.

// EventSettings control the currently running event board.
type EventSettings struct {
	ActiveEvent      string `json:"activeEvent"`
	RewardMultiplier *int   `json:"rewardMultiplier,omitempty"`
}

// Multiplier resolves the reward multiplier, falling back to the default.
func (e EventSettings) Multiplier() int {
	if e.RewardMultiplier == nil {
		return DefaultRewardMultiplier
	}
	return *e.RewardMultiplier
}

// TournamentSettings control round generation and scoring.
type TournamentSettings struct {
	Rounds     *int `json:"rounds,omitempty"`
	WinPoints  *int `json:"winPoints,omitempty"`
	DrawPoints *int `json:"drawPoints,omitempty"`
}

// RoundCount resolves the planned number of rounds.
func (t TournamentSettings) RoundCount() int {
	if t.Rounds == nil {
		return DefaultTournamentRounds
	}
	return *t.Rounds
}

// Win resolves the points awarded for a win.
func (t TournamentSettings) Win() int {
	if t.WinPoints == nil {
		return DefaultWinPoints
	}
	return *t.WinPoints
}

// Draw resolves the points awarded for a draw.
func (t TournamentSettings) Draw() int {
	if t.DrawPoints == nil {
		return DefaultDrawPoints
	}
	return *t.DrawPoints
}

// ShopSettings control purchase behavior.
type ShopSettings struct {
	PurchaseLimit *int `json:"purchaseLimit,omitempty"` // max items per purchase call, 0 or absent = unlimited
}

// Limit resolves the per-purchase item limit, 0 meaning unlimited.
func (s ShopSettings) Limit() int {
	if s.PurchaseLimit == nil {
		return 0
	}
	return *s.PurchaseLimit
}

// Settings aggregates every settings sub-object.
type Settings struct {
	Group      map[string]GroupConfig `json:"group"`
	General    GeneralSettings        `json:"general"`
	Event      EventSettings          `json:"event"`
	Tournament TournamentSettings     `json:"tournament"`
	Shop       ShopSettings           `json:"shop"`
}
