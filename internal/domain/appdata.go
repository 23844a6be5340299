package domain

// ─── Root Document ──────────────────────────────────────────────────────────

// AppData is the root document: one per user/tenant, aggregating every
// mutable collection. A nil collection or zero-valued settings field marks a
// field that was ABSENT from a partially-populated stored document; MergeAppData
// fills every gap so the exposed snapshot is always structurally total.
type AppData struct {
	Students           []Student           `json:"students"`
	Transactions       []Transaction       `json:"transactions"` // newest first
	Missions           []Mission           `json:"missions"`
	SpecialMissions    []Mission           `json:"specialMissions"`
	EventMissions      []Mission           `json:"eventMissions"`
	MissionCompletions []MissionCompletion `json:"missionCompletions"`
	ShopItems          []ShopItem          `json:"shopItems"`
	ShopCategories     []ShopCategory      `json:"shopCategories"`
	ChessMatches       []ChessMatch        `json:"chessMatches"`
	Tournament         TournamentData      `json:"tournament"`
	Coupons            []Coupon            `json:"coupons"`
	Gacha              GachaState          `json:"gacha"`
	Settings           Settings            `json:"settings"`
	UpdatedAt          int64               `json:"_updatedAt,omitempty"` // epoch millis, set on every write
}

// ─── Defaults ───────────────────────────────────────────────────────────────

// Default group tiers. Documents created before group settings existed get
// these ceilings on read.
const (
	GroupBeginner     = "beginner"
	GroupIntermediate = "intermediate"
	GroupAdvanced     = "advanced"
)

// DefaultGroupSettings returns the built-in skill tiers and stone ceilings.
func DefaultGroupSettings() map[string]GroupConfig {
	return map[string]GroupConfig{
		GroupBeginner:     {Name: GroupBeginner, MaxStones: 30},
		GroupIntermediate: {Name: GroupIntermediate, MaxStones: 60},
		GroupAdvanced:     {Name: GroupAdvanced, MaxStones: 100},
	}
}

// DefaultSettings returns a fully-populated Settings value.
func DefaultSettings() Settings {
	return Settings{
		Group: DefaultGroupSettings(),
		General: GeneralSettings{
			AcademyName:  "Stonekeeper Academy",
			DefaultGroup: GroupBeginner,
		},
		Event: EventSettings{
			RewardMultiplier: intPtr(DefaultRewardMultiplier),
		},
		Tournament: TournamentSettings{
			Rounds:     intPtr(DefaultTournamentRounds),
			WinPoints:  intPtr(DefaultWinPoints),
			DrawPoints: intPtr(DefaultDrawPoints),
		},
		Shop: ShopSettings{},
	}
}

// DefaultAppData returns a structurally complete empty document: every
// collection non-nil, every settings sub-object populated.
func DefaultAppData() AppData {
	return AppData{
		Students:           []Student{},
		Transactions:       []Transaction{},
		Missions:           []Mission{},
		SpecialMissions:    []Mission{},
		EventMissions:      []Mission{},
		MissionCompletions: []MissionCompletion{},
		ShopItems:          []ShopItem{},
		ShopCategories:     []ShopCategory{},
		ChessMatches:       []ChessMatch{},
		Tournament:         TournamentData{Rounds: []TournamentRound{}, Scores: map[string]int{}},
		Coupons:            []Coupon{},
		Gacha:              GachaState{Tickets: map[string]int{}, Prizes: []GachaPrize{}},
		Settings:           DefaultSettings(),
	}
}

// ─── Merge ──────────────────────────────────────────────────────────────────

// MergeAppData overlays a partial document onto a fresh default document.
// Top-level collections are replaced wholesale when present (non-nil) and
// defaulted otherwise; settings sub-objects are merged key-by-key with
// defaults filling gaps. Every AppData field is handled here exactly once.
func MergeAppData(partial AppData) AppData {
	out := DefaultAppData()

	if partial.Students != nil {
		out.Students = partial.Students
	}
	if partial.Transactions != nil {
		out.Transactions = partial.Transactions
	}
	if partial.Missions != nil {
		out.Missions = partial.Missions
	}
	if partial.SpecialMissions != nil {
		out.SpecialMissions = partial.SpecialMissions
	}
	if partial.EventMissions != nil {
		out.EventMissions = partial.EventMissions
	}
	if partial.MissionCompletions != nil {
		out.MissionCompletions = partial.MissionCompletions
	}
	if partial.ShopItems != nil {
		out.ShopItems = partial.ShopItems
	}
	if partial.ShopCategories != nil {
		out.ShopCategories = partial.ShopCategories
	}
	if partial.ChessMatches != nil {
		out.ChessMatches = partial.ChessMatches
	}
	if partial.Coupons != nil {
		out.Coupons = partial.Coupons
	}

	if partial.Tournament.Rounds != nil {
		out.Tournament.Rounds = partial.Tournament.Rounds
	}
	if partial.Tournament.Scores != nil {
		out.Tournament.Scores = partial.Tournament.Scores
	}
	if partial.Tournament.Name != "" {
		out.Tournament.Name = partial.Tournament.Name
	}

	if partial.Gacha.Tickets != nil {
		out.Gacha.Tickets = partial.Gacha.Tickets
	}
	if partial.Gacha.Prizes != nil {
		out.Gacha.Prizes = partial.Gacha.Prizes
	}

	out.Settings = mergeSettings(partial.Settings)
	out.UpdatedAt = partial.UpdatedAt
	return out
}

// mergeSettings shallow-merges each settings sub-object key-by-key.
func mergeSettings(partial Settings) Settings {
	out := DefaultSettings()

	if partial.Group != nil {
		out.Group = partial.Group
	}
	if partial.General.AcademyName != "" {
		out.General.AcademyName = partial.General.AcademyName
	}
	if partial.General.DefaultGroup != "" {
		out.General.DefaultGroup = partial.General.DefaultGroup
	}
	if partial.Event.ActiveEvent != "" {
		out.Event.ActiveEvent = partial.Event.ActiveEvent
	}
	if partial.Event.RewardMultiplier != nil {
		out.Event.RewardMultiplier = partial.Event.RewardMultiplier
	}
	if partial.Tournament.Rounds != nil {
		out.Tournament.Rounds = partial.Tournament.Rounds
	}
	if partial.Tournament.WinPoints != nil {
		out.Tournament.WinPoints = partial.Tournament.WinPoints
	}
	if partial.Tournament.DrawPoints != nil {
		out.Tournament.DrawPoints = partial.Tournament.DrawPoints
	}
	if partial.Shop.PurchaseLimit != nil {
		out.Shop.PurchaseLimit = partial.Shop.PurchaseLimit
	}
	return out
}

func intPtr(v int) *int { return &v }

// ─── Lookup Helpers ─────────────────────────────────────────────────────────

// FindStudent returns the index of the student with the given id, or -1.
func (d *AppData) FindStudent(id string) int {
	for i := range d.Students {
		if d.Students[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTransaction returns the index of the transaction with the given id, or -1.
func (d *AppData) FindTransaction(id string) int {
	for i := range d.Transactions {
		if d.Transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// FindMission searches all three mission boards for the given id.
func (d *AppData) FindMission(id string) (Mission, bool) {
	for _, board := range [][]Mission{d.Missions, d.SpecialMissions, d.EventMissions} {
		for _, m := range board {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Mission{}, false
}

// GroupCeiling resolves the stone ceiling for a group name, falling back to
// the built-in default for unknown groups.
func (d *AppData) GroupCeiling(group string) int {
	if g, ok := d.Settings.Group[group]; ok {
		return g.MaxStones
	}
	return DefaultGroupSettings()[GroupBeginner].MaxStones
}

// ClampStones bounds a balance into [0, max].
func ClampStones(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
