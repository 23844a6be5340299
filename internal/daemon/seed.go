package daemon

import (
	"time"

	"github.com/google/uuid"

	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

// Seed writes a demo academy into the bound session. It refuses to overwrite
// an existing roster unless force is set. Returns whether anything was
// written.
func (d *Daemon) Seed(force bool) (bool, error) {
	snap, status := d.store.Snapshot()
	if status != store.StatusLive {
		return false, store.ErrNotLive
	}
	if len(snap.Students) > 0 && !force {
		return false, nil
	}

	if _, ok := d.store.Set(demoAcademy()); !ok {
		return false, store.ErrNotLive
	}
	d.store.Flush()
	return true, nil
}

// demoAcademy builds a small, fully-populated document.
func demoAcademy() domain.AppData {
	now := time.Now().UnixMilli()
	doc := domain.DefaultAppData()

	student := func(name, rank, group string, stones, rating int) domain.Student {
		return domain.Student{
			ID:          uuid.NewString(),
			Name:        name,
			Rank:        rank,
			Group:       group,
			Stones:      stones,
			MaxStones:   domain.DefaultGroupSettings()[group].MaxStones,
			Status:      domain.StudentActive,
			ChessRating: rating,
			CreatedAt:   now,
		}
	}

	doc.Students = []domain.Student{
		student("Haruki Tanaka", "15k", domain.GroupBeginner, 12, 0),
		student("Mina Okabe", "9k", domain.GroupIntermediate, 34, 1240),
		student("Leo Park", "7k", domain.GroupIntermediate, 18, 1180),
		student("Sora Fujii", "2k", domain.GroupAdvanced, 61, 1420),
	}

	doc.Missions = []domain.Mission{
		{ID: uuid.NewString(), Title: "Solve 10 tsumego", Reward: 3, Kind: domain.MissionRegular},
		{ID: uuid.NewString(), Title: "Win a rated match", Reward: 5, Kind: domain.MissionRegular},
		{ID: uuid.NewString(), Title: "Teach a beginner", Reward: 8, Kind: domain.MissionSpecial},
		{ID: uuid.NewString(), Title: "Event blitz round", Reward: 4, Kind: domain.MissionEvent},
	}

	doc.ShopItems = []domain.ShopItem{
		{ID: uuid.NewString(), Name: "Folding fan", Price: 15, Stock: 3},
		{ID: uuid.NewString(), Name: "Joseki booklet", Price: 25, Stock: 5},
		{ID: uuid.NewString(), Name: "Snack voucher", Price: 8, Stock: -1},
	}

	doc.Coupons = []domain.Coupon{
		{ID: uuid.NewString(), Code: "WELCOME", Discount: 5},
	}

	doc.Gacha = domain.GachaState{
		Tickets: map[string]int{doc.Students[0].ID: 2, doc.Students[1].ID: 1},
		Prizes: []domain.GachaPrize{
			{ID: uuid.NewString(), Name: "Jackpot", Amount: 20, Weight: 1},
			{ID: uuid.NewString(), Name: "Nice pull", Amount: 5, Weight: 4},
			{ID: uuid.NewString(), Name: "One stone", Amount: 1, Weight: 15},
		},
	}

	return doc
}
