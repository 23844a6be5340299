package ledger

import (
	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// ─── Student Administration ─────────────────────────────────────────────────

// StudentParams describes a new or updated student.
type StudentParams struct {
	ID        string
	Name      string
	Rank      string
	Group     string
	Timestamp int64
}

// AddStudent enrolls a student into the given group (or the academy default
// when empty) with a zero balance and the group's stone ceiling.
func AddStudent(d domain.AppData, p StudentParams) (domain.AppData, domain.Student, error) {
	if d.FindStudent(p.ID) >= 0 {
		return d, domain.Student{}, domain.ErrStudentExists
	}

	group := p.Group
	if group == "" {
		group = d.Settings.General.DefaultGroup
	}

	st := domain.Student{
		ID:        p.ID,
		Name:      p.Name,
		Rank:      p.Rank,
		Group:     group,
		Stones:    0,
		MaxStones: d.GroupCeiling(group),
		Status:    domain.StudentActive,
		CreatedAt: p.Timestamp,
	}

	students := cloneStudents(d.Students)
	d.Students = append(students, st)
	return d, st, nil
}

// UpdateStudent changes name/rank/group. A group change re-derives the stone
// ceiling and clamps the current balance into the new range.
func UpdateStudent(d domain.AppData, p StudentParams) (domain.AppData, domain.Student, error) {
	i := d.FindStudent(p.ID)
	if i < 0 {
		return d, domain.Student{}, domain.ErrStudentNotFound
	}

	students := cloneStudents(d.Students)
	st := &students[i]

	if p.Name != "" {
		st.Name = p.Name
	}
	if p.Rank != "" {
		st.Rank = p.Rank
	}
	if p.Group != "" && p.Group != st.Group {
		st.Group = p.Group
		st.MaxStones = d.GroupCeiling(p.Group)
		st.Stones = domain.ClampStones(st.Stones, st.MaxStones)
	}

	d.Students = students
	return d, *st, nil
}

// DeleteStudent removes a student from the roster. Their ledger entries and
// match records remain for auditability.
func DeleteStudent(d domain.AppData, id string) (domain.AppData, error) {
	i := d.FindStudent(id)
	if i < 0 {
		return d, domain.ErrStudentNotFound
	}

	students := make([]domain.Student, 0, len(d.Students)-1)
	students = append(students, d.Students[:i]...)
	students = append(students, d.Students[i+1:]...)
	d.Students = students
	return d, nil
}

// ─── Mission Completion ─────────────────────────────────────────────────────

// CompletionParams identifies one mission completion.
type CompletionParams struct {
	CompletionID string
	TxID         string
	MissionID    string
	StudentID    string
	Timestamp    int64
}

// CompleteMission credits the mission reward through the generic transaction
// path (so the balance clamps normally) and records the completion. Event
// missions apply the event reward multiplier.
func CompleteMission(d domain.AppData, p CompletionParams) (domain.AppData, domain.Transaction, error) {
	m, ok := d.FindMission(p.MissionID)
	if !ok {
		return d, domain.Transaction{}, domain.ErrMissionNotFound
	}

	reward := m.Reward
	if mult := d.Settings.Event.Multiplier(); m.Kind == domain.MissionEvent && mult > 1 {
		reward *= mult
	}

	next, tx, err := AddTransaction(d, TxParams{
		ID:          p.TxID,
		StudentID:   p.StudentID,
		Type:        domain.TxMission,
		Description: m.Title,
		Amount:      reward,
		Timestamp:   p.Timestamp,
	})
	if err != nil {
		return d, domain.Transaction{}, err
	}

	completions := make([]domain.MissionCompletion, 0, len(next.MissionCompletions)+1)
	completions = append(completions, next.MissionCompletions...)
	completions = append(completions, domain.MissionCompletion{
		ID:        p.CompletionID,
		MissionID: p.MissionID,
		StudentID: p.StudentID,
		Timestamp: p.Timestamp,
	})
	next.MissionCompletions = completions
	return next, tx, nil
}

// ─── Shop Purchase ──────────────────────────────────────────────────────────

// ShopPurchaseParams resolves one item purchase, optionally with a coupon.
type ShopPurchaseParams struct {
	TxID       string
	StudentID  string
	ItemID     string
	CouponCode string
	Timestamp  int64
}

// PurchaseItem resolves the final cost (price minus any coupon discount,
// floored at zero), debits through the purchase path, decrements stock, and
// consumes the coupon. The whole thing applies or none of it does.
func PurchaseItem(d domain.AppData, p ShopPurchaseParams) (domain.AppData, domain.Transaction, error) {
	ii := -1
	for i := range d.ShopItems {
		if d.ShopItems[i].ID == p.ItemID {
			ii = i
			break
		}
	}
	if ii < 0 {
		return d, domain.Transaction{}, domain.ErrItemNotFound
	}
	if d.ShopItems[ii].Stock == 0 {
		return d, domain.Transaction{}, domain.ErrOutOfStock
	}

	cost := d.ShopItems[ii].Price
	ci := -1
	if p.CouponCode != "" {
		for i := range d.Coupons {
			if d.Coupons[i].Code == p.CouponCode {
				ci = i
				break
			}
		}
		if ci < 0 || d.Coupons[ci].Used {
			return d, domain.Transaction{}, domain.ErrCouponInvalid
		}
		cost -= d.Coupons[ci].Discount
		if cost < 0 {
			cost = 0
		}
	}

	next, tx, err := Purchase(d, PurchaseParams{
		ID:          p.TxID,
		StudentID:   p.StudentID,
		Description: d.ShopItems[ii].Name,
		FinalCost:   cost,
		Timestamp:   p.Timestamp,
	})
	if err != nil {
		return d, domain.Transaction{}, err
	}

	items := make([]domain.ShopItem, len(next.ShopItems))
	copy(items, next.ShopItems)
	if items[ii].Stock > 0 {
		items[ii].Stock--
	}
	next.ShopItems = items

	if ci >= 0 {
		coupons := make([]domain.Coupon, len(next.Coupons))
		copy(coupons, next.Coupons)
		coupons[ci].Used = true
		next.Coupons = coupons
	}
	return next, tx, nil
}

// ─── Gacha ──────────────────────────────────────────────────────────────────

// GachaParams identifies one gacha draw. Roll is a caller-provided value in
// [0, total prize weight) so the mutator stays deterministic.
type GachaParams struct {
	TxID      string
	StudentID string
	Roll      int
	Timestamp int64
}

// TotalGachaWeight sums the prize table weights; the caller rolls against it.
func TotalGachaWeight(d domain.AppData) int {
	total := 0
	for _, p := range d.Gacha.Prizes {
		total += p.Weight
	}
	return total
}

// DrawGacha spends one ticket and credits the rolled prize's stone amount
// through the generic transaction path.
func DrawGacha(d domain.AppData, p GachaParams) (domain.AppData, domain.GachaPrize, domain.Transaction, error) {
	if d.Gacha.Tickets[p.StudentID] <= 0 {
		return d, domain.GachaPrize{}, domain.Transaction{}, domain.ErrNoTickets
	}
	if len(d.Gacha.Prizes) == 0 {
		return d, domain.GachaPrize{}, domain.Transaction{}, domain.ErrNoPrizes
	}

	prize := d.Gacha.Prizes[len(d.Gacha.Prizes)-1]
	roll := p.Roll
	for _, pr := range d.Gacha.Prizes {
		if roll < pr.Weight {
			prize = pr
			break
		}
		roll -= pr.Weight
	}

	next, tx, err := AddTransaction(d, TxParams{
		ID:          p.TxID,
		StudentID:   p.StudentID,
		Type:        domain.TxGacha,
		Description: prize.Name,
		Amount:      prize.Amount,
		Timestamp:   p.Timestamp,
	})
	if err != nil {
		return d, domain.GachaPrize{}, domain.Transaction{}, err
	}

	tickets := make(map[string]int, len(next.Gacha.Tickets))
	for k, v := range next.Gacha.Tickets {
		tickets[k] = v
	}
	tickets[p.StudentID]--
	next.Gacha.Tickets = tickets
	return next, prize, tx, nil
}
