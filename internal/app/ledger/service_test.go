package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

// seqIDs returns an id generator producing id-1, id-2, ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock() func() time.Time {
	at := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return at }
}

func waitLive(t *testing.T, st *store.Store) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st.Status() == store.StatusLive {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("session never reached live")
}

// newLiveService binds a store over an in-memory backend seeded with doc and
// waits for the session to go live.
func newLiveService(t *testing.T, doc domain.AppData, opts ...ServiceOption) (*Service, *store.Store) {
	t.Helper()
	mem := docstore.NewMemory()
	if err := mem.Replace(context.Background(), "coach", doc); err != nil {
		t.Fatal(err)
	}

	st := store.New(mem, store.WithDebounce(20*time.Millisecond))
	if err := st.Bind(context.Background(), "coach"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	waitLive(t, st)

	opts = append([]ServiceOption{WithIDs(seqIDs()), WithClock(fixedClock())}, opts...)
	return NewService(st, opts...), st
}

func TestService_Credit(t *testing.T) {
	svc, _ := newLiveService(t, baseData())

	tx, err := svc.Credit("s1", 100, "", "weekly attendance")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if tx.ID != "id-1" || tx.Type != domain.TxManual {
		t.Errorf("tx = {id:%s type:%s}, want {id-1 manual}", tx.ID, tx.Type)
	}
	if tx.StoneBalanceAfter != 60 {
		t.Errorf("after = %d, want clamped 60", tx.StoneBalanceAfter)
	}

	d, status := svc.Snapshot()
	if status != store.StatusLive {
		t.Fatalf("status = %v, want live", status)
	}
	if d.Students[0].Stones != 60 {
		t.Errorf("snapshot stones = %d, want 60", d.Students[0].Stones)
	}
}

func TestService_CreditRejectedBeforeLive(t *testing.T) {
	st := store.New(docstore.NewMemory())
	svc := NewService(st)

	if _, err := svc.Credit("s1", 5, "", ""); err != store.ErrNotLive {
		t.Errorf("err = %v, want ErrNotLive", err)
	}
}

func TestService_CancelAndDelete(t *testing.T) {
	svc, _ := newLiveService(t, baseData())

	tx, err := svc.Credit("s1", 20, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Cancel(tx.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	d, _ := svc.Snapshot()
	if d.Students[0].Stones != 10 {
		t.Errorf("stones after cancel = %d, want 10", d.Students[0].Stones)
	}

	if err := svc.Delete(tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	d, _ = svc.Snapshot()
	if len(d.Transactions) != 0 {
		t.Error("record not deleted")
	}
	if d.Students[0].Stones != 10 {
		t.Error("delete adjusted a balance")
	}
}

func TestService_Transfer(t *testing.T) {
	svc, _ := newLiveService(t, baseData())

	if err := svc.Transfer("s2", "s1", 5); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	d, _ := svc.Snapshot()
	if d.Students[0].Stones != 15 || d.Students[1].Stones != 15 {
		t.Errorf("balances = %d/%d, want 15/15", d.Students[0].Stones, d.Students[1].Stones)
	}

	if err := svc.Transfer("s2", "s1", 999); err != domain.ErrInsufficientStones {
		t.Errorf("err = %v, want ErrInsufficientStones", err)
	}
}

func TestService_RecordMatch(t *testing.T) {
	svc, _ := newLiveService(t, chessData())

	match, err := svc.RecordMatch("s1", "s2", domain.ResultWhite)
	if err != nil {
		t.Fatalf("RecordMatch: %v", err)
	}
	if match.RatingDelta != 16 {
		t.Errorf("delta = %d, want 16", match.RatingDelta)
	}

	d, _ := svc.Snapshot()
	if d.Students[0].ChessRating != 1216 {
		t.Errorf("rating = %d, want 1216", d.Students[0].ChessRating)
	}
}

func TestService_DrawGacha(t *testing.T) {
	d := baseData()
	d.Gacha = domain.GachaState{
		Tickets: map[string]int{"s1": 1},
		Prizes:  []domain.GachaPrize{{ID: "p1", Name: "Stone pouch", Amount: 3, Weight: 5}},
	}
	svc, _ := newLiveService(t, d, WithSeed(1))

	prize, tx, err := svc.DrawGacha("s1")
	if err != nil {
		t.Fatalf("DrawGacha: %v", err)
	}
	if prize.ID != "p1" || tx.Amount != 3 {
		t.Errorf("draw = {prize:%s amount:%d}, want {p1 3}", prize.ID, tx.Amount)
	}

	if _, _, err := svc.DrawGacha("s1"); err != domain.ErrNoTickets {
		t.Errorf("second draw: err = %v, want ErrNoTickets", err)
	}
}

func TestService_NotifiesOnMovement(t *testing.T) {
	var events []Event
	svc, _ := newLiveService(t, baseData(), WithNotify(func(e Event) {
		events = append(events, e)
	}))

	if _, err := svc.Credit("s1", 5, "", "puzzle rush"); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Type != "manual" || e.StudentID != "s1" || e.Amount != 5 {
		t.Errorf("event = %+v", e)
	}

	// A rejected mutation emits nothing.
	if _, err := svc.Credit("ghost", 5, "", ""); err != domain.ErrStudentNotFound {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Error("rejected mutation emitted an event")
	}
}

func TestService_TransactionsFor(t *testing.T) {
	svc, _ := newLiveService(t, baseData())
	svc.Credit("s1", 1, "", "")
	svc.Credit("s2", 2, "", "")
	svc.Credit("s1", 3, "", "")

	txs := svc.TransactionsFor("s1")
	if len(txs) != 2 {
		t.Fatalf("entries = %d, want 2", len(txs))
	}
	// Newest first.
	if txs[0].Amount != 3 || txs[1].Amount != 1 {
		t.Errorf("order = [%d %d], want [3 1]", txs[0].Amount, txs[1].Amount)
	}

	if all := svc.TransactionsFor(""); len(all) != 3 {
		t.Errorf("unfiltered entries = %d, want 3", len(all))
	}
}

func TestService_Leaderboard(t *testing.T) {
	d := baseData()
	d.Students = append(d.Students, domain.Student{
		ID: "s3", Name: "Rio", Group: domain.GroupIntermediate,
		Stones: 20, MaxStones: 60, ChessRating: 1500, Status: domain.StudentActive,
	})
	d.Students = append(d.Students, domain.Student{
		ID: "s4", Name: "Gone", Stones: 99, Status: domain.StudentInactive,
	})
	svc, _ := newLiveService(t, d)

	rows := svc.Leaderboard()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (inactive excluded)", len(rows))
	}
	// s2 and s3 tie on 20 stones; s3's higher rating breaks the tie.
	want := []string{"s3", "s2", "s1"}
	for i, id := range want {
		if rows[i].StudentID != id {
			t.Errorf("rank %d = %s, want %s", i+1, rows[i].StudentID, id)
		}
	}
	if rows[0].Rank != 1 || rows[2].Rank != 3 {
		t.Error("rank numbers not assigned")
	}
}
