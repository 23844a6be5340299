package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stonekeeper/stonekeeper/internal/app/ledger"
	"github.com/stonekeeper/stonekeeper/internal/domain"
	"github.com/stonekeeper/stonekeeper/internal/infra/docstore"
	"github.com/stonekeeper/stonekeeper/internal/store"
)

func seedDoc() domain.AppData {
	d := domain.DefaultAppData()
	d.Students = []domain.Student{
		{ID: "s1", Name: "Ama", Group: domain.GroupIntermediate, Stones: 10, MaxStones: 60, Status: domain.StudentActive},
		{ID: "s2", Name: "Kei", Group: domain.GroupIntermediate, Stones: 20, MaxStones: 60, Status: domain.StudentActive},
	}
	return d
}

// newTestServer brings up a live session over an in-memory backend and
// returns the API server plus its router.
func newTestServer(t *testing.T, doc domain.AppData) (*Server, http.Handler) {
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

	deadline := time.Now().Add(2 * time.Second)
	for st.Status() != store.StatusLive && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if st.Status() != store.StatusLive {
		t.Fatal("session never reached live")
	}

	n := 0
	svc := ledger.NewService(st, ledger.WithIDs(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	srv := NewServer(svc)
	return srv, srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, seedDoc())
	rec := doJSON(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestState(t *testing.T) {
	_, h := newTestServer(t, seedDoc())
	rec := doJSON(t, h, "GET", "/api/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Status string         `json:"status"`
		Data   domain.AppData `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "live" {
		t.Errorf("status = %q, want live", resp.Status)
	}
	if len(resp.Data.Students) != 2 {
		t.Errorf("students = %d, want 2", len(resp.Data.Students))
	}
}

func TestAddStudent(t *testing.T) {
	_, h := newTestServer(t, seedDoc())

	rec := doJSON(t, h, "POST", "/api/students/", map[string]string{
		"name": "Rio", "group": domain.GroupAdvanced,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var st domain.Student
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.MaxStones != 100 || st.Stones != 0 {
		t.Errorf("student = {stones:%d max:%d}, want {0 100}", st.Stones, st.MaxStones)
	}

	rec = doJSON(t, h, "POST", "/api/students/", map[string]string{"name": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: status = %d, want 400", rec.Code)
	}
}

func TestCredit_Clamps(t *testing.T) {
	_, h := newTestServer(t, seedDoc())

	rec := doJSON(t, h, "POST", "/api/transactions/", map[string]interface{}{
		"studentId": "s1", "amount": 100, "description": "grading",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var tx domain.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatal(err)
	}
	if tx.Amount != 100 || tx.StoneBalanceBefore != 10 || tx.StoneBalanceAfter != 60 {
		t.Errorf("tx = {%d %d %d}, want {100 10 60}", tx.Amount, tx.StoneBalanceBefore, tx.StoneBalanceAfter)
	}
}

func TestCredit_UnknownStudent(t *testing.T) {
	_, h := newTestServer(t, seedDoc())
	rec := doJSON(t, h, "POST", "/api/transactions/", map[string]interface{}{
		"studentId": "ghost", "amount": 5,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelFlow(t *testing.T) {
	_, h := newTestServer(t, seedDoc())

	rec := doJSON(t, h, "POST", "/api/transactions/", map[string]interface{}{
		"studentId": "s1", "amount": 20,
	})
	var tx domain.Transaction
	json.Unmarshal(rec.Body.Bytes(), &tx)

	rec = doJSON(t, h, "POST", "/api/transactions/"+tx.ID+"/cancel", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", rec.Code)
	}

	// Cancelling twice conflicts.
	rec = doJSON(t, h, "POST", "/api/transactions/"+tx.ID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", rec.Code)
	}
}

func TestTransfer(t *testing.T) {
	_, h := newTestServer(t, seedDoc())

	rec := doJSON(t, h, "POST", "/api/transfers", map[string]interface{}{
		"fromId": "s2", "toId": "s1", "amount": 5,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, "POST", "/api/transfers", map[string]interface{}{
		"fromId": "s2", "toId": "s1", "amount": 999,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("overdraw status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/api/transfers", map[string]interface{}{
		"fromId": "s1", "toId": "s1", "amount": 5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self transfer status = %d, want 400", rec.Code)
	}
}

func TestRecordMatch(t *testing.T) {
	_, h := newTestServer(t, seedDoc())

	rec := doJSON(t, h, "POST", "/api/matches", map[string]string{
		"whiteId": "s1", "blackId": "s2", "result": "white",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}

	var match domain.ChessMatch
	if err := json.Unmarshal(rec.Body.Bytes(), &match); err != nil {
		t.Fatal(err)
	}
	if match.WhiteRating != 1216 || match.BlackRating != 1184 {
		t.Errorf("ratings = %d/%d, want 1216/1184", match.WhiteRating, match.BlackRating)
	}

	rec = doJSON(t, h, "POST", "/api/matches", map[string]string{
		"whiteId": "s1", "blackId": "s2", "result": "upset",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad result status = %d, want 400", rec.Code)
	}
}

func TestLeaderboard(t *testing.T) {
	_, h := newTestServer(t, seedDoc())
	rec := doJSON(t, h, "GET", "/api/leaderboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Leaderboard []ledger.LeaderboardEntry `json:"leaderboard"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Leaderboard) != 2 || resp.Leaderboard[0].StudentID != "s2" {
		t.Errorf("leaderboard = %+v, want s2 first", resp.Leaderboard)
	}
}

func TestMutationsRejectedWhenNotLive(t *testing.T) {
	st := store.New(docstore.NewMemory())
	srv := NewServer(ledger.NewService(st))
	h := srv.Handler()

	rec := doJSON(t, h, "POST", "/api/transactions/", map[string]interface{}{
		"studentId": "s1", "amount": 5,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// ─── Feed Integration ───────────────────────────────────────────────────────

// TestFeedRoundTrip runs a Remote client against the websocket feed endpoint
// and checks that snapshots flow down and replaces flow up.
func TestFeedRoundTrip(t *testing.T) {
	backend := docstore.NewMemory()
	defer backend.Close()
	if err := backend.Replace(context.Background(), "coach", seedDoc()); err != nil {
		t.Fatal(err)
	}

	srv, _ := newTestServer(t, seedDoc())
	srv.SetFeedBackend(backend)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	remote := docstore.NewRemote("ws" + strings.TrimPrefix(ts.URL, "http"))
	defer remote.Close()

	got := make(chan docstore.Change, 8)
	cancel, err := remote.Subscribe(context.Background(), "coach",
		func(c docstore.Change) { got <- c },
		func(err error) {})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	// Initial snapshot flows down.
	select {
	case c := <-got:
		if c.Doc == nil || len(c.Doc.Students) != 2 {
			t.Fatalf("initial change = %+v, want seeded doc", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	// A replace flows up and is confirmed by a broadcast snapshot.
	doc := seedDoc()
	doc.Students[0].Stones = 25
	if err := remote.Replace(context.Background(), "coach", doc); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-got:
			if c.PendingWrite {
				continue // the optimistic echo comes first
			}
			if c.Doc == nil || c.Doc.Students[0].Stones != 25 {
				t.Fatalf("confirmed change = %+v, want 25 stones", c)
			}
			// Server-side store observed the write too.
			stored, _ := backend.Get(context.Background(), "coach")
			if stored == nil || stored.Students[0].Stones != 25 {
				t.Fatal("backend did not persist the replace")
			}
			return
		case <-deadline:
			t.Fatal("replace never confirmed")
		}
	}
}
