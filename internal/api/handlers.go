package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stonekeeper/stonekeeper/internal/domain"
)

// decode reads a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// ─── State ──────────────────────────────────────────────────────────────────

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	doc, status := s.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status.String(),
		"data":   doc,
	})
}

// ─── Students ───────────────────────────────────────────────────────────────

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"students": doc.Students,
	})
}

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Rank  string `json:"rank"`
		Group string `json:"group"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	st, err := s.svc.AddStudent(req.Name, req.Rank, req.Group)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Rank  string `json:"rank"`
		Group string `json:"group"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := s.svc.UpdateStudent(chi.URLParam(r, "id"), req.Name, req.Rank, req.Group)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteStudent(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": s.svc.TransactionsFor(chi.URLParam(r, "id")),
	})
}

// ─── Transactions ───────────────────────────────────────────────────────────

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	student := r.URL.Query().Get("student")
	if student == "" {
		student = r.URL.Query().Get("studentId")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": s.svc.TransactionsFor(student),
	})
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID   string `json:"studentId"`
		Amount      int    `json:"amount"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be nonzero")
		return
	}

	tx, err := s.svc.Credit(req.StudentID, req.Amount, domain.TransactionType(req.Type), req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Cancel(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Matches and Missions ───────────────────────────────────────────────────

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": doc.ChessMatches,
	})
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	doc, _ := s.svc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"missions":        doc.Missions,
		"specialMissions": doc.SpecialMissions,
		"eventMissions":   doc.EventMissions,
	})
}

// ─── Transfers and Purchases ────────────────────────────────────────────────

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromID string `json:"fromId"`
		ToID   string `json:"toId"`
		Amount int    `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.Transfer(req.FromID, req.ToID, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID  string `json:"studentId"`
		ItemID     string `json:"itemId"`
		CouponCode string `json:"couponCode"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := s.svc.PurchaseItem(req.StudentID, req.ItemID, req.CouponCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ─── Missions and Gacha ─────────────────────────────────────────────────────

func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"studentId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := s.svc.CompleteMission(req.StudentID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDrawGacha(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"studentId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prize, tx, err := s.svc.DrawGacha(req.StudentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"prize":       prize,
		"transaction": tx,
	})
}

// ─── Chess ──────────────────────────────────────────────────────────────────

func (s *Server) handleRecordMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WhiteID string `json:"whiteId"`
		BlackID string `json:"blackId"`
		Result  string `json:"result"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := domain.MatchResult(req.Result)
	if result != domain.ResultWhite && result != domain.ResultBlack && result != domain.ResultDraw {
		writeError(w, http.StatusBadRequest, "result must be white, black, or draw")
		return
	}

	match, err := s.svc.RecordMatch(req.WhiteID, req.BlackID, result)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (s *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.svc.NextTournamentRound()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

func (s *Server) handleReportPairing(w http.ResponseWriter, r *http.Request) {
	roundNumber, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	board, err := strconv.Atoi(chi.URLParam(r, "board"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid board number")
		return
	}

	var req struct {
		Result string `json:"result"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := domain.MatchResult(req.Result)
	if result != domain.ResultWhite && result != domain.ResultBlack && result != domain.ResultDraw {
		writeError(w, http.StatusBadRequest, "result must be white, black, or draw")
		return
	}

	match, err := s.svc.ReportPairing(roundNumber, board, result)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": s.svc.Leaderboard(),
	})
}
