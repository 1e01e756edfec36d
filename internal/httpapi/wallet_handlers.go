package httpapi

import (
	"net/http"

	"github.com/aengwo/rfid-project/internal/campus/types"
)

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req types.TopUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.wallet.TopUp(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req types.WithdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.wallet.Withdraw(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	txs, err := s.wallet.Transactions(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb types.PaymentCallback
	if !decodeJSON(w, r, &cb) {
		return
	}
	res, err := s.wallet.Settle(r.Context(), cb)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleServicePayment(w http.ResponseWriter, r *http.Request) {
	var req types.ServicePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.wallet.Pay(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
