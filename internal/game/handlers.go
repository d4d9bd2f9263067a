package game

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/ledger"
	"github.com/marketsim/engine/internal/model"
)

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`     // "buy" or "sell"
	Quantity decimal.Decimal `json:"quantity"` // whole shares
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	Fill     ledger.Fill     `json:"fill"`
	Balance  decimal.Decimal `json:"balance"`
	Position *model.Position `json:"position,omitempty"` // nil once fully sold
}

// AdvanceResponse is the JSON body returned from POST /advance.
type AdvanceResponse struct {
	Day         int                `json:"day"`
	News        model.NewsEvent    `json:"news"`
	Instruments []model.Instrument `json:"instruments"`
}

// Mount registers the session routes on r.
func (s *Service) Mount(r chi.Router) {
	r.Get("/state", s.GetState)
	r.Get("/instruments", s.ListInstruments)
	r.Get("/instruments/{symbol}", s.GetInstrument)
	r.Get("/portfolio", s.GetPortfolio)
	r.Get("/news", s.ListNews)
	r.Post("/advance", s.Advance)
	r.Post("/trade", s.Trade)
	r.Get("/trades", s.ListTrades)
}

// --- HTTP Handlers ---

// GetState handles GET /api/v1/state
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State().Snapshot())
}

// ListInstruments handles GET /api/v1/instruments
func (s *Service) ListInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State().Instruments.All())
}

// GetInstrument handles GET /api/v1/instruments/{symbol}
func (s *Service) GetInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	inst, ok := s.State().Instruments.Get(symbol)
	if !ok {
		writeError(w, "instrument not found: "+symbol, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// GetPortfolio handles GET /api/v1/portfolio
// Returns holdings marked to market with total assets.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.Valuation(s.State()))
}

// ListNews handles GET /api/v1/news
// Returns the session's recent news, most recent first. ?archive=true reads
// the journal instead, which is not capped at the in-game window.
func (s *Service) ListNews(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("archive") != "true" {
		news := s.State().News
		if news == nil {
			news = []model.NewsEvent{}
		}
		writeJSON(w, http.StatusOK, news)
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	events, err := s.store.ListNews(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list news", "err", err)
		writeError(w, "failed to list news", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Advance handles POST /api/v1/advance
// Simulates one trading day; may wait on the news provider.
func (s *Service) Advance(w http.ResponseWriter, r *http.Request) {
	next, err := s.AdvanceDay(r.Context())
	if err != nil {
		if errors.Is(err, ErrCommandPending) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "day advance cancelled", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, AdvanceResponse{
		Day:         next.Day,
		News:        next.News[0],
		Instruments: next.Instruments.All(),
	})
}

// Trade handles POST /api/v1/trade
// Executes a market order at the current price.
func (s *Service) Trade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order := ledger.Order{
		Symbol:   req.Symbol,
		Side:     model.Side(req.Side),
		Quantity: req.Quantity,
	}

	next, fill, err := s.ExecuteTrade(r.Context(), order)
	if err != nil {
		writeError(w, err.Error(), tradeErrorStatus(err))
		return
	}

	resp := TradeResponse{Fill: fill, Balance: next.Balance}
	if pos, ok := next.Position(fill.Symbol); ok {
		resp.Position = &pos
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTrades handles GET /api/v1/trades
// Returns journaled trades, most recent first, optionally ?symbol= and ?limit=.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	var (
		trades []model.TradeRecord
		err    error
	)
	if sym := r.URL.Query().Get("symbol"); sym != "" {
		trades, err = s.store.ListTradesBySymbol(r.Context(), sym, limit)
	} else {
		trades, err = s.store.ListTrades(r.Context(), limit)
	}
	if err != nil {
		slog.Error("failed to list trades", "err", err)
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, trades)
}

func tradeErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrCommandPending):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnknownInstrument):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInsufficientShares):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
