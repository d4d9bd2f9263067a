// Package game hosts a single simulation session: it owns the authoritative
// state, serializes the two commands that change it, journals what happened,
// and exposes the session over HTTP and WebSocket.
//
// All monetary values use shopspring/decimal, never float64.
package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketsim/engine/internal/ledger"
	"github.com/marketsim/engine/internal/metrics"
	"github.com/marketsim/engine/internal/model"
	"github.com/marketsim/engine/internal/simulator"
	"github.com/marketsim/engine/internal/state"
	"github.com/marketsim/engine/internal/store"
)

// ErrCommandPending is returned when a command arrives while another one is
// still running against the session.
var ErrCommandPending = errors.New("game: another command is in progress")

// Service owns one session's state. Commands run one at a time; a command
// that arrives while another is pending is rejected rather than queued.
// Snapshots stay readable while a command is pending.
type Service struct {
	sim   *simulator.Simulator
	store store.Store
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
	now   func() time.Time

	cmd sync.Mutex   // held for the duration of a command
	mu  sync.RWMutex // guards st
	st  state.State
}

// NewService creates a session starting from initial.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(initial state.State, sim *simulator.Simulator, st store.Store, hub *WSHub) *Service {
	metrics.Balance.Set(initial.Balance.InexactFloat64())
	return &Service{
		sim:   sim,
		store: st,
		wsHub: hub,
		now:   time.Now,
		st:    initial,
	}
}

// State returns the current snapshot.
func (s *Service) State() state.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Service) commit(next state.State) {
	s.mu.Lock()
	s.st = next
	s.mu.Unlock()
	metrics.Balance.Set(next.Balance.InexactFloat64())
}

// AdvanceDay simulates one trading day. It may block on the news provider.
// If ctx ends before the new state is committed, the result is discarded
// and ctx.Err() is returned.
func (s *Service) AdvanceDay(ctx context.Context) (state.State, error) {
	if !s.cmd.TryLock() {
		return s.State(), ErrCommandPending
	}
	defer s.cmd.Unlock()

	cur := s.State()
	next := s.sim.AdvanceDay(ctx, cur)
	if err := ctx.Err(); err != nil {
		slog.Warn("day advance abandoned", "day", cur.Day, "err", err)
		return cur, err
	}
	s.commit(next)
	metrics.DaysAdvanced.Inc()

	ev := next.News[0]
	slog.Info("day advanced",
		"day", next.Day,
		"news_id", ev.ID,
		"headline", ev.Title,
		"impact", ev.Impact,
		"sectors", ev.AffectedSectors,
	)

	if err := s.store.InsertNews(context.WithoutCancel(ctx), ev); err != nil {
		metrics.JournalErrors.WithLabelValues("news").Inc()
		slog.Error("failed to journal news", "news_id", ev.ID, "err", err)
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "day_advanced",
			Day:      next.Day,
			Headline: ev.Title,
			Impact:   ev.Impact,
			Sectors:  ev.AffectedSectors,
			Balance:  next.Balance.String(),
		})
	}
	return next, nil
}

// ExecuteTrade applies o at the current price. Rejected orders leave the
// session unchanged and return a *ledger.TradeError.
func (s *Service) ExecuteTrade(ctx context.Context, o ledger.Order) (state.State, ledger.Fill, error) {
	if !s.cmd.TryLock() {
		return s.State(), ledger.Fill{}, ErrCommandPending
	}
	defer s.cmd.Unlock()

	cur := s.State()
	next, fill, err := ledger.ExecuteTrade(cur, o)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		slog.Info("trade rejected",
			"symbol", o.Symbol,
			"side", o.Side,
			"qty", o.Quantity.String(),
			"err", err,
		)
		return cur, ledger.Fill{}, err
	}
	s.commit(next)
	metrics.TradesTotal.WithLabelValues(string(fill.Side)).Inc()

	rec := &model.TradeRecord{
		ID:           uuid.New().String(),
		Day:          next.Day,
		Symbol:       fill.Symbol,
		Side:         fill.Side,
		Quantity:     fill.Quantity,
		Price:        fill.Price,
		Amount:       fill.Amount,
		BalanceAfter: next.Balance,
		Timestamp:    s.now().UTC(),
	}

	slog.Info("trade executed",
		"trade_id", rec.ID,
		"day", rec.Day,
		"symbol", rec.Symbol,
		"side", rec.Side,
		"qty", rec.Quantity,
		"price", rec.Price.String(),
		"amount", rec.Amount.String(),
		"balance", rec.BalanceAfter.String(),
	)

	if err := s.store.InsertTrade(context.WithoutCancel(ctx), rec); err != nil {
		metrics.JournalErrors.WithLabelValues("trade").Inc()
		slog.Error("failed to journal trade", "trade_id", rec.ID, "err", err)
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade_executed",
			Day:      next.Day,
			Symbol:   fill.Symbol,
			Side:     string(fill.Side),
			Quantity: fill.Quantity,
			Price:    fill.Price.String(),
			Balance:  next.Balance.String(),
		})
	}
	return next, fill, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnknownInstrument):
		return "unknown_instrument"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ledger.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient_shares"
	default:
		return "other"
	}
}
