package tradepipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ClosedTrade is an entry in the position store's closed-trade history,
// recorded whenever Reduce or Close fully exits a position.
type ClosedTrade struct {
	Symbol      string       `json:"symbol"`
	Qty         float64      `json:"qty"`
	EntryPrice  float64      `json:"entry_price"`
	ExitPrice   float64      `json:"exit_price"`
	Side        PositionSide `json:"side"`
	RealizedPnL float64      `json:"realized_pnl"`
	OpenedAt    time.Time    `json:"opened_at"`
	ClosedAt    time.Time    `json:"closed_at"`
}

// positionJSON/snapshotJSON mirror the persisted on-disk layout:
// {positions: {symbol -> TrackedPositionDict}, closed: [ClosedTradeDict,...]}.
type positionJSON struct {
	Symbol        string       `json:"symbol"`
	Qty           float64      `json:"qty"`
	AvgEntryPrice float64      `json:"avg_entry_price"`
	CurrentPrice  float64      `json:"current_price"`
	Side          PositionSide `json:"side"`
	SignalType    string       `json:"signal_type"`
	StopLossPrice float64      `json:"stop_loss_price"`
	TargetPrice   float64      `json:"target_price"`
	OpenedAt      time.Time    `json:"opened_at"`
	OrderIDs      []string     `json:"order_ids"`
}

type snapshotJSON struct {
	Positions map[string]positionJSON `json:"positions"`
	Closed    []ClosedTrade           `json:"closed"`
}

// PositionStore is a symbol-keyed map of TrackedPosition with exit
// monitoring and serializable snapshots.
type PositionStore struct {
	log zerolog.Logger

	mu        sync.RWMutex
	positions map[string]*TrackedPosition
	closed    []ClosedTrade
}

func NewPositionStore(log zerolog.Logger) *PositionStore {
	return &PositionStore{
		log:       log.With().Str("component", "position_store").Logger(),
		positions: make(map[string]*TrackedPosition),
	}
}

// Open averages qty/price into an existing position on the same side, or
// creates a new one.
func (s *PositionStore) Open(symbol string, qty, price float64, side PositionSide, signalType string, stopLossPrice, targetPrice float64, orderID string) *TrackedPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, ok := s.positions[symbol]; ok && pos.Side == side {
		totalQty := pos.Qty + qty
		pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Qty + price*qty) / totalQty
		pos.Qty = totalQty
		pos.CurrentPrice = price
		if stopLossPrice != 0 {
			pos.StopLossPrice = stopLossPrice
		}
		if targetPrice != 0 {
			pos.TargetPrice = targetPrice
		}
		pos.OrderIDs = append(pos.OrderIDs, orderID)
		return pos
	}

	pos := &TrackedPosition{
		Symbol:        symbol,
		Qty:           qty,
		AvgEntryPrice: price,
		CurrentPrice:  price,
		Side:          side,
		SignalType:    signalType,
		StopLossPrice: stopLossPrice,
		TargetPrice:   targetPrice,
		OpenedAt:      time.Now(),
		OrderIDs:      []string{orderID},
	}
	s.positions[symbol] = pos
	return pos
}

// Reduce realizes partial P&L against exitQty and closes the position
// (recording a ClosedTrade) when the remaining qty reaches zero.
func (s *PositionStore) Reduce(symbol string, exitQty, exitPrice float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[symbol]
	if !ok {
		return 0, fmt.Errorf("tradepipeline: no open position for %s", symbol)
	}
	if exitQty > pos.Qty {
		exitQty = pos.Qty
	}

	diff := exitPrice - pos.AvgEntryPrice
	if pos.Side == PositionShort {
		diff = -diff
	}
	realized := diff * exitQty

	pos.Qty -= exitQty
	if pos.Qty <= 0 {
		s.closePositionLocked(pos, exitPrice, realized)
	}
	return realized, nil
}

// Close fully exits a position.
func (s *PositionStore) Close(symbol string, exitPrice float64) (float64, error) {
	s.mu.RLock()
	pos, ok := s.positions[symbol]
	var qty float64
	if ok {
		qty = pos.Qty
	}
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("tradepipeline: no open position for %s", symbol)
	}
	return s.Reduce(symbol, qty, exitPrice)
}

func (s *PositionStore) closePositionLocked(pos *TrackedPosition, exitPrice, realized float64) {
	s.closed = append(s.closed, ClosedTrade{
		Symbol:      pos.Symbol,
		Qty:         pos.Qty,
		EntryPrice:  pos.AvgEntryPrice,
		ExitPrice:   exitPrice,
		Side:        pos.Side,
		RealizedPnL: realized,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    time.Now(),
	})
	delete(s.positions, pos.Symbol)
}

// UpdatePrices bulk-refreshes CurrentPrice for every named symbol held.
func (s *PositionStore) UpdatePrices(prices map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, price := range prices {
		if pos, ok := s.positions[symbol]; ok {
			pos.CurrentPrice = price
		}
	}
}

// CheckExits returns the symbols whose current price has crossed their
// stop-loss or target price.
func (s *PositionStore) CheckExits() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []string
	for symbol, pos := range s.positions {
		if pos.StopLossPrice == 0 && pos.TargetPrice == 0 {
			continue
		}
		if pos.Side == PositionLong {
			if (pos.StopLossPrice != 0 && pos.CurrentPrice <= pos.StopLossPrice) ||
				(pos.TargetPrice != 0 && pos.CurrentPrice >= pos.TargetPrice) {
				hits = append(hits, symbol)
			}
		} else {
			if (pos.StopLossPrice != 0 && pos.CurrentPrice >= pos.StopLossPrice) ||
				(pos.TargetPrice != 0 && pos.CurrentPrice <= pos.TargetPrice) {
				hits = append(hits, symbol)
			}
		}
	}
	return hits
}

// Get returns a copy of a single tracked position.
func (s *PositionStore) Get(symbol string) (TrackedPosition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[symbol]
	if !ok {
		return TrackedPosition{}, false
	}
	return *pos, true
}

// All returns a snapshot copy of every open position.
func (s *PositionStore) All() map[string]TrackedPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TrackedPosition, len(s.positions))
	for k, v := range s.positions {
		out[k] = *v
	}
	return out
}

// Closed returns a copy of the closed-trade history.
func (s *PositionStore) Closed() []ClosedTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ClosedTrade, len(s.closed))
	copy(out, s.closed)
	return out
}

func (s *PositionStore) snapshot() snapshotJSON {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshotJSON{
		Positions: make(map[string]positionJSON, len(s.positions)),
		Closed:    append([]ClosedTrade(nil), s.closed...),
	}
	for symbol, pos := range s.positions {
		snap.Positions[symbol] = positionJSON{
			Symbol:        pos.Symbol,
			Qty:           pos.Qty,
			AvgEntryPrice: pos.AvgEntryPrice,
			CurrentPrice:  pos.CurrentPrice,
			Side:          pos.Side,
			SignalType:    pos.SignalType,
			StopLossPrice: pos.StopLossPrice,
			TargetPrice:   pos.TargetPrice,
			OpenedAt:      pos.OpenedAt.UTC(),
			OrderIDs:      append([]string(nil), pos.OrderIDs...),
		}
	}
	return snap
}

func (s *PositionStore) restore(snap snapshotJSON) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]*TrackedPosition, len(snap.Positions))
	for symbol, pj := range snap.Positions {
		s.positions[symbol] = &TrackedPosition{
			Symbol:        pj.Symbol,
			Qty:           pj.Qty,
			AvgEntryPrice: pj.AvgEntryPrice,
			CurrentPrice:  pj.CurrentPrice,
			Side:          pj.Side,
			SignalType:    pj.SignalType,
			StopLossPrice: pj.StopLossPrice,
			TargetPrice:   pj.TargetPrice,
			OpenedAt:      pj.OpenedAt,
			OrderIDs:      pj.OrderIDs,
		}
	}
	s.closed = append([]ClosedTrade(nil), snap.Closed...)
}

// ToJSON serializes the store to its persisted layout.
func (s *PositionStore) ToJSON() ([]byte, error) {
	return json.Marshal(s.snapshot())
}

// FromJSON replaces the store's contents with a previously serialized
// snapshot.
func (s *PositionStore) FromJSON(data []byte) error {
	var snap snapshotJSON
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("tradepipeline: decode position snapshot: %w", err)
	}
	s.restore(snap)
	return nil
}

// ToMsgpack serializes the store to a compact binary snapshot, an
// alternative to ToJSON for high-frequency persistence.
func (s *PositionStore) ToMsgpack() ([]byte, error) {
	return msgpack.Marshal(s.snapshot())
}

// FromMsgpack is the ToMsgpack counterpart.
func (s *PositionStore) FromMsgpack(data []byte) error {
	var snap snapshotJSON
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("tradepipeline: decode msgpack position snapshot: %w", err)
	}
	s.restore(snap)
	return nil
}
