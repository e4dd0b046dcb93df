package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"statarb/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func tradeRows(events ...*models.TradeEvent) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "pair_id", "action", "sector", "symbol_a", "symbol_b",
		"side_a", "side_b", "qty_a", "qty_b", "price_a", "price_b", "zscore", "reason", "pnl", "funding",
	})
	for _, e := range events {
		rows.AddRow(e.ID, e.Timestamp, e.PairID, e.Action, e.Sector, e.SymbolA, e.SymbolB,
			e.SideA, e.SideB, e.QtyA, e.QtyB, e.PriceA, e.PriceB, e.ZScore, e.Reason, e.Pnl, e.Funding)
	}
	return rows
}

func testTradeEvent(id int64, action string) *models.TradeEvent {
	return &models.TradeEvent{
		ID:        id,
		Timestamp: time.Now(),
		PairID:    1,
		Action:    action,
		Sector:    "L1",
		SymbolA:   "ETHUSDT",
		SymbolB:   "SOLUSDT",
		SideA:     "BUY",
		SideB:     "SELL",
		QtyA:      1.25,
		QtyB:      100,
		PriceA:    2000,
		PriceB:    25,
		ZScore:    -2.3,
		Reason:    "z-score entry",
	}
}

func TestTradeRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		event       *models.TradeEvent
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name:  "success",
			event: testTradeEvent(0, models.TradeActionEnterLong),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trade_events`).
					WithArgs(sqlmock.AnyArg(), 1, models.TradeActionEnterLong, "L1", "ETHUSDT", "SOLUSDT",
						"BUY", "SELL", 1.25, float64(100), float64(2000), float64(25), -2.3, "z-score entry",
						float64(0), float64(0)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
			},
			expectError: false,
		},
		{
			name:  "database error",
			event: testTradeEvent(0, models.TradeActionExit),
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trade_events`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			err = repo.Create(tt.event)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.event.ID != 42 {
					t.Errorf("expected ID=42, got %d", tt.event.ID)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetByID(t *testing.T) {
	tests := []struct {
		name        string
		id          int64
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			id:   42,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM trade_events WHERE id = \$1`).
					WithArgs(int64(42)).
					WillReturnRows(tradeRows(testTradeEvent(42, models.TradeActionExit)))
			},
			expectError: nil,
		},
		{
			name: "not found",
			id:   999,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM trade_events WHERE id = \$1`).
					WithArgs(int64(999)).
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrTradeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			event, err := repo.GetByID(tt.id)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if event.ID != tt.id {
					t.Errorf("expected ID=%d, got %d", tt.id, event.ID)
				}
				if event.Action != models.TradeActionExit {
					t.Errorf("unexpected action: %s", event.Action)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM trade_events ORDER BY timestamp DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(tradeRows(
			testTradeEvent(2, models.TradeActionExit),
			testTradeEvent(1, models.TradeActionEnterLong),
		))

	repo := NewTradeRepository(db)
	events, err := repo.GetRecent(50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID != 2 {
		t.Errorf("expected newest first, got ID=%d", events[0].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryAggregateSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(models.TradeActionStopLoss, since, models.TradeActionExit).
		WillReturnRows(sqlmock.NewRows([]string{"count", "wins", "losses", "pnl", "funding", "stop_outs"}).
			AddRow(10, 6, 4, 152.4, -3.1, 2))

	repo := NewTradeRepository(db)
	stats, err := repo.AggregateSince(since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Trades != 10 || stats.Wins != 6 || stats.Losses != 4 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.Pnl != 152.4 {
		t.Errorf("expected pnl 152.4, got %v", stats.Pnl)
	}
	if stats.StopOuts != 2 {
		t.Errorf("expected 2 stop-outs, got %d", stats.StopOuts)
	}
	if wr := stats.WinRate(); wr != 0.6 {
		t.Errorf("expected win rate 0.6, got %v", wr)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryTopPairsSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	since := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectQuery(`SELECT pair_id, symbol_a, symbol_b, sector, COUNT\(\*\)`).
		WithArgs(since, models.TradeActionExit, models.TradeActionStopLoss, 5).
		WillReturnRows(sqlmock.NewRows([]string{"pair_id", "symbol_a", "symbol_b", "sector", "count", "total"}).
			AddRow(1, "ETHUSDT", "SOLUSDT", "L1", 8, 210.0).
			AddRow(3, "UNIUSDT", "AAVEUSDT", "DeFi", 5, 44.2))

	repo := NewTradeRepository(db)
	top, err := repo.TopPairsSince(since, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(top))
	}
	if top[0].PairID != 1 || top[0].Pnl != 210.0 {
		t.Errorf("unexpected top pair: %+v", top[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().Add(-90 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM trade_events WHERE timestamp < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 120))

	repo := NewTradeRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 120 {
		t.Errorf("expected 120 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
