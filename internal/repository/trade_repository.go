package repository

import (
	"database/sql"
	"errors"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория журнала сделок
var (
	ErrTradeNotFound = errors.New("trade event not found")
)

const tradeColumns = `id, timestamp, pair_id, action, sector, symbol_a, symbol_b,
	side_a, side_b, qty_a, qty_b, price_a, price_b, zscore, reason, pnl, funding`

// TradeRepository - работа с таблицей trade_events
//
// Журнал append-only: события не редактируются и не удаляются,
// кроме ретенции по возрасту.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create записывает торговое событие
func (r *TradeRepository) Create(event *models.TradeEvent) error {
	query := `
		INSERT INTO trade_events (timestamp, pair_id, action, sector, symbol_a, symbol_b,
			side_a, side_b, qty_a, qty_b, price_a, price_b, zscore, reason, pnl, funding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return r.db.QueryRow(
		query,
		event.Timestamp,
		event.PairID,
		event.Action,
		event.Sector,
		event.SymbolA,
		event.SymbolB,
		event.SideA,
		event.SideB,
		event.QtyA,
		event.QtyB,
		event.PriceA,
		event.PriceB,
		event.ZScore,
		event.Reason,
		event.Pnl,
		event.Funding,
	).Scan(&event.ID)
}

func scanTrade(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.TradeEvent, error) {
	event := &models.TradeEvent{}
	err := scanner.Scan(
		&event.ID,
		&event.Timestamp,
		&event.PairID,
		&event.Action,
		&event.Sector,
		&event.SymbolA,
		&event.SymbolB,
		&event.SideA,
		&event.SideB,
		&event.QtyA,
		&event.QtyB,
		&event.PriceA,
		&event.PriceB,
		&event.ZScore,
		&event.Reason,
		&event.Pnl,
		&event.Funding,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]*models.TradeEvent, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.TradeEvent
	for rows.Next() {
		event, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// GetByID возвращает событие по ID
func (r *TradeRepository) GetByID(id int64) (*models.TradeEvent, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_events WHERE id = $1`

	event, err := scanTrade(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return event, nil
}

// GetRecent возвращает последние N событий
func (r *TradeRepository) GetRecent(limit int) ([]*models.TradeEvent, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_events ORDER BY timestamp DESC LIMIT $1`
	return r.queryTrades(query, limit)
}

// GetByPairID возвращает события пары
func (r *TradeRepository) GetByPairID(pairID, limit int) ([]*models.TradeEvent, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_events WHERE pair_id = $1 ORDER BY timestamp DESC LIMIT $2`
	return r.queryTrades(query, pairID, limit)
}

// GetByAction возвращает события с указанным действием
func (r *TradeRepository) GetByAction(action string, limit int) ([]*models.TradeEvent, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_events WHERE action = $1 ORDER BY timestamp DESC LIMIT $2`
	return r.queryTrades(query, action, limit)
}

// GetInTimeRange возвращает события за период
func (r *TradeRepository) GetInTimeRange(from, to time.Time) ([]*models.TradeEvent, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_events
		WHERE timestamp >= $1 AND timestamp <= $2 ORDER BY timestamp DESC`
	return r.queryTrades(query, from, to)
}

// AggregateSince агрегирует закрытия с указанного момента
//
// Учитываются только события закрытий (EXIT, STOP_LOSS): pnl входов
// всегда нулевой, включать их в статистику сделок нельзя.
func (r *TradeRepository) AggregateSince(since time.Time) (*models.PeriodStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			COUNT(*) FILTER (WHERE pnl <= 0),
			COALESCE(SUM(pnl), 0),
			COALESCE(SUM(funding), 0),
			COUNT(*) FILTER (WHERE action = $1)
		FROM trade_events
		WHERE timestamp >= $2 AND action IN ($1, $3)`

	stats := &models.PeriodStats{}
	err := r.db.QueryRow(query, models.TradeActionStopLoss, since, models.TradeActionExit).Scan(
		&stats.Trades,
		&stats.Wins,
		&stats.Losses,
		&stats.Pnl,
		&stats.Funding,
		&stats.StopOuts,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TopPairsSince возвращает пары с наибольшим PnL закрытий за период
func (r *TradeRepository) TopPairsSince(since time.Time, limit int) ([]models.PairStat, error) {
	query := `
		SELECT pair_id, symbol_a, symbol_b, sector, COUNT(*), COALESCE(SUM(pnl), 0) AS total
		FROM trade_events
		WHERE timestamp >= $1 AND action IN ($2, $3)
		GROUP BY pair_id, symbol_a, symbol_b, sector
		ORDER BY total DESC
		LIMIT $4`

	rows, err := r.db.Query(query, since, models.TradeActionExit, models.TradeActionStopLoss, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.PairStat
	for rows.Next() {
		var s models.PairStat
		if err := rows.Scan(&s.PairID, &s.SymbolA, &s.SymbolB, &s.Sector, &s.Trades, &s.Pnl); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOlderThan удаляет события старше указанной даты (ретенция)
func (r *TradeRepository) DeleteOlderThan(timestamp time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM trade_events WHERE timestamp < $1`, timestamp)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count возвращает общее количество событий
func (r *TradeRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trade_events`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
