package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория пар
var (
	ErrPairNotFound = errors.New("pair not found")
	ErrPairExists   = errors.New("pair already exists")
)

const pairColumns = `id, sector, symbol_a, symbol_b, beta, window, min_periods, entry_z, exit_z,
	risk_pct, stop_pct, max_leverage, max_hold_minutes, status, total_trades, total_pnl, created_at, updated_at`

// PairRepository - работа с таблицей pairs
type PairRepository struct {
	db *sql.DB
}

// NewPairRepository создает новый экземпляр репозитория
func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Create создает пару. Сочетание (symbol_a, symbol_b) уникально.
func (r *PairRepository) Create(pair *models.PairConfig) error {
	query := `
		INSERT INTO pairs (sector, symbol_a, symbol_b, beta, window, min_periods, entry_z, exit_z,
			risk_pct, stop_pct, max_leverage, max_hold_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	if pair.Status == "" {
		pair.Status = models.PairStatusPaused
	}
	if pair.Beta <= 0 {
		pair.Beta = 1.0
	}

	now := time.Now()
	pair.CreatedAt = now
	pair.UpdatedAt = now

	err := r.db.QueryRow(
		query,
		pair.Sector,
		pair.SymbolA,
		pair.SymbolB,
		pair.Beta,
		pair.Window,
		pair.MinPeriods,
		pair.EntryZ,
		pair.ExitZ,
		pair.RiskPct,
		pair.StopPct,
		pair.MaxLeverage,
		pair.MaxHoldMinutes,
		pair.Status,
		pair.CreatedAt,
		pair.UpdatedAt,
	).Scan(&pair.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrPairExists
		}
		return err
	}

	return nil
}

func scanPair(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.PairConfig, error) {
	pair := &models.PairConfig{}
	err := scanner.Scan(
		&pair.ID,
		&pair.Sector,
		&pair.SymbolA,
		&pair.SymbolB,
		&pair.Beta,
		&pair.Window,
		&pair.MinPeriods,
		&pair.EntryZ,
		&pair.ExitZ,
		&pair.RiskPct,
		&pair.StopPct,
		&pair.MaxLeverage,
		&pair.MaxHoldMinutes,
		&pair.Status,
		&pair.TotalTrades,
		&pair.TotalPnl,
		&pair.CreatedAt,
		&pair.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// GetByID возвращает пару по ID
func (r *PairRepository) GetByID(id int) (*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE id = $1`

	pair, err := scanPair(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// GetBySymbols возвращает пару по инструментам
func (r *PairRepository) GetBySymbols(symbolA, symbolB string) (*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE symbol_a = $1 AND symbol_b = $2`

	pair, err := scanPair(r.db.QueryRow(query, symbolA, symbolB))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

func (r *PairRepository) queryPairs(query string, args ...interface{}) ([]*models.PairConfig, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairConfig
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pairs, nil
}

// GetAll возвращает все пары
func (r *PairRepository) GetAll() ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT ` + pairColumns + ` FROM pairs ORDER BY id`)
}

// GetActive возвращает активные пары
func (r *PairRepository) GetActive() ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT `+pairColumns+` FROM pairs WHERE status = $1 ORDER BY id`, models.PairStatusActive)
}

// GetBySector возвращает пары сектора
func (r *PairRepository) GetBySector(sector string) ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT `+pairColumns+` FROM pairs WHERE sector = $1 ORDER BY id`, sector)
}

// Update обновляет конфигурацию пары
func (r *PairRepository) Update(pair *models.PairConfig) error {
	query := `
		UPDATE pairs
		SET sector = $1, beta = $2, window = $3, min_periods = $4, entry_z = $5, exit_z = $6,
			risk_pct = $7, stop_pct = $8, max_leverage = $9, max_hold_minutes = $10, updated_at = $11
		WHERE id = $12`

	pair.UpdatedAt = time.Now()

	result, err := r.db.Exec(query,
		pair.Sector, pair.Beta, pair.Window, pair.MinPeriods, pair.EntryZ, pair.ExitZ,
		pair.RiskPct, pair.StopPct, pair.MaxLeverage, pair.MaxHoldMinutes, pair.UpdatedAt, pair.ID)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// UpdateStatus обновляет статус пары
func (r *PairRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE pairs SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// RecordTradeResult инкрементирует счетчик сделок и накапливает PnL
func (r *PairRepository) RecordTradeResult(id int, pnl float64) error {
	query := `
		UPDATE pairs
		SET total_trades = total_trades + 1, total_pnl = total_pnl + $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(query, pnl, time.Now(), id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// Delete удаляет пару
func (r *PairRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM pairs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return checkAffected(result)
}

// Count возвращает общее количество пар
func (r *PairRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pairs`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsBySymbols проверяет наличие пары с такими инструментами
func (r *PairRepository) ExistsBySymbols(symbolA, symbolB string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM pairs WHERE symbol_a = $1 AND symbol_b = $2)`,
		symbolA, symbolB,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// checkAffected превращает нулевой rowsAffected в ErrPairNotFound
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPairNotFound
	}
	return nil
}

// isUniqueViolation распознает нарушение уникальности Postgres
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
