package bot

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable - согласованный рыночный снимок недоступен или
// протух. Пара пропускается на текущем тике, состояние не мутирует.
var ErrDataUnavailable = errors.New("market data unavailable")

// ErrSeriesNotReady - окно статистики еще не прогрето, z-score не определен
var ErrSeriesNotReady = errors.New("spread series not ready")

// RiskRejectedError - кандидат на вход отвергнут риск-движком.
// Не фатально: логируется, пара остается FLAT.
type RiskRejectedError struct {
	PairID int
	Reason string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("risk rejected for pair %d: %s", e.PairID, e.Reason)
}

// ExecutionFailedError - операция исполнения не подтвердилась.
// Ретраится с бэкоффом; после исчерпания попыток пара уходит в STUCK.
type ExecutionFailedError struct {
	PairID  int
	Op      string // open | close
	Status  string // статус последнего отчета, если был
	Attempt int
	Err     error
}

func (e *ExecutionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution %s failed for pair %d (attempt %d): %v", e.Op, e.PairID, e.Attempt, e.Err)
	}
	return fmt.Sprintf("execution %s failed for pair %d (attempt %d): status %s", e.Op, e.PairID, e.Attempt, e.Status)
}

func (e *ExecutionFailedError) Unwrap() error {
	return e.Err
}

// InvariantViolationError - нарушение инварианта учета корзины.
// Новые входы запрещаются по всей корзине; открытые позиции
// продолжают мониториться только на выход.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}

// StateTransitionError - запрошен переход, отсутствующий в таблице
type StateTransitionError struct {
	PairID int
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition for pair %d: %s -> %s", e.PairID, e.From, e.To)
}
