package exchange

import (
	"context"
	"fmt"

	"statarb/internal/models"
)

// MarketDataPort - источник согласованных рыночных снимков по паре
//
// Реализация обязана вернуть данные одного момента времени по обеим
// ногам. Если согласованный снимок недоступен или протух, возвращается
// ошибка, которую движок трактует как DataUnavailable: пара
// пропускается на этом тике без мутации состояния.
type MarketDataPort interface {
	GetSnapshot(ctx context.Context, pair *models.PairConfig) (*models.MarketSnapshot, error)
}

// Статусы исполнения
const (
	StatusFilled   = "filled"
	StatusRejected = "rejected"
	StatusPartial  = "partial"
)

// OpenRequest - заявка на открытие хеджированной позиции
type OpenRequest struct {
	Pair      *models.PairConfig
	Direction string // models.DirectionLong | models.DirectionShort
	QtyA      float64
	QtyB      float64
}

// ExecutionReport - результат атомарной операции над обеими ногами
type ExecutionReport struct {
	Status string

	FillPriceA float64
	FillPriceB float64
	FilledQtyA float64
	FilledQtyB float64
}

// Filled сообщает, исполнены ли обе ноги полностью
func (r *ExecutionReport) Filled() bool {
	return r.Status == StatusFilled
}

// ExecutionPort - исполнение хеджированных позиций
//
// Обе ноги открываются/закрываются одной операцией. Partial - обе ноги
// приняты, но исполнение неполное; вызывающая сторона решает, повторять
// или уходить в STUCK.
type ExecutionPort interface {
	OpenHedged(ctx context.Context, req *OpenRequest) (*ExecutionReport, error)
	CloseHedged(ctx context.Context, pos *models.Position) (*ExecutionReport, error)
}

// PortError - ошибка порта с контекстом операции
type PortError struct {
	Op      string
	Message string
	Err     error
}

func (e *PortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PortError) Unwrap() error {
	return e.Err
}
