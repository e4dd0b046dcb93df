package service

import (
	"context"
	"errors"
	"strings"

	"statarb/internal/models"
	"statarb/internal/repository"
)

// Ошибки сервиса пар
var (
	ErrPairNotFound        = errors.New("pair not found")
	ErrPairAlreadyExists   = errors.New("pair with these symbols already exists")
	ErrInvalidSymbols      = errors.New("pair requires two distinct non-empty symbols")
	ErrInvalidBeta         = errors.New("beta must be greater than 0")
	ErrInvalidWindow       = errors.New("window must be at least 2")
	ErrInvalidMinPeriods   = errors.New("min periods must be at least 2 and not exceed window")
	ErrInvalidThresholds   = errors.New("entry z must be greater than exit z, exit z must be non-negative")
	ErrInvalidRiskPct      = errors.New("risk percent must be in (0, 100]")
	ErrInvalidStopPct      = errors.New("stop percent must be in (0, 1)")
	ErrInvalidLeverage     = errors.New("max leverage must be at least 1")
	ErrInvalidMaxHold      = errors.New("max hold minutes must be non-negative")
	ErrPairHasOpenPosition = errors.New("pair has an open position")
	ErrMaxPairsReached     = errors.New("maximum number of pairs reached")
)

// MaxPairs ограничивает размер вселенной: секторная комбинаторика
// PAIRS_JSON растет квадратично
const MaxPairs = 50

// PairStatus - конфигурация пары вместе с ее runtime состоянием
type PairStatus struct {
	Config  *models.PairConfig  `json:"config"`
	Runtime *models.PairRuntime `json:"runtime,omitempty"`
}

// PairService - бизнес-логика управления парами
//
// Репозиторий - источник истины по конфигурации; движок держит
// runtime. Сервис согласует обоих: мутации сперва проходят движок
// (он может отвергнуть переход), затем персистятся.
type PairService struct {
	pairRepo PairRepositoryInterface
	engine   BotEngine
}

// NewPairService создает новый экземпляр сервиса пар
func NewPairService(pairRepo PairRepositoryInterface) *PairService {
	return &PairService{pairRepo: pairRepo}
}

// SetEngine устанавливает торговый движок.
// Вызывается после инициализации Engine.
func (s *PairService) SetEngine(engine BotEngine) {
	s.engine = engine
}

// CreatePair создает новую пару (в статусе paused)
func (s *PairService) CreatePair(cfg *models.PairConfig) error {
	cfg.SymbolA = strings.ToUpper(strings.TrimSpace(cfg.SymbolA))
	cfg.SymbolB = strings.ToUpper(strings.TrimSpace(cfg.SymbolB))

	if err := validatePairParams(cfg); err != nil {
		return err
	}

	count, err := s.pairRepo.Count()
	if err != nil {
		return err
	}
	if count >= MaxPairs {
		return ErrMaxPairsReached
	}

	exists, err := s.pairRepo.ExistsBySymbols(cfg.SymbolA, cfg.SymbolB)
	if err != nil {
		return err
	}
	if exists {
		return ErrPairAlreadyExists
	}

	// Новая пара всегда стартует на паузе: оператор запускает явно
	cfg.Status = models.PairStatusPaused

	if err := s.pairRepo.Create(cfg); err != nil {
		if errors.Is(err, repository.ErrPairExists) {
			return ErrPairAlreadyExists
		}
		return err
	}

	if s.engine != nil {
		return s.engine.AddPair(cfg)
	}
	return nil
}

// GetPair возвращает конфигурацию пары
func (s *PairService) GetPair(id int) (*models.PairConfig, error) {
	pair, err := s.pairRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// GetPairs возвращает все пары
func (s *PairService) GetPairs() ([]*models.PairConfig, error) {
	return s.pairRepo.GetAll()
}

// GetPairStatus возвращает пару вместе с runtime состоянием
func (s *PairService) GetPairStatus(id int) (*PairStatus, error) {
	pair, err := s.GetPair(id)
	if err != nil {
		return nil, err
	}

	status := &PairStatus{Config: pair}
	if s.engine != nil {
		if rt, err := s.engine.GetPairRuntime(id); err == nil {
			status.Runtime = rt
		}
	}
	return status, nil
}

// GetAllStatuses возвращает все пары с runtime состоянием
func (s *PairService) GetAllStatuses() ([]*PairStatus, error) {
	pairs, err := s.pairRepo.GetAll()
	if err != nil {
		return nil, err
	}

	statuses := make([]*PairStatus, 0, len(pairs))
	for _, pair := range pairs {
		status := &PairStatus{Config: pair}
		if s.engine != nil {
			if rt, err := s.engine.GetPairRuntime(pair.ID); err == nil {
				status.Runtime = rt
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// UpdatePairParams - частичное обновление параметров пары
type UpdatePairParams struct {
	Sector         *string  `json:"sector,omitempty"`
	Beta           *float64 `json:"beta,omitempty"`
	Window         *int     `json:"window,omitempty"`
	MinPeriods     *int     `json:"min_periods,omitempty"`
	EntryZ         *float64 `json:"entry_z,omitempty"`
	ExitZ          *float64 `json:"exit_z,omitempty"`
	RiskPct        *float64 `json:"risk_pct,omitempty"`
	StopPct        *float64 `json:"stop_pct,omitempty"`
	MaxLeverage    *float64 `json:"max_leverage,omitempty"`
	MaxHoldMinutes *int     `json:"max_hold_minutes,omitempty"`
}

// UpdatePair обновляет параметры пары
//
// С открытой позицией редактирование запрещено: смена beta или окна
// на лету ломает учет уже открытых ног.
func (s *PairService) UpdatePair(id int, params UpdatePairParams) (*models.PairConfig, error) {
	pair, err := s.GetPair(id)
	if err != nil {
		return nil, err
	}

	if s.engine != nil && s.engine.HasOpenPosition(id) {
		return nil, ErrPairHasOpenPosition
	}

	if params.Sector != nil {
		pair.Sector = *params.Sector
	}
	if params.Beta != nil {
		pair.Beta = *params.Beta
	}
	if params.Window != nil {
		pair.Window = *params.Window
	}
	if params.MinPeriods != nil {
		pair.MinPeriods = *params.MinPeriods
	}
	if params.EntryZ != nil {
		pair.EntryZ = *params.EntryZ
	}
	if params.ExitZ != nil {
		pair.ExitZ = *params.ExitZ
	}
	if params.RiskPct != nil {
		pair.RiskPct = *params.RiskPct
	}
	if params.StopPct != nil {
		pair.StopPct = *params.StopPct
	}
	if params.MaxLeverage != nil {
		pair.MaxLeverage = *params.MaxLeverage
	}
	if params.MaxHoldMinutes != nil {
		pair.MaxHoldMinutes = *params.MaxHoldMinutes
	}

	if err := validatePairParams(pair); err != nil {
		return nil, err
	}

	if err := s.pairRepo.Update(pair); err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	if s.engine != nil {
		if err := s.engine.UpdatePairConfig(pair); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

// DeletePair удаляет пару. С открытой позицией удаление запрещено.
func (s *PairService) DeletePair(id int) error {
	if _, err := s.GetPair(id); err != nil {
		return err
	}

	if s.engine != nil {
		if s.engine.HasOpenPosition(id) {
			return ErrPairHasOpenPosition
		}
		if err := s.engine.RemovePair(id); err != nil {
			return err
		}
	}

	if err := s.pairRepo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return ErrPairNotFound
		}
		return err
	}
	return nil
}

// StartPair запускает мониторинг пары (PAUSED -> FLAT)
func (s *PairService) StartPair(id int) error {
	if s.engine != nil {
		if err := s.engine.StartPair(id); err != nil {
			return err
		}
	}
	return s.updateStatus(id, models.PairStatusActive)
}

// PausePair ставит пару на паузу. Открытая позиция не закрывается:
// движок доведет ее до выхода и оставит пару в PAUSED.
func (s *PairService) PausePair(id int) error {
	if s.engine != nil {
		if err := s.engine.PausePair(id); err != nil {
			return err
		}
	}
	return s.updateStatus(id, models.PairStatusPaused)
}

// ResetStuckPair возвращает STUCK-пару в PAUSED после ручной сверки
// позиций на бирже
func (s *PairService) ResetStuckPair(id int) error {
	if s.engine != nil {
		if err := s.engine.ResetStuckPair(id); err != nil {
			return err
		}
	}
	return s.updateStatus(id, models.PairStatusPaused)
}

// ForceClosePair принудительно закрывает позицию пары
func (s *PairService) ForceClosePair(ctx context.Context, id int) error {
	if s.engine == nil {
		return ErrPairNotFound
	}
	return s.engine.ForceClosePair(ctx, id)
}

func (s *PairService) updateStatus(id int, status string) error {
	if err := s.pairRepo.UpdateStatus(id, status); err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return ErrPairNotFound
		}
		return err
	}
	return nil
}

// validatePairParams проверяет параметры пары
func validatePairParams(cfg *models.PairConfig) error {
	if cfg.SymbolA == "" || cfg.SymbolB == "" || cfg.SymbolA == cfg.SymbolB {
		return ErrInvalidSymbols
	}
	if cfg.Beta <= 0 {
		return ErrInvalidBeta
	}
	if cfg.Window < 2 {
		return ErrInvalidWindow
	}
	if cfg.MinPeriods < 2 || cfg.MinPeriods > cfg.Window {
		return ErrInvalidMinPeriods
	}
	// Нулевые пороги означают "взять из глобальных настроек"
	if cfg.EntryZ != 0 || cfg.ExitZ != 0 {
		if cfg.ExitZ < 0 || cfg.EntryZ <= cfg.ExitZ {
			return ErrInvalidThresholds
		}
	}
	if cfg.RiskPct != 0 && (cfg.RiskPct < 0 || cfg.RiskPct > 100) {
		return ErrInvalidRiskPct
	}
	if cfg.StopPct != 0 && (cfg.StopPct < 0 || cfg.StopPct >= 1) {
		return ErrInvalidStopPct
	}
	if cfg.MaxLeverage != 0 && cfg.MaxLeverage < 1 {
		return ErrInvalidLeverage
	}
	if cfg.MaxHoldMinutes < 0 {
		return ErrInvalidMaxHold
	}
	return nil
}
