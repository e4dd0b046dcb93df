package bot

import (
	"time"

	"statarb/internal/models"
)

// ValidTransitions - таблица допустимых переходов состояний пары
//
// Жизненный цикл: FLAT -> ENTERING -> OPEN -> EXITING -> FLAT.
// STUCK - терминальное состояние после исчерпания ретраев исполнения,
// достижимо только из ENTERING/EXITING; выход из него - ручной сброс
// в PAUSED через операторский API. ENTERING -> FLAT - откат входа
// (reject или RiskRejected после частичного цикла).
var ValidTransitions = map[string][]string{
	models.StatePaused:   {models.StateFlat},
	models.StateFlat:     {models.StatePaused, models.StateEntering},
	models.StateEntering: {models.StateOpen, models.StateFlat, models.StateStuck},
	models.StateOpen:     {models.StateExiting},
	models.StateExiting:  {models.StateFlat, models.StatePaused, models.StateStuck},
	models.StateStuck:    {models.StatePaused},
}

// CanTransition проверяет допустимость перехода по таблице
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}

// TryTransition выполняет переход, если он допустим
//
// Мутирует только State и LastUpdate. Вызывающая сторона держит
// блокировку пары.
func TryTransition(runtime *models.PairRuntime, pairID int, to string) error {
	if !CanTransition(runtime.State, to) {
		return &StateTransitionError{PairID: pairID, From: runtime.State, To: to}
	}
	runtime.State = to
	runtime.LastUpdate = time.Now()
	return nil
}

// ForceTransition выполняет переход в обход таблицы
//
// Только для аварийных сценариев: пометка STUCK при shutdown и ручной
// сброс оператором. В нормальном потоке использовать TryTransition.
func ForceTransition(runtime *models.PairRuntime, to string) {
	runtime.State = to
	runtime.LastUpdate = time.Now()
}

// StateInfo возвращает человекочитаемое описание состояния
func StateInfo(state string) string {
	switch state {
	case models.StatePaused:
		return "Пара на паузе, тики пропускаются"
	case models.StateFlat:
		return "Позиции нет, идет поиск входа"
	case models.StateEntering:
		return "Открытие позиции, ожидание подтверждения"
	case models.StateOpen:
		return "Позиция открыта, мониторинг выхода"
	case models.StateExiting:
		return "Закрытие позиции, ожидание подтверждения"
	case models.StateStuck:
		return "Исполнение не подтверждено, требуется ручное вмешательство"
	default:
		return "Неизвестное состояние"
	}
}

// IsActive сообщает, участвует ли пара в торговом цикле
func IsActive(state string) bool {
	return state == models.StateEntering || state == models.StateOpen || state == models.StateExiting
}

// HasOpenPosition сообщает, есть ли у пары позиция на рынке
func HasOpenPosition(state string) bool {
	return state == models.StateOpen || state == models.StateExiting
}

// IsTerminal сообщает, требует ли состояние ручного вмешательства
func IsTerminal(state string) bool {
	return state == models.StateStuck
}
