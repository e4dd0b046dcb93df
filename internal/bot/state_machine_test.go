package bot

import (
	"errors"
	"testing"

	"statarb/internal/models"
)

func TestCanTransitionValid(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"паузу снимают в FLAT", models.StatePaused, models.StateFlat},
		{"FLAT ставят на паузу", models.StateFlat, models.StatePaused},
		{"вход из FLAT", models.StateFlat, models.StateEntering},
		{"вход подтвержден", models.StateEntering, models.StateOpen},
		{"откат входа", models.StateEntering, models.StateFlat},
		{"вход застрял", models.StateEntering, models.StateStuck},
		{"начало выхода", models.StateOpen, models.StateExiting},
		{"выход подтвержден", models.StateExiting, models.StateFlat},
		{"стоп-аут с паузой", models.StateExiting, models.StatePaused},
		{"выход застрял", models.StateExiting, models.StateStuck},
		{"ручной сброс STUCK", models.StateStuck, models.StatePaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !CanTransition(tt.from, tt.to) {
				t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
			}
		})
	}
}

func TestCanTransitionInvalid(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
	}{
		{"разворот OPEN во вход", models.StateOpen, models.StateEntering},
		{"OPEN сразу во FLAT", models.StateOpen, models.StateFlat},
		{"OPEN в STUCK напрямую", models.StateOpen, models.StateStuck},
		{"FLAT сразу в OPEN", models.StateFlat, models.StateOpen},
		{"FLAT в STUCK", models.StateFlat, models.StateStuck},
		{"вход из паузы", models.StatePaused, models.StateEntering},
		{"STUCK обратно в торговлю", models.StateStuck, models.StateFlat},
		{"STUCK в OPEN", models.StateStuck, models.StateOpen},
		{"EXITING обратно в OPEN", models.StateExiting, models.StateOpen},
		{"самопереход", models.StateOpen, models.StateOpen},
		{"неизвестное состояние", "UNKNOWN", models.StateFlat},
		{"в неизвестное состояние", models.StateFlat, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if CanTransition(tt.from, tt.to) {
				t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
			}
		})
	}
}

// Мета-тест: таблица покрывает все состояния и не содержит петель
func TestValidTransitionsTableConsistency(t *testing.T) {
	allStates := []string{
		models.StatePaused, models.StateFlat, models.StateEntering,
		models.StateOpen, models.StateExiting, models.StateStuck,
	}

	for _, state := range allStates {
		if _, ok := ValidTransitions[state]; !ok {
			t.Errorf("state %s missing from transition table", state)
		}
	}

	known := make(map[string]bool, len(allStates))
	for _, s := range allStates {
		known[s] = true
	}

	for from, targets := range ValidTransitions {
		for _, to := range targets {
			if from == to {
				t.Errorf("self-loop %s -> %s", from, to)
			}
			if !known[to] {
				t.Errorf("transition %s -> %s targets unknown state", from, to)
			}
		}
	}
}

// STUCK достижим только из ENTERING и EXITING
func TestStuckReachableOnlyFromExecutionStates(t *testing.T) {
	for from, targets := range ValidTransitions {
		for _, to := range targets {
			if to != models.StateStuck {
				continue
			}
			if from != models.StateEntering && from != models.StateExiting {
				t.Errorf("STUCK reachable from %s", from)
			}
		}
	}
}

func TestFullLifecycleCycles(t *testing.T) {
	cycles := []struct {
		name  string
		chain []string
	}{
		{"нормальный цикл", []string{
			models.StateFlat, models.StateEntering, models.StateOpen,
			models.StateExiting, models.StateFlat,
		}},
		{"стоп-аут с паузой", []string{
			models.StateFlat, models.StateEntering, models.StateOpen,
			models.StateExiting, models.StatePaused, models.StateFlat,
		}},
		{"откат входа", []string{
			models.StateFlat, models.StateEntering, models.StateFlat,
		}},
		{"застрявший выход и сброс", []string{
			models.StateOpen, models.StateExiting, models.StateStuck,
			models.StatePaused, models.StateFlat,
		}},
	}

	for _, tt := range cycles {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < len(tt.chain)-1; i++ {
				if !CanTransition(tt.chain[i], tt.chain[i+1]) {
					t.Fatalf("step %d: %s -> %s not allowed", i, tt.chain[i], tt.chain[i+1])
				}
			}
		})
	}
}

func TestTryTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"допустимый переход", models.StateFlat, models.StateEntering, false},
		{"недопустимый переход", models.StateOpen, models.StateFlat, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := &models.PairRuntime{PairID: 1, State: tt.from}

			err := TryTransition(runtime, 1, tt.to)
			if tt.wantErr {
				var transErr *StateTransitionError
				if !errors.As(err, &transErr) {
					t.Fatalf("TryTransition() error = %v, want StateTransitionError", err)
				}
				if runtime.State != tt.from {
					t.Errorf("state mutated on failed transition: %s", runtime.State)
				}
				return
			}

			if err != nil {
				t.Fatalf("TryTransition() error = %v", err)
			}
			if runtime.State != tt.to {
				t.Errorf("state = %s, want %s", runtime.State, tt.to)
			}
			if runtime.LastUpdate.IsZero() {
				t.Error("LastUpdate not stamped")
			}
		})
	}
}

func TestForceTransition(t *testing.T) {
	runtime := &models.PairRuntime{PairID: 1, State: models.StateEntering}

	// Аварийная пометка STUCK при shutdown идет в обход таблицы
	ForceTransition(runtime, models.StateStuck)
	if runtime.State != models.StateStuck {
		t.Errorf("state = %s, want STUCK", runtime.State)
	}
}

func TestStatePredicates(t *testing.T) {
	tests := []struct {
		state       string
		active      bool
		hasPosition bool
		terminal    bool
	}{
		{models.StatePaused, false, false, false},
		{models.StateFlat, false, false, false},
		{models.StateEntering, true, false, false},
		{models.StateOpen, true, true, false},
		{models.StateExiting, true, true, false},
		{models.StateStuck, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := IsActive(tt.state); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := HasOpenPosition(tt.state); got != tt.hasPosition {
				t.Errorf("HasOpenPosition() = %v, want %v", got, tt.hasPosition)
			}
			if got := IsTerminal(tt.state); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestStateInfoCoversAllStates(t *testing.T) {
	for state := range ValidTransitions {
		if StateInfo(state) == "Неизвестное состояние" {
			t.Errorf("StateInfo(%s) has no description", state)
		}
	}
	if StateInfo("GARBAGE") != "Неизвестное состояние" {
		t.Error("StateInfo should fall back for unknown states")
	}
}

func BenchmarkCanTransition(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CanTransition(models.StateFlat, models.StateEntering)
	}
}

func BenchmarkTryTransition(b *testing.B) {
	runtime := &models.PairRuntime{PairID: 1, State: models.StateFlat}
	for i := 0; i < b.N; i++ {
		runtime.State = models.StateFlat
		if err := TryTransition(runtime, 1, models.StateEntering); err != nil {
			b.Fatal(err)
		}
	}
}
