package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     float64
		wantRate  float64
		wantBurst float64
	}{
		{"explicit values", 20, 40, 20, 40},
		{"zero rate", 0, 0, 10, 20},
		{"negative rate", -5, 10, 10, 10},
		{"burst below rate", 20, 5, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rate, tt.burst)
			if rl.Rate() != tt.wantRate {
				t.Errorf("Rate() = %v, want %v", rl.Rate(), tt.wantRate)
			}
			if rl.Burst() != tt.wantBurst {
				t.Errorf("Burst() = %v, want %v", rl.Burst(), tt.wantBurst)
			}
		})
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	rl := New(1, 5)

	// Полное ведро: первые burst запросов проходят
	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}

	// Ведро пусто, rate 1/сек не успел пополнить
	if rl.Allow() {
		t.Error("request beyond burst should be denied")
	}
}

func TestAllow_Refills(t *testing.T) {
	rl := New(100, 1)

	if !rl.Allow() {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow() {
		t.Fatal("bucket should be empty")
	}

	// 100 токенов/сек: за 50мс накопится как минимум один
	time.Sleep(50 * time.Millisecond)

	if !rl.Allow() {
		t.Error("bucket should have refilled")
	}
}

func TestWait_RespectsContext(t *testing.T) {
	rl := New(0.1, 1) // пополнение раз в 10 секунд
	rl.Allow()        // опустошаем ведро

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Wait() = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestWait_Succeeds(t *testing.T) {
	rl := New(100, 1)
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}
