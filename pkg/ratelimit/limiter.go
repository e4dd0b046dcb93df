package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - token bucket для ограничения частоты запросов
// к операторскому API
//
// Ведро наполняется токенами с постоянной скоростью (rate токенов/сек)
// до емкости burst; каждый запрос потребляет один токен. Burst
// позволяет короткие всплески (страница UI грузит несколько endpoint'ов
// разом), при постоянном потоке нагрузка сглаживается до rate.
//
// Использование:
//
//	limiter := ratelimit.New(20, 40) // 20 req/sec, burst 40
//	if limiter.Allow() { ... }       // неблокирующая проверка
//	err := limiter.Wait(ctx)         // блокирующее ожидание
type RateLimiter struct {
	rate       float64 // токенов в секунду
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// New создает rate limiter. Некорректные параметры заменяются
// дефолтами: rate 10/сек, burst = 2*rate.
func New(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // стартуем с полным ведром
		lastRefill: time.Now(),
	}
}

// refill пополняет токены; вызывается под mu
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}

	rl.lastRefill = now
}

// Allow проверяет доступность токена без блокировки
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	return false
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tokens возвращает текущее количество доступных токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate возвращает скорость пополнения (токенов/сек)
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst возвращает емкость ведра
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}
