package middleware

import (
	"crypto/subtle"
	"net/http"

	"statarb/internal/config"
	"statarb/pkg/crypto"
)

// BasicAuth - HTTP Basic аутентификация для API
//
// Пароль проверяется против bcrypt-хеша из конфигурации; хеш никогда
// не сравнивается с открытым текстом. При AllowAnonymous (dev-режим)
// проверка отключена.
func BasicAuth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok {
				unauthorized(w)
				return
			}

			// Сравнение имени constant-time, пароль - через bcrypt
			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username)) == 1
			passMatch := crypto.CheckPasswordMatch(pass, cfg.PasswordHash)

			if !userMatch || !passMatch {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="statarb"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
