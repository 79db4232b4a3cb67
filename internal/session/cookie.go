package session

import (
	"net/http"
	"strings"
	"time"
)

// Source tells where a request token was read from.
type Source int

const (
	SourceNone Source = iota
	SourceCookie
	SourceBearer
)

// TokenFromRequest reads the session token from an Authorization bearer header or, failing
// that, from the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) (string, Source) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token := strings.TrimSpace(value); token != "" {
				return token, SourceBearer
			}
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, SourceCookie
	}
	return "", SourceNone
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, name, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
