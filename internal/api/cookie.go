package api

import (
	"net/http"
	"strings"
	"time"
)

const defaultRefreshCookieName = "refreshToken"

func (s *Server) refreshCookieName() string {
	if s.cfg.RefreshCookie.Name == "" {
		return defaultRefreshCookieName
	}
	return s.cfg.RefreshCookie.Name
}

// setRefreshCookie stores the raw refresh token in an HttpOnly cookie that
// expires with the token.
func (s *Server) setRefreshCookie(w http.ResponseWriter, raw string, expires time.Time) {
	http.SetCookie(w, s.refreshCookie(raw, expires, int(time.Until(expires).Seconds())))
}

// clearRefreshCookie tells the browser to drop the refresh cookie.
func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.refreshCookie("", time.Unix(0, 0), -1))
}

func (s *Server) refreshCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	c := s.cfg.RefreshCookie
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     s.refreshCookieName(),
		Value:    value,
		Path:     path,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: sameSite(c.SameSite),
	}
}

// refreshTokenFromCookie returns the raw refresh token, or "" when absent.
func (s *Server) refreshTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.refreshCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
