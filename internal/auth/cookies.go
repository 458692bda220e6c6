package auth

import (
	"net/http"
	"time"
)

const (
	TokenCookieName     = "token"
	defaultCookieMaxAge = 15 * time.Minute
)

// Cookies sets and clears the session token cookie. Set and Clear share
// the same attributes so browsers match them to the same cookie.
type Cookies struct {
	Name   string
	Secure bool
	MaxAge time.Duration
	now    func() time.Time
}

func NewCookies(secure bool, maxAge time.Duration) *Cookies {
	if maxAge <= 0 {
		maxAge = defaultCookieMaxAge
	}
	return &Cookies{
		Name:   TokenCookieName,
		Secure: secure,
		MaxAge: maxAge,
		now:    time.Now,
	}
}

func (c *Cookies) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c *Cookies) Set(w http.ResponseWriter, value string) {
	cookie := c.base()
	cookie.Value = value
	cookie.MaxAge = int(c.MaxAge.Seconds())
	cookie.Expires = c.now().UTC().Add(c.MaxAge)
	http.SetCookie(w, cookie)
}

func (c *Cookies) Clear(w http.ResponseWriter) {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, cookie)
}

func (c *Cookies) Get(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
