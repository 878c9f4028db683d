package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/itsmewidii/fitriacookry/internal/config"
)

const (
	KindSuccess = "success"
	KindError   = "error"
)

// Message is a one-shot notice shown on the next rendered page.
type Message struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Module provides the flash store to Fx.
var Module = fx.Provide(NewStore)

// Store keeps flash messages in a short lived cookie.
type Store struct {
	name   string
	secure bool
}

// NewStore builds a cookie store from HTTP settings.
func NewStore(cfg config.Config) *Store {
	return &Store{name: cfg.HTTP.CookieKey, secure: cfg.HTTP.SecureCookie}
}

// Success queues a success notice.
func (s *Store) Success(c echo.Context, title, text string) {
	s.Set(c, Message{Kind: KindSuccess, Title: title, Text: text})
}

// Error queues a failure notice.
func (s *Store) Error(c echo.Context, title, text string) {
	s.Set(c, Message{Kind: KindError, Title: title, Text: text})
}

// Set queues m for the next request.
func (s *Store) Set(c echo.Context, m Message) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.SetCookie(s.cookie(base64.RawURLEncoding.EncodeToString(raw), 0))
}

// Pop returns the queued message, if any, and clears it.
func (s *Store) Pop(c echo.Context) *Message {
	ck, err := c.Cookie(s.name)
	if err != nil || ck.Value == "" {
		return nil
	}
	c.SetCookie(s.cookie("", -1))

	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return nil
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &m
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
