package http

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"emicalc/internal/core"
	"emicalc/internal/session"
)

// SessionCookie carries the calculator session id.
const SessionCookie = "emicalc_session"

// sessionID returns the caller's session id, issuing a new one when the
// cookie is missing or malformed. The cookie is refreshed on every call so
// it expires together with the stored session.
func sessionID(w http.ResponseWriter, r *http.Request, ttl time.Duration) string {
	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
		id = c.Value
	} else {
		id = session.NewID()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// calculatorView is the data of the calculator templates.
type calculatorView struct {
	Inputs      core.Inputs
	Results     core.Results
	Limits      core.Limits
	NumPayments int
	Chart       template.HTML
}

func newCalculatorView(s core.Snapshot, limits core.Limits) calculatorView {
	return calculatorView{
		Inputs:      s.Inputs,
		Results:     s.Results,
		Limits:      limits,
		NumPayments: s.NumPayments(),
	}
}

var templateFuncs = template.FuncMap{
	"money":  core.FormatMoney,
	"amount": core.FormatAmount,
	"rate":   core.FormatRate,
}
