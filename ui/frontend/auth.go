package frontend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/youssefsiam38/taskpg/auth"
)

type sessionKey struct{}

// sessionFrom returns the session attached by authMiddleware, or nil.
func sessionFrom(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return session
}

// authMiddleware redirects anonymous visitors to the login page. A recovery
// session can only reach the password page until the password is changed.
func (rt *router[TTx]) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(rt.config.CookieName); err == nil {
			token = c.Value
		}

		session, err := rt.auth.Session(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidSession) && !errors.Is(err, auth.ErrSessionExpired) {
				rt.serverError(w, r, err)
				return
			}
			rt.clearCookie(w)
			rt.redirect(w, r, "/login?next="+url.QueryEscape(rt.path(r.URL.RequestURI())))
			return
		}

		if session.Recovery() && r.URL.Path != "/password" && r.URL.Path != "/logout" {
			rt.redirect(w, r, "/password")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (rt *router[TTx]) setCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     rt.config.CookieName,
		Value:    session.Token,
		Path:     rt.cookiePath(),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   rt.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (rt *router[TTx]) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   rt.config.CookieName,
		Value:  "",
		Path:   rt.cookiePath(),
		MaxAge: -1,
	})
}

func (rt *router[TTx]) cookiePath() string {
	if rt.config.BasePath == "" {
		return "/"
	}
	return rt.config.BasePath
}

// path prefixes p with the base path.
func (rt *router[TTx]) path(p string) string {
	return rt.config.BasePath + p
}

// redirect sends a 303 to a path under the base path.
func (rt *router[TTx]) redirect(w http.ResponseWriter, r *http.Request, p string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", rt.path(p))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, rt.path(p), http.StatusSeeOther)
}

// safeNext accepts only local absolute paths as a post-login target.
func (rt *router[TTx]) safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return rt.path("/")
	}
	return next
}

func (rt *router[TTx]) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	rt.renderLogin(w, r, http.StatusOK, r.URL.Query().Get("next"), "")
}

func (rt *router[TTx]) renderLogin(w http.ResponseWriter, r *http.Request, status int, next, errorMsg string) {
	p := page{Title: "Sign in", Status: status, Data: map[string]any{"Next": next}}
	if errorMsg != "" {
		p.Flash = &FlashMessage{Type: "error", Message: errorMsg}
	}
	if err := rt.renderer.render(w, r, "login.html", p); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	next := r.FormValue("next")

	session, err := rt.auth.SignIn(r.Context(), r.FormValue("email"), r.FormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		rt.renderLogin(w, r, http.StatusUnauthorized, next, "Invalid email or password")
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}

	rt.setCookie(w, session)
	http.Redirect(w, r, rt.safeNext(next), http.StatusSeeOther)
}

func (rt *router[TTx]) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := rt.auth.SignOut(r.Context(), sessionFrom(r.Context()).Token); err != nil {
		rt.logError("sign out failed", err)
	}
	rt.clearCookie(w)
	rt.redirect(w, r, "/login")
}

func (rt *router[TTx]) handlePasswordPage(w http.ResponseWriter, r *http.Request) {
	rt.renderPassword(w, r, http.StatusOK, nil)
}

func (rt *router[TTx]) renderPassword(w http.ResponseWriter, r *http.Request, status int, flash *FlashMessage) {
	p := page{
		Title:  "Change password",
		Status: status,
		Flash:  flash,
		Data:   map[string]any{"Recovery": sessionFrom(r.Context()).Recovery()},
	}
	if err := rt.renderer.render(w, r, "password.html", p); err != nil {
		rt.serverError(w, r, err)
	}
}

// handleUpdatePassword changes the password. A recovery session is swapped
// for a regular one signed in with the new password.
func (rt *router[TTx]) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	session := sessionFrom(r.Context())
	password := r.FormValue("password")

	if password != r.FormValue("confirm") {
		rt.renderPassword(w, r, http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: "Passwords do not match"})
		return
	}
	err := rt.auth.UpdatePassword(r.Context(), session.Token, password)
	if errors.Is(err, auth.ErrWeakPassword) {
		rt.renderPassword(w, r, http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: err.Error()})
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}

	if session.Recovery() {
		if err := rt.auth.SignOut(r.Context(), session.Token); err != nil {
			rt.logError("ending recovery session failed", err)
		}
		fresh, err := rt.auth.SignIn(r.Context(), session.Profile.Email, password)
		if err != nil {
			rt.serverError(w, r, err)
			return
		}
		rt.setCookie(w, fresh)
		rt.redirect(w, r, "/")
		return
	}

	rt.renderPassword(w, r, http.StatusOK, &FlashMessage{Type: "success", Message: "Password updated"})
}

func (rt *router[TTx]) handleRecoverPage(w http.ResponseWriter, r *http.Request) {
	if err := rt.renderer.render(w, r, "recover.html", page{Title: "Reset password"}); err != nil {
		rt.serverError(w, r, err)
	}
}

// handleRequestRecovery issues a recovery link. The response is the same for
// known and unknown addresses; the link is logged for the operator to send.
func (rt *router[TTx]) handleRequestRecovery(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))

	token, err := rt.auth.RequestRecovery(r.Context(), email)
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	if token != "" && rt.config.Logger != nil {
		rt.config.Logger.Info("password recovery link issued", "email", email, "path", rt.path("/recover/"+token))
	}

	p := page{
		Title: "Reset password",
		Flash: &FlashMessage{Type: "info", Message: "If the address is registered, a reset link is on its way."},
	}
	if err := rt.renderer.render(w, r, "recover.html", p); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) handleRecover(w http.ResponseWriter, r *http.Request) {
	session, err := rt.auth.Recover(r.Context(), r.PathValue("token"))
	if errors.Is(err, auth.ErrInvalidRecoveryToken) {
		p := page{
			Title:  "Reset password",
			Status: http.StatusGone,
			Flash:  &FlashMessage{Type: "error", Message: "This reset link is invalid or has expired."},
		}
		if err := rt.renderer.render(w, r, "recover.html", p); err != nil {
			rt.serverError(w, r, err)
		}
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	rt.setCookie(w, session)
	rt.redirect(w, r, "/password")
}
