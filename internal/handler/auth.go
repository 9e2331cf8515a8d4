package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, sign-in and the GitHub OAuth flow.
//
// Email+password and GitHub sign-in both end in the same JWT. The REST
// endpoints return it in the body; the GitHub callback, which is a browser
// redirect, sets it as an HttpOnly cookie and also hands it to the SPA in the
// URL fragment (fragments never reach server logs).
type AuthHandler struct {
	svc          *service.AuthService
	github       *auth.GitHubProvider // nil when GitHub sign-in is not configured
	tokenTTL     time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, github *auth.GitHubProvider, tokenTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, github: github, tokenTTL: tokenTTL, secureCookie: secureCookie, logger: logger}
}

// GitHubEnabled reports whether the GitHub routes should be mounted.
func (h *AuthHandler) GitHubEnabled() bool { return h.github != nil }

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register {"name","email","password"}
// 201 {"ok":true,"user":{...},"token":"<jwt>"}; 409 when the email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"user": res.User, "token": res.Token})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/login {"email","password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": res.User, "token": res.Token})
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": user})
}

// HandleLogout clears the token cookie. Tokens are stateless, so a bearer
// token held by the SPA stays valid until it expires.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, http.StatusOK, envelope{"message": "Logged out"})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match, which proves
// the flow was started by this browser.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub profile
//  3. Find, link or create the local user
//  4. Set the token cookie and redirect to the SPA with the token in the fragment
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Redirect(w, r, "/login?error=state", http.StatusSeeOther)
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/login?error=denied", http.StatusSeeOther)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login?error=code", http.StatusSeeOther)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/login?error=github", http.StatusSeeOther)
		return
	}
	res, err := h.svc.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github callback: sign-in failed",
			slog.Int64("github_id", ghUser.ID), slog.String("error", err.Error()))
		http.Redirect(w, r, "/login?error=account", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/auth/callback#token="+url.QueryEscape(res.Token), http.StatusSeeOther)
}
