package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/session"
)

const sessionName = "store-session"

// AuthHandler renders the login view and drives the session manager from the
// web UI. It also keeps the pending session-expired notice raised by the
// background expiry timer, surfacing it on the next rendered page.
type AuthHandler struct {
	Session      *session.Manager
	SessionStore *sessions.CookieStore
	Templates    *TemplateCache

	noticeMu sync.Mutex
	notice   string
}

// PushNotice queues a one-shot notice for the next page render. Wired to the
// session manager's OnSessionExpired hook.
func (h *AuthHandler) PushNotice(msg string) {
	h.noticeMu.Lock()
	h.notice = msg
	h.noticeMu.Unlock()
}

func (h *AuthHandler) takeNotice() string {
	h.noticeMu.Lock()
	defer h.noticeMu.Unlock()
	msg := h.notice
	h.notice = ""
	return msg
}

func (h *AuthHandler) LoginGet(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("login.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	sess, _ := h.SessionStore.Get(r, sessionName)
	flashes := GetFlash(sess)
	if notice := h.takeNotice(); notice != "" {
		flashes = append(flashes, FlashMessage{Type: "error", Message: notice})
	}
	data := map[string]interface{}{
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   flashes,
		"ReturnURL": safeReturnURL(r.URL.Query().Get("returnUrl")),
		"UseProxy":  h.Session.UseProxy(),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AuthHandler) LoginPost(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)

	loginID := r.FormValue("loginId")
	password := r.FormValue("password")
	returnURL := safeReturnURL(r.FormValue("returnUrl"))

	if loginID == "" || password == "" {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Login and password are required."})
		sess.Save(r, w)
		http.Redirect(w, r, loginPath(returnURL), http.StatusSeeOther)
		return
	}

	if err := h.Session.Login(r.Context(), loginID, password); err != nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: loginErrorMessage(err)})
		sess.Save(r, w)
		http.Redirect(w, r, loginPath(returnURL), http.StatusSeeOther)
		return
	}

	user := h.Session.CurrentUser()
	if user != nil {
		sess.AddFlash(FlashMessage{Type: "success", Message: "Welcome, " + user.Username + "!"})
	}
	if err := sess.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	target := returnURL
	if target == "" {
		target = "/"
	}
	slog.Info("Login successful", "returnUrl", target)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Profile renders the signed-in user's account view.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := h.Session.CurrentUser()
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	tmpl := h.Templates.Get("profile.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	sess, _ := h.SessionStore.Get(r, sessionName)
	data := map[string]interface{}{
		"User":      user,
		"Initials":  userInitials(user.Email),
		"UseProxy":  h.Session.UseProxy(),
		"Flashes":   GetFlash(sess),
		"CsrfField": csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

// userInitials derives the avatar initials from the email's local part.
func userInitials(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "?"
	}
	if len(local) >= 2 {
		return strings.ToUpper(local[:2])
	}
	return strings.ToUpper(local)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout()
	sess, _ := h.SessionStore.Get(r, sessionName)
	sess.AddFlash(FlashMessage{Type: "success", Message: "Logged out successfully!"})
	sess.Save(r, w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ToggleProxy switches the backend API between the direct and proxied base.
func (h *AuthHandler) ToggleProxy(w http.ResponseWriter, r *http.Request) {
	useProxy := r.FormValue("useProxy") == "true"
	h.Session.SetAPIBase(useProxy)

	sess, _ := h.SessionStore.Get(r, sessionName)
	mode := "direct"
	if useProxy {
		mode = "proxy"
	}
	sess.AddFlash(FlashMessage{Type: "success", Message: "API mode switched to " + mode + "."})
	sess.Save(r, w)

	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RequireAuth guards a route: unauthenticated browsers are sent to the login
// view with the originating path preserved as the return target.
func (h *AuthHandler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Session.IsAuthenticated() {
			sess, _ := h.SessionStore.Get(r, sessionName)
			msg := "You must be signed in to access this page."
			if notice := h.takeNotice(); notice != "" {
				msg = notice
			}
			sess.AddFlash(FlashMessage{Type: "error", Message: msg})
			sess.Save(r, w)
			http.Redirect(w, r, loginPath(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func loginPath(returnURL string) string {
	if returnURL == "" || returnURL == "/login" {
		return "/login"
	}
	return "/login?returnUrl=" + url.QueryEscape(returnURL)
}

// safeReturnURL only accepts site-local paths; anything else is dropped.
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return "Invalid login or password. Please check your credentials."
	case errors.Is(err, session.ErrConnection):
		return "Could not reach the authentication service. The API base was switched to proxy mode if needed - please try again."
	default:
		return "Authentication failed: " + err.Error()
	}
}
