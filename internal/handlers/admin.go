package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type AdminHandler struct {
	Store        *store.Store
	SessionStore *sessions.CookieStore
}

const adminSessionName = "admin-session"

// Login handles POST /api/admin/login. Credentials are checked against the
// bcrypt hash in the users table and a session cookie is issued.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	hasUsers, err := h.Store.HasUsers()
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	if !hasUsers {
		errorJSON(w, http.StatusServiceUnavailable, "Painel administrativo desabilitado (nenhum usuário configurado)")
		return
	}

	user, err := h.Store.GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("Failed to look up admin user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		errorJSON(w, http.StatusUnauthorized, "Usuário ou senha inválidos")
		return
	}

	session, _ := h.SessionStore.Get(r, adminSessionName)
	session.Values["authenticated"] = true
	session.Values["user_id"] = user.ID
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao salvar sessão")
		return
	}

	slog.Info("Admin login", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": user.Username})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, adminSessionName)
	session.Values["authenticated"] = false
	session.Options.MaxAge = -1 // Expire immediately
	session.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CSRFToken handles GET /api/admin/csrf: the admin front end fetches the
// token here and echoes it back in the X-CSRF-Token header on mutations.
func (h *AdminHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set("X-CSRF-Token", token)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

// AuthMiddleware ensures the caller holds an authenticated admin session.
func (h *AdminHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.SessionStore.Get(r, adminSessionName)
		if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
			errorJSON(w, http.StatusUnauthorized, "Não autenticado")
			return
		}
		next(w, r)
	}
}

// ListOrders handles GET /api/admin/orders with page/limit pagination.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	orders, err := h.Store.GetAllOrders(limit, offset)
	if err != nil {
		slog.Error("Failed to list orders", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar pedidos")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	total, err := h.Store.GetTotalOrdersCount()
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Erro ao contar pedidos")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"page":   page,
		"limit":  limit,
		"total":  total,
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetDashboardStats()
	if err != nil {
		slog.Error("Failed to fetch stats", "error", err)
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar estatísticas")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PriceAlerts handles GET /api/admin/price-alerts: the price-tampering
// diagnostic log.
func (h *AdminHandler) PriceAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Store.GetPriceAlerts(100)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Erro ao carregar alertas")
		return
	}
	if alerts == nil {
		alerts = []store.PriceAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
