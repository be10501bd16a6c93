package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/catalog"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/session"
)

// ShopHandler renders the public catalog views.
type ShopHandler struct {
	Session      *session.Manager
	Cart         *cart.Store
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore
}

func (h *ShopHandler) Index(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("home.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	sess, _ := h.SessionStore.Get(r, sessionName)
	data := map[string]interface{}{
		"Products":        catalog.Products(),
		"Flashes":         GetFlash(sess),
		"IsAuthenticated": h.Session.IsAuthenticated(),
		"User":            h.Session.CurrentUser(),
		"CartCount":       len(h.Cart.Items()),
		"CsrfField":       csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *ShopHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}

	product := catalog.ProductByID(id)
	if product == nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}

	tmpl := h.Templates.Get("product.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	sess, _ := h.SessionStore.Get(r, sessionName)
	data := map[string]interface{}{
		"Product":         product,
		"Flashes":         GetFlash(sess),
		"IsAuthenticated": h.Session.IsAuthenticated(),
		"CsrfField":       csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}
