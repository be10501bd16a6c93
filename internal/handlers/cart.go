package handlers

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/daniloescobar15/3dPrinterStoreFront/internal/catalog"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/cart"
	"github.com/daniloescobar15/3dPrinterStoreFront/internal/checkout"
)

func csrfField(r *http.Request) template.HTML {
	return csrf.TemplateField(r)
}

// CartHandler renders the cart view and applies cart mutations.
type CartHandler struct {
	Cart         *cart.Store
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore
}

func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("cart.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	subtotal := h.Cart.Total()
	tax := subtotal * checkout.TaxRate

	sess, _ := h.SessionStore.Get(r, sessionName)
	data := map[string]interface{}{
		"Items":     h.Cart.Items(),
		"Subtotal":  subtotal,
		"Tax":       tax,
		"Total":     subtotal + tax,
		"Flashes":   GetFlash(sess),
		"CsrfField": csrfField(r),
	}
	sess.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)
	defer sess.Save(r, w)

	productID, err := strconv.Atoi(r.FormValue("product_id"))
	if err != nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Invalid product."})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	product := catalog.ProductByID(productID)
	if product == nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Product not found."})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	quantity := 1
	if q, err := strconv.Atoi(r.FormValue("quantity")); err == nil && q > 0 {
		quantity = q
	}

	h.Cart.Add(*product, quantity)
	sess.AddFlash(FlashMessage{Type: "success", Message: product.Name + " added to cart."})
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)
	defer sess.Save(r, w)

	productID, err := strconv.Atoi(r.FormValue("product_id"))
	if err != nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Invalid product."})
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}
	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil || quantity < 0 {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Invalid quantity."})
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	if quantity == 0 {
		h.Cart.Remove(productID)
	} else {
		h.Cart.UpdateQuantity(productID, quantity)
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess, _ := h.SessionStore.Get(r, sessionName)
	defer sess.Save(r, w)

	productID, err := strconv.Atoi(r.FormValue("product_id"))
	if err != nil {
		sess.AddFlash(FlashMessage{Type: "error", Message: "Invalid product."})
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	h.Cart.Remove(productID)
	sess.AddFlash(FlashMessage{Type: "success", Message: "Item removed from cart."})
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}
