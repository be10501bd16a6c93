package models

// Product is a catalog entry. The catalog is a static in-memory list, so
// products are plain values with no persistence concerns.
type Product struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Image       string   `json:"image"`
	Specs       []string `json:"specs"`
}

// CartItem pairs a product with a quantity. Unique per product ID within a cart.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns price times quantity for this entry.
func (i CartItem) LineTotal() float64 {
	return i.Product.Price * float64(i.Quantity)
}

// User is the immutable identity value returned by the authentication service.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
	Verified bool   `json:"verified"`
}

// AuthResponse is the shape returned by both /login and /jwt/refresh.
// TokenExpirationInstant is an epoch timestamp in milliseconds.
type AuthResponse struct {
	Token                  string `json:"token"`
	TokenExpirationInstant int64  `json:"tokenExpirationInstant"`
	User                   User   `json:"user"`
}

// PaymentRequest is the payload posted to the payment gateway.
// DueDate uses the gateway's "2006-01-02 15:04:05" format.
type PaymentRequest struct {
	ExternalID  string  `json:"externalId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	DueDate     string  `json:"dueDate"`
	CallbackURL string  `json:"callbackURL,omitempty"`
}

// PaymentResponse is the gateway's answer to /payment/process. The gateway is
// not consistent about where the reference lands, so both the top-level field
// and the nested data payload must be checked.
type PaymentResponse struct {
	ResponseCode    int                    `json:"responseCode,omitempty"`
	ResponseMessage string                 `json:"responseMessage,omitempty"`
	Reference       string                 `json:"reference,omitempty"`
	Status          string                 `json:"status,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

// DataReference returns the reference nested inside the data payload, if any.
func (r *PaymentResponse) DataReference() string {
	if r.Data == nil {
		return ""
	}
	ref, _ := r.Data["reference"].(string)
	return ref
}

// Payment status codes as stored by the gateway.
const (
	PaymentStatusCreated   = "01"
	PaymentStatusPaid      = "02"
	PaymentStatusCancelled = "03"
	PaymentStatusExpired   = "04"
)

// PaymentRecord is a gateway-side payment entity returned by /payment/list.
type PaymentRecord struct {
	ID              int     `json:"id"`
	UserID          string  `json:"userId"`
	ExternalID      string  `json:"externalId"`
	Amount          float64 `json:"amount"`
	PaymentID       string  `json:"paymentId"`
	Reference       string  `json:"reference"`
	ResponseCode    int     `json:"responseCode"`
	ResponseMessage string  `json:"responseMessage"`
	Status          string  `json:"status"`
	Description     string  `json:"description"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// CancelPaymentRequest is the payload posted to /payment/cancel.
type CancelPaymentRequest struct {
	Reference         string `json:"reference"`
	UpdateDescription string `json:"updateDescription"`
}

// CancelPaymentResponse is the gateway's answer to /payment/cancel.
// ResponseCode carries the domain outcome (202 accepted, 400/409 rejected)
// independently of the HTTP status.
type CancelPaymentResponse struct {
	ResponseCode    int                    `json:"responseCode"`
	ResponseMessage string                 `json:"responseMessage"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Timestamp       int64                  `json:"timestamp,omitempty"`
}
