package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"checkout-service/internal/domain"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBody       = 1 << 20
	maxIdempotencyKeyLen = 128
)

type CheckoutService interface {
	Checkout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error)
}

type PaymentReconciler interface {
	HandleWebhook(ctx context.Context, header http.Header, body []byte) (services.Outcome, error)
	HandleStripeWebhook(ctx context.Context, header http.Header, body []byte) (services.Outcome, error)
	VerifyRedirect(ctx context.Context, status, txRef, transactionID string) string
}

type OrderService interface {
	GetOrderByID(ctx context.Context, id string, caller domain.Principal) (*domain.Order, error)
	GetOrderByReference(ctx context.Context, ref string, caller domain.Principal) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, to domain.OrderStatus, trackingNumber string) (*domain.Order, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	checkout   CheckoutService
	reconciler PaymentReconciler
	orders     OrderService
	auth       *Authenticator
	limiter    *IPRateLimiter
}

func NewHandler(checkout CheckoutService, reconciler PaymentReconciler, orders OrderService, auth *Authenticator, limiter *IPRateLimiter) *Handler {
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		orders:     orders,
		auth:       auth,
		limiter:    limiter,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	checkout := []gin.HandlerFunc{h.auth.RequireUser()}
	if h.limiter != nil {
		checkout = append(checkout, h.limiter.Middleware())
	}
	r.POST("/checkout", append(checkout, h.Checkout)...)

	r.POST("/webhooks/payment", h.PaymentWebhook)
	r.GET("/webhooks/payment/verify", h.VerifyPayment)
	r.POST("/webhooks/stripe", h.StripeWebhook)

	orders := r.Group("/orders", h.auth.RequireUser())
	orders.GET("/:id", h.GetOrder)
	orders.GET("/reference/:ref", h.GetOrderByReference)

	admin := r.Group("/admin", h.auth.RequireUser(), RequireAdmin())
	admin.PATCH("/orders/:id", h.UpdateOrderStatus)

	r.GET("/health", h.Health)
}

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long"})
		return
	}

	res, err := h.checkout.Checkout(c.Request.Context(), services.CheckoutRequest{
		UserID:         principal(c).UserID,
		Items:          req.lineItems(),
		Shipping:       req.ShippingAddress.details(),
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		RedirectURL: res.RedirectURL,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
	})
}

// PaymentWebhook acknowledges everything it authenticated unless the ledger
// failed, in which case a 500 makes the provider redeliver.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	h.acknowledge(c, h.reconciler.HandleWebhook)
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	h.acknowledge(c, h.reconciler.HandleStripeWebhook)
}

type webhookFunc func(ctx context.Context, header http.Header, body []byte) (services.Outcome, error)

func (h *Handler) acknowledge(c *gin.Context, handle webhookFunc) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	outcome, err := handle(c.Request.Context(), c.Request.Header, body)
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	case outcome == services.OutcomeError:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	case err != nil:
		slog.WarnContext(c.Request.Context(), "webhook acknowledged with error", "step", "webhook", "outcome", outcome, "error", err)
	}
	c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	target := h.reconciler.VerifyRedirect(c.Request.Context(), c.Query("status"), c.Query("tx_ref"), c.Query("transaction_id"))
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.GetOrderByID(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) GetOrderByReference(c *gin.Context) {
	o, err := h.orders.GetOrderByReference(c.Request.Context(), c.Param("ref"), principal(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.TrackingNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.orders.Ping(c.Request.Context()); err != nil {
		slog.ErrorContext(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
