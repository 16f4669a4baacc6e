package rest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/order"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/pricing"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	idempotencyScope  = "create_order"
)

// OrderHandler транслирует HTTP-запросы в операции сервиса заказов.
type OrderHandler struct {
	orders      *order.Service
	accounts    domain.AccountStore
	idempotency domain.IdempotencyStore
	logger      *log.Entry
}

// NewOrderHandler создаёт обработчик. idempotency может быть nil —
// тогда заголовок X-Idempotency-Key игнорируется. accounts может быть
// nil — тогда существование аккаунта не проверяется.
func NewOrderHandler(orders *order.Service, accounts domain.AccountStore, idempotency domain.IdempotencyStore, logger *log.Logger) *OrderHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &OrderHandler{
		orders:      orders,
		accounts:    accounts,
		idempotency: idempotency,
		logger:      logger.WithField("component", "order_handler"),
	}
}

type cartLineRequest struct {
	CatalogItemID string `json:"catalog_item_id" binding:"required"`
	Qty           int32  `json:"qty" binding:"required,gt=0"`
}

type shippingAddressDTO struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

type createOrderRequest struct {
	Items           []cartLineRequest  `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	ShippingAddress shippingAddressDTO `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

// CreateOrder обрабатывает POST /v1/orders. Цены клиента игнорируются:
// сервер считает стоимость по живому каталогу.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "invalid request body: "+err.Error())
		return
	}

	principal := principalFrom(c)

	// токен мог пережить удаление аккаунта
	if h.accounts != nil {
		user, err := h.accounts.GetUser(principal.UserID)
		if err != nil {
			writeError(c, err)
			return
		}
		if req.ShippingAddress.Name == "" {
			req.ShippingAddress.Name = user.Name
		}
	}

	idemKey := c.GetHeader(idempotencyHeader)

	if body, ok := h.recallIdempotent(c.Request.Context(), idemKey); ok {
		c.Data(http.StatusOK, "application/json", body)
		return
	}
	if idemKey != "" && h.idempotency != nil {
		locked, err := h.idempotency.TryLock(c.Request.Context(), idempotencyScope, idemKey)
		if err != nil {
			writeError(c, err)
			return
		}
		if !locked {
			// ключ занят: либо ответ уже сохранён, либо запрос ещё в полёте
			if body, ok := h.recallIdempotent(c.Request.Context(), idemKey); ok {
				c.Data(http.StatusOK, "application/json", body)
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: errorBody{
				Kind:    "conflict",
				Message: "request with this idempotency key is already in progress",
			}})
			return
		}
	}

	lines := make([]pricing.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, pricing.CartLine{CatalogItemID: item.CatalogItemID, Qty: item.Qty})
	}

	created, err := h.orders.CreateOrder(c.Request.Context(), order.CreateOrderInput{
		CustomerID:    principal.UserID,
		Lines:         lines,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Shipping: domain.ShippingAddress{
			Name:    req.ShippingAddress.Name,
			Phone:   req.ShippingAddress.Phone,
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Pincode: req.ShippingAddress.Pincode,
			Country: req.ShippingAddress.Country,
		},
		Notes: req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := toOrderResponse(created)
	if idemKey != "" && h.idempotency != nil {
		if body, err := json.Marshal(resp); err == nil {
			if err := h.idempotency.Remember(c.Request.Context(), idempotencyScope, idemKey, string(body)); err != nil {
				h.logger.WithError(err).Warn("failed to remember idempotent response")
			}
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *OrderHandler) recallIdempotent(ctx context.Context, key string) ([]byte, bool) {
	if key == "" || h.idempotency == nil {
		return nil, false
	}
	value, ok, err := h.idempotency.Recall(ctx, idempotencyScope, key)
	if err != nil {
		h.logger.WithError(err).Warn("idempotency recall failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return []byte(value), true
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	GatewaySignature string `json:"gateway_signature" binding:"required"`
}

// VerifyPayment обрабатывает POST /v1/orders/:id/verify-payment.
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "invalid request body: "+err.Error())
		return
	}

	principal := principalFrom(c)
	actorID := principal.UserID
	if principal.IsAdmin() {
		// админ может подтвердить чужой заказ (ручной разбор callback)
		actorID = ""
	}

	updated, err := h.orders.VerifyPayment(c.Request.Context(), c.Param("id"), actorID, domain.GatewayCallback{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated))
}

type uploadPrescriptionRequest struct {
	DocumentBase64 string `json:"document_base64" binding:"required"`
	ContentType    string `json:"content_type"`
}

// UploadPrescription обрабатывает POST /v1/orders/:id/prescription.
func (h *OrderHandler) UploadPrescription(c *gin.Context) {
	var req uploadPrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "invalid request body: "+err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.DocumentBase64)
	if err != nil {
		writeValidationError(c, "document_base64 is not valid base64")
		return
	}

	principal := principalFrom(c)
	updated, err := h.orders.UploadPrescription(c.Request.Context(), c.Param("id"), principal.UserID, data, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated))
}

type verifyPrescriptionRequest struct {
	Status          string `json:"status" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
}

// VerifyPrescription обрабатывает PUT /v1/orders/:id/verify-prescription.
func (h *OrderHandler) VerifyPrescription(c *gin.Context) {
	var req verifyPrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "invalid request body: "+err.Error())
		return
	}

	principal := principalFrom(c)
	updated, err := h.orders.VerifyPrescription(c.Request.Context(), c.Param("id"),
		principal.UserID, domain.PrescriptionStatus(req.Status), req.RejectionReason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated))
}

type updateStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// UpdateStatus обрабатывает PUT /v1/orders/:id/status.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, "invalid request body: "+err.Error())
		return
	}

	principal := principalFrom(c)
	updated, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"),
		principal.UserID, domain.OrderStatus(req.Status), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder обрабатывает POST /v1/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeValidationError(c, "invalid request body: "+err.Error())
			return
		}
	}

	principal := principalFrom(c)
	updated, err := h.orders.Cancel(c.Request.Context(), c.Param("id"),
		principal.UserID, req.Reason, !principal.IsAdmin())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated))
}

// GetOrder обрабатывает GET /v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	principal := principalFrom(c)
	found, err := h.orders.Get(c.Request.Context(), c.Param("id"), principal.UserID, principal.IsAdmin())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(found))
}

// GetOrderByNumber обрабатывает GET /v1/orders/by-number/:number.
func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	principal := principalFrom(c)
	found, err := h.orders.GetByNumber(c.Request.Context(), c.Param("number"), principal.UserID, principal.IsAdmin())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(found))
}

// ListOrders обрабатывает GET /v1/orders (только админ): фильтры по
// статусу заказа, оплаты и рецепта плюс пагинация.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	filter := domain.OrderFilter{
		Status:             domain.OrderStatus(c.Query("status")),
		PaymentStatus:      domain.PaymentStatus(c.Query("payment_status")),
		PrescriptionStatus: domain.PrescriptionStatus(c.Query("prescription_status")),
		Limit:              limit,
		Offset:             offset,
	}

	orders, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": toOrderResponses(orders),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ListMyOrders обрабатывает GET /v1/my/orders: история текущего покупателя.
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	principal := principalFrom(c)
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	orders, err := h.orders.ListByCustomer(c.Request.Context(), principal.UserID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": toOrderResponses(orders),
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

type orderItemResponse struct {
	ID                   string `json:"id"`
	CatalogItemID        string `json:"catalog_item_id"`
	Name                 string `json:"name"`
	Qty                  int32  `json:"qty"`
	UnitPriceMinor       int64  `json:"unit_price_minor"`
	UnitTaxMinor         int64  `json:"unit_tax_minor"`
	PrescriptionRequired bool   `json:"prescription_required"`
}

type paymentResponse struct {
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

type pricingResponse struct {
	ItemsTotalMinor     int64 `json:"items_total_minor"`
	TaxTotalMinor       int64 `json:"tax_total_minor"`
	DeliveryChargeMinor int64 `json:"delivery_charge_minor"`
	DiscountMinor       int64 `json:"discount_minor"`
	TotalAmountMinor    int64 `json:"total_amount_minor"`
}

type prescriptionResponse struct {
	DocumentURL     string     `json:"document_url"`
	Status          string     `json:"status"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
}

type statusChangeResponse struct {
	Status    string    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

type orderResponse struct {
	ID                 string                 `json:"id"`
	OrderNumber        string                 `json:"order_number"`
	CustomerID         string                 `json:"customer_id"`
	Status             string                 `json:"status"`
	Items              []orderItemResponse    `json:"items"`
	ShippingAddress    shippingAddressDTO     `json:"shipping_address"`
	Payment            paymentResponse        `json:"payment"`
	Pricing            pricingResponse        `json:"pricing"`
	Prescription       *prescriptionResponse  `json:"prescription,omitempty"`
	StatusHistory      []statusChangeResponse `json:"status_history"`
	CancellationReason string                 `json:"cancellation_reason,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	DeliveredAt        *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:                   item.ID,
			CatalogItemID:        item.CatalogItemID,
			Name:                 item.Name,
			Qty:                  item.Qty,
			UnitPriceMinor:       item.UnitPriceMinor,
			UnitTaxMinor:         item.UnitTaxMinor,
			PrescriptionRequired: item.PrescriptionRequired,
		})
	}

	history := make([]statusChangeResponse, 0, len(o.StatusHistory))
	for _, change := range o.StatusHistory {
		history = append(history, statusChangeResponse{
			Status:    string(change.Status),
			Comment:   change.Comment,
			Actor:     change.Actor,
			Timestamp: change.Timestamp,
		})
	}

	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		Items:       items,
		ShippingAddress: shippingAddressDTO{
			Name:    o.ShippingAddress.Name,
			Phone:   o.ShippingAddress.Phone,
			Street:  o.ShippingAddress.Street,
			City:    o.ShippingAddress.City,
			State:   o.ShippingAddress.State,
			Pincode: o.ShippingAddress.Pincode,
			Country: o.ShippingAddress.Country,
		},
		Payment: paymentResponse{
			Method:           string(o.Payment.Method),
			Status:           string(o.Payment.Status),
			GatewayOrderID:   o.Payment.GatewayOrderID,
			GatewayPaymentID: o.Payment.GatewayPaymentID,
			PaidAt:           o.Payment.PaidAt,
		},
		Pricing: pricingResponse{
			ItemsTotalMinor:     o.Pricing.ItemsTotalMinor,
			TaxTotalMinor:       o.Pricing.TaxTotalMinor,
			DeliveryChargeMinor: o.Pricing.DeliveryChargeMinor,
			DiscountMinor:       o.Pricing.DiscountMinor,
			TotalAmountMinor:    o.Pricing.TotalAmountMinor,
		},
		StatusHistory:      history,
		CancellationReason: o.CancellationReason,
		Notes:              o.Notes,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}

	if o.Prescription != nil {
		resp.Prescription = &prescriptionResponse{
			DocumentURL:     o.Prescription.DocumentURL,
			Status:          string(o.Prescription.Status),
			ReviewerID:      o.Prescription.ReviewerID,
			ReviewedAt:      o.Prescription.ReviewedAt,
			RejectionReason: o.Prescription.RejectionReason,
			UploadedAt:      o.Prescription.UploadedAt,
		}
	}
	return resp
}

func toOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}
