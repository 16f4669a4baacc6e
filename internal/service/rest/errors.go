package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

// errorBody — машинно-проверяемый конверт ошибки API.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// errorKind сопоставляет доменную ошибку HTTP-статусу и kind конверта.
// Текст ошибки отдаётся клиенту как есть: доменные ошибки называют
// конкретный товар или причину отказа.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, domain.ErrNotOrderOwner):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		return http.StatusBadRequest, "payment_verification_failed"

	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway, "upstream"

	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrIllegalStatusTransition),
		errors.Is(err, domain.ErrPaymentNotPending),
		errors.Is(err, domain.ErrPrescriptionReviewed),
		errors.Is(err, domain.ErrOrderNumberConflict),
		errors.Is(err, domain.ErrOrderVersionConflict):
		return http.StatusConflict, "conflict"

	case errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrPaymentMethodInvalid),
		errors.Is(err, domain.ErrPaymentMethodMismatch),
		errors.Is(err, domain.ErrStatusInvalid),
		errors.Is(err, domain.ErrCatalogItemNotFound),
		errors.Is(err, domain.ErrCatalogItemInactive),
		errors.Is(err, domain.ErrDocumentRequired),
		errors.Is(err, domain.ErrPrescriptionMissing),
		errors.Is(err, domain.ErrPrescriptionStatusInvalid):
		return http.StatusBadRequest, "validation"

	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	status, kind := errorKind(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// внутренние детали не утекают клиенту
		message = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}

func writeValidationError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorBody{
		Kind:    "validation",
		Message: message,
	}})
}
