package domain

import "time"

// PrescriptionStatus отражает этап ручной проверки рецепта.
type PrescriptionStatus string

const (
	// PrescriptionStatusPending — документ загружен и ждёт проверки.
	PrescriptionStatusPending PrescriptionStatus = "pending"
	// PrescriptionStatusApproved — рецепт подтверждён проверяющим.
	PrescriptionStatusApproved PrescriptionStatus = "approved"
	// PrescriptionStatusRejected — рецепт отклонён; заказ остаётся ждать решения.
	PrescriptionStatusRejected PrescriptionStatus = "rejected"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s PrescriptionStatus) Valid() bool {
	switch s {
	case PrescriptionStatusPending, PrescriptionStatusApproved, PrescriptionStatusRejected:
		return true
	default:
		return false
	}
}

// Prescription описывает загруженный рецепт и результат его проверки.
type Prescription struct {
	// DocumentURL и DocumentRef выдаёт хранилище документов.
	DocumentURL string
	DocumentRef string
	Status      PrescriptionStatus
	ReviewerID  string
	ReviewedAt  *time.Time
	// RejectionReason заполняется только при отклонении.
	RejectionReason string
	UploadedAt      time.Time
}
