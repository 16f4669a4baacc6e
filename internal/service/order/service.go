package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/pharmacy/internal/metrics"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/payment"
	"github.com/vladislavdragonenkov/pharmacy/internal/service/pricing"
)

const (
	// orderCounterKey — префикс ключей счётчика номеров заказов.
	orderCounterKey = "orders"

	// saveRetries — число попыток сохранения при конфликте версий.
	saveRetries = 3
	// retryBackoff — базовая задержка между попытками.
	retryBackoff = 25 * time.Millisecond
)

// Config — зависимости сервиса заказов.
type Config struct {
	Orders    domain.OrderRepository
	Catalog   domain.CatalogRepository
	Counter   domain.OrderCounter
	Outbox    domain.OutboxRepository
	Documents domain.DocumentStore
	Flows     *payment.Flows
	Signer    *payment.Signer
	Pricer    *pricing.Engine
	Metrics   *metrics.OrderMetrics
	Logger    *log.Entry
}

// Service реализует жизненный цикл заказа: создание с фиксацией цен,
// машину статусов, верификацию оплаты и проверку рецептов.
type Service struct {
	orders    domain.OrderRepository
	catalog   domain.CatalogRepository
	counter   domain.OrderCounter
	outbox    domain.OutboxRepository
	documents domain.DocumentStore
	flows     *payment.Flows
	signer    *payment.Signer
	pricer    *pricing.Engine
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService создаёт сервис заказов.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewOrderMetrics()
	}

	return &Service{
		orders:    cfg.Orders,
		catalog:   cfg.Catalog,
		counter:   cfg.Counter,
		outbox:    cfg.Outbox,
		documents: cfg.Documents,
		flows:     cfg.Flows,
		signer:    cfg.Signer,
		pricer:    cfg.Pricer,
		metrics:   m,
		logger:    logger.WithField("component", "order_service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrderInput — параметры создания заказа.
type CreateOrderInput struct {
	CustomerID    string
	Lines         []pricing.CartLine
	PaymentMethod domain.PaymentMethod
	Shipping      domain.ShippingAddress
	Notes         string
}

// CreateOrder создаёт заказ: рассчитывает цены по каталогу, выдаёт номер,
// инициализирует оплату через flow метода и пишет order.created в outbox.
// Сток на этом шаге не списывается.
func (s *Service) CreateOrder(_ context.Context, input CreateOrderInput) (domain.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("create_order", time.Since(start))
	}()

	if input.CustomerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	flow, err := s.flows.For(input.PaymentMethod)
	if err != nil {
		return domain.Order{}, err
	}

	quote, err := s.pricer.Price(input.Lines)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      input.CustomerID,
		Items:           quote.Items,
		ShippingAddress: input.Shipping,
		Payment:         domain.PaymentInfo{Method: input.PaymentMethod},
		Pricing:         quote.Pricing,
		Status:          domain.OrderStatusPlaced,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPlaced, Comment: "order placed", Actor: domain.ActorSystem, Timestamp: now},
		},
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Номер выдаётся до обращения к шлюзу: провайдер получает его как receipt.
	order.OrderNumber, err = s.nextOrderNumber(now)
	if err != nil {
		return domain.Order{}, err
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := flow.Begin(&order); err != nil {
		return domain.Order{}, err
	}

	// Уникальный индекс в хранилище — последняя линия обороны, одна
	// повторная попытка при коллизии. Транзакция у шлюза при этом остаётся
	// открытой под первым номером.
	for attempt := 0; attempt < 2; attempt++ {
		err = s.orders.Create(order)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrOrderNumberConflict) || attempt == 1 {
			return domain.Order{}, err
		}
		s.logger.WithField("order_number", order.OrderNumber).
			Warn("Order number collision, retrying with a fresh number")
		order.OrderNumber, err = s.nextOrderNumber(now)
		if err != nil {
			return domain.Order{}, err
		}
	}

	created, err := s.orders.Get(order.ID)
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCreated()
	s.emitOrderEvent(kafka.EventOrderCreated, created, "")
	s.logger.WithFields(log.Fields{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"total_minor":  created.Pricing.TotalAmountMinor,
		"method":       created.Payment.Method,
	}).Info("Order created")

	return created, nil
}

// VerifyPayment обрабатывает callback платёжного шлюза. Подпись проверяется
// HMAC-сравнением за константное время; при несовпадении оплата помечается
// failed и заказ остаётся placed. Сток списывается ровно один раз:
// побеждает та горутина, чей Save прошёл без конфликта версий.
func (s *Service) VerifyPayment(_ context.Context, orderID, actorID string, cb domain.GatewayCallback) (domain.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("verify_payment", time.Since(start))
	}()

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if actorID != "" && actorID != order.CustomerID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	if !order.Payment.Method.Online() {
		return domain.Order{}, domain.ErrPaymentMethodMismatch
	}

	valid := order.Payment.GatewayOrderID == cb.GatewayOrderID &&
		s.signer.Verify(cb.GatewayOrderID, cb.GatewayPaymentID, cb.GatewaySignature)

	if !valid {
		updated, err := s.mutate(orderID, func(o *domain.Order) error {
			if o.Payment.Status.Settled() {
				return domain.ErrPaymentNotPending
			}
			o.Payment.Status = domain.PaymentStatusFailed
			o.Payment.GatewayPaymentID = cb.GatewayPaymentID
			o.Payment.GatewaySignature = cb.GatewaySignature
			return nil
		})
		if err != nil {
			return domain.Order{}, err
		}

		s.metrics.RecordPaymentVerified("failed")
		s.emitOrderEvent(kafka.EventPaymentFailed, updated, "signature verification failed")
		s.logger.WithField("order_id", orderID).Warn("Payment signature verification failed")
		return updated, domain.ErrPaymentVerificationFailed
	}

	now := s.now()
	claimed := false
	updated, err := s.mutate(orderID, func(o *domain.Order) error {
		claimed = false
		// failed — не терминальное состояние: клиент может оплатить повторно
		if o.Payment.Status.Settled() {
			return domain.ErrPaymentNotPending
		}
		o.Payment.Status = domain.PaymentStatusCompleted
		o.Payment.GatewayPaymentID = cb.GatewayPaymentID
		o.Payment.GatewaySignature = cb.GatewaySignature
		paidAt := now
		o.Payment.PaidAt = &paidAt
		if !o.StockDeducted {
			o.StockDeducted = true
			claimed = true
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if claimed {
		if err := s.deductStock(updated); err != nil {
			// Частичное списание откатили; возвращаем заказ в неоплаченное
			// failed-состояние, чтобы клиент видел причину.
			reverted, revertErr := s.mutate(orderID, func(o *domain.Order) error {
				o.StockDeducted = false
				o.Payment.Status = domain.PaymentStatusFailed
				return nil
			})
			if revertErr != nil {
				s.logger.WithError(revertErr).WithField("order_id", orderID).
					Error("Failed to revert payment after stock deduction failure")
			} else {
				updated = reverted
			}
			s.metrics.RecordPaymentVerified("failed")
			s.emitOrderEvent(kafka.EventPaymentFailed, updated, "insufficient stock")
			return updated, err
		}
	}

	s.metrics.RecordPaymentVerified("completed")
	s.emitOrderEvent(kafka.EventPaymentCompleted, updated, "")
	s.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"payment_id": cb.GatewayPaymentID,
	}).Info("Payment verified")

	return updated, nil
}

// UpdateStatus выполняет переход статуса от имени actor. Переход в cancelled
// делегируется Cancel, чтобы отмена всегда возвращала сток и причину.
func (s *Service) UpdateStatus(ctx context.Context, orderID, actor string, to domain.OrderStatus, comment string) (domain.Order, error) {
	if to == domain.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor, comment, false)
	}

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("update_status", time.Since(start))
	}()

	now := s.now()
	updated, err := s.mutate(orderID, func(o *domain.Order) error {
		if err := o.ApplyStatus(to, actor, comment, now); err != nil {
			return err
		}
		// Наложенный платёж считается полученным при доставке.
		if to == domain.OrderStatusDelivered &&
			o.Payment.Method == domain.PaymentMethodCOD &&
			o.Payment.Status == domain.PaymentStatusPending {
			o.Payment.Status = domain.PaymentStatusCompleted
			paidAt := now
			o.Payment.PaidAt = &paidAt
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitOrderEvent(kafka.EventOrderStatusChanged, updated, comment)
	if to == domain.OrderStatusDelivered {
		s.metrics.RecordOrderDelivered()
		s.emitOrderEvent(kafka.EventOrderDelivered, updated, "")
	}
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   to,
		"actor":    actor,
	}).Info("Order status updated")

	return updated, nil
}

// Cancel отменяет заказ. Отмена разрешена только из placed и processing.
// Если сток по заказу был списан, победитель сохранения возвращает его
// на склад ровно один раз.
func (s *Service) Cancel(_ context.Context, orderID, actor, reason string, byOwner bool) (domain.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("cancel_order", time.Since(start))
	}()

	now := s.now()
	restore := false
	updated, err := s.mutate(orderID, func(o *domain.Order) error {
		restore = false
		if byOwner && actor != o.CustomerID {
			return domain.ErrNotOrderOwner
		}
		if err := o.ApplyStatus(domain.OrderStatusCancelled, actor, reason, now); err != nil {
			return err
		}
		o.CancellationReason = reason
		if o.StockDeducted {
			o.StockDeducted = false
			restore = true
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if restore {
		s.restoreStock(updated)
	}

	s.metrics.RecordOrderCancelled()
	s.emitOrderEvent(kafka.EventOrderCancelled, updated, reason)
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"actor":    actor,
		"reason":   reason,
	}).Info("Order cancelled")

	return updated, nil
}

// UploadPrescription сохраняет документ рецепта и переводит его в pending.
// Повторная загрузка разрешена, пока рецепт не одобрен.
func (s *Service) UploadPrescription(ctx context.Context, orderID, actorID string, data []byte, contentType string) (domain.Order, error) {
	if len(data) == 0 {
		return domain.Order{}, domain.ErrDocumentRequired
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if actorID != "" && actorID != order.CustomerID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	if order.Prescription != nil && order.Prescription.Status == domain.PrescriptionStatusApproved {
		return domain.Order{}, domain.ErrPrescriptionReviewed
	}

	ref, err := s.documents.Store(data, contentType)
	if err != nil {
		return domain.Order{}, fmt.Errorf("store prescription document: %w", err)
	}

	now := s.now()
	updated, err := s.mutate(orderID, func(o *domain.Order) error {
		if o.Prescription != nil && o.Prescription.Status == domain.PrescriptionStatusApproved {
			return domain.ErrPrescriptionReviewed
		}
		o.Prescription = &domain.Prescription{
			DocumentURL: ref.URL,
			DocumentRef: ref.Ref,
			Status:      domain.PrescriptionStatusPending,
			UploadedAt:  now,
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithField("order_id", orderID).Info("Prescription uploaded")
	return updated, nil
}

// VerifyPrescription фиксирует вердикт фармацевта. Рецепт проверяется
// ровно один раз; для одобренного COD-заказа сток списывается здесь.
// Отклонённый рецепт не отменяет заказ автоматически.
func (s *Service) VerifyPrescription(_ context.Context, orderID, reviewerID string, status domain.PrescriptionStatus, rejectionReason string) (domain.Order, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration("verify_prescription", time.Since(start))
	}()

	if status != domain.PrescriptionStatusApproved && status != domain.PrescriptionStatusRejected {
		return domain.Order{}, domain.ErrPrescriptionStatusInvalid
	}

	now := s.now()
	claimed := false
	updated, err := s.mutate(orderID, func(o *domain.Order) error {
		claimed = false
		if o.Prescription == nil {
			return domain.ErrPrescriptionMissing
		}
		if o.Prescription.Status != domain.PrescriptionStatusPending {
			return domain.ErrPrescriptionReviewed
		}

		o.Prescription.Status = status
		o.Prescription.ReviewerID = reviewerID
		reviewedAt := now
		o.Prescription.ReviewedAt = &reviewedAt
		o.Prescription.RejectionReason = rejectionReason

		if status == domain.PrescriptionStatusApproved &&
			o.Payment.Method == domain.PaymentMethodCOD &&
			!o.StockDeducted {
			o.StockDeducted = true
			claimed = true
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if claimed {
		if err := s.deductStock(updated); err != nil {
			reverted, revertErr := s.mutate(orderID, func(o *domain.Order) error {
				o.StockDeducted = false
				return nil
			})
			if revertErr != nil {
				s.logger.WithError(revertErr).WithField("order_id", orderID).
					Error("Failed to release stock claim after deduction failure")
			} else {
				updated = reverted
			}
			return updated, err
		}
	}

	s.metrics.RecordPrescriptionReviewed(string(status))
	eventType := kafka.EventPrescriptionApproved
	if status == domain.PrescriptionStatusRejected {
		eventType = kafka.EventPrescriptionRejected
	}
	s.emitOrderEvent(eventType, updated, rejectionReason)
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"verdict":  status,
		"reviewer": reviewerID,
	}).Info("Prescription reviewed")

	return updated, nil
}

// Get возвращает заказ; не-админ видит только собственные заказы.
func (s *Service) Get(_ context.Context, orderID, actorID string, isAdmin bool) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !isAdmin && order.CustomerID != actorID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	return order, nil
}

// GetByNumber возвращает заказ по номеру с той же проверкой владения.
func (s *Service) GetByNumber(_ context.Context, number, actorID string, isAdmin bool) (domain.Order, error) {
	order, err := s.orders.GetByNumber(number)
	if err != nil {
		return domain.Order{}, err
	}
	if !isAdmin && order.CustomerID != actorID {
		return domain.Order{}, domain.ErrNotOrderOwner
	}
	return order, nil
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (s *Service) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit, offset)
}

// List возвращает страницу заказов по фильтру и общее количество.
func (s *Service) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	orders, err := s.orders.List(filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.Count(filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// nextOrderNumber выдаёт номер вида SM<YY><MM><NNNNN>.
// Счётчик свой на каждый месяц: последовательность начинается заново
// вместе с префиксом.
func (s *Service) nextOrderNumber(now time.Time) (string, error) {
	bucket := now.Format("0601")
	n, err := s.counter.Next(orderCounterKey + ":" + bucket)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("SM%s%05d", bucket, n), nil
}

// mutate перечитывает заказ, применяет fn и сохраняет с optimistic locking.
// При конфликте версий мутация применяется заново к свежей копии.
func (s *Service) mutate(orderID string, fn func(*domain.Order) error) (domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if err := fn(&order); err != nil {
			return domain.Order{}, err
		}

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) {
				s.metrics.RecordVersionConflict()
				lastErr = err
				time.Sleep(retryBackoff * time.Duration(1<<attempt))
				continue
			}
			return domain.Order{}, err
		}

		order.Version++
		return order, nil
	}
	return domain.Order{}, lastErr
}

// deductStock списывает позиции заказа; при нехватке по любой позиции
// уже списанное возвращается и операция завершается ошибкой.
func (s *Service) deductStock(order domain.Order) error {
	deducted := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		updated, err := s.catalog.DecrementStock(item.CatalogItemID, item.Qty)
		if err != nil {
			for _, d := range deducted {
				if restoreErr := s.catalog.RestoreStock(d.CatalogItemID, d.Qty); restoreErr != nil {
					s.logger.WithError(restoreErr).WithField("catalog_item_id", d.CatalogItemID).
						Error("Failed to roll back stock deduction")
				}
			}
			return fmt.Errorf("item %s: %w", item.Name, err)
		}
		deducted = append(deducted, item)

		if updated.LowStock() {
			s.metrics.RecordLowStockEvent()
			s.emitStockLow(updated)
		}
	}
	return nil
}

// restoreStock возвращает позиции заказа на склад; ошибки логируются,
// но не прерывают отмену.
func (s *Service) restoreStock(order domain.Order) {
	for _, item := range order.Items {
		if err := s.catalog.RestoreStock(item.CatalogItemID, item.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":        order.ID,
				"catalog_item_id": item.CatalogItemID,
			}).Error("Failed to restore stock on cancellation")
		}
	}
}

func (s *Service) emitOrderEvent(eventType string, order domain.Order, reason string) {
	msg, err := kafka.NewOrderMessage(eventType, order, reason)
	if err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Error("Failed to build event")
		return
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Error("Failed to enqueue event")
	}
}

func (s *Service) emitStockLow(item domain.CatalogItem) {
	msg, err := kafka.NewStockLowMessage(item)
	if err != nil {
		s.logger.WithError(err).WithField("catalog_item_id", item.ID).Error("Failed to build stock event")
		return
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("catalog_item_id", item.ID).Error("Failed to enqueue stock event")
	}
}
