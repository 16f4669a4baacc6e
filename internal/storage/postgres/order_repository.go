package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
)

const uniqueViolationCode = "23505"

// OrderRepository — реализация хранилища заказов на PostgreSQL.
// Вложенные структуры заказа хранятся в JSONB, optimistic locking —
// через колонку version.
type OrderRepository struct {
	store *Store
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

type orderItemDTO struct {
	ID                   string    `json:"id"`
	CatalogItemID        string    `json:"catalog_item_id"`
	Name                 string    `json:"name"`
	Qty                  int32     `json:"qty"`
	UnitPriceMinor       int64     `json:"unit_price_minor"`
	UnitTaxMinor         int64     `json:"unit_tax_minor"`
	PrescriptionRequired bool      `json:"prescription_required"`
	CreatedAt            time.Time `json:"created_at"`
}

type shippingDTO struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

type paymentDTO struct {
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	GatewayOrderID   string     `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id,omitempty"`
	GatewaySignature string     `json:"gateway_signature,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

type pricingDTO struct {
	ItemsTotalMinor     int64 `json:"items_total_minor"`
	TaxTotalMinor       int64 `json:"tax_total_minor"`
	DeliveryChargeMinor int64 `json:"delivery_charge_minor"`
	DiscountMinor       int64 `json:"discount_minor"`
	TotalAmountMinor    int64 `json:"total_amount_minor"`
}

type prescriptionDTO struct {
	DocumentURL     string     `json:"document_url"`
	DocumentRef     string     `json:"document_ref"`
	Status          string     `json:"status"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
}

type statusChangeDTO struct {
	Status    string    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

type orderDocs struct {
	items        []byte
	shipping     []byte
	payment      []byte
	pricing      []byte
	prescription []byte
	history      []byte
}

func encodeOrder(order domain.Order) (orderDocs, error) {
	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDTO(item))
	}
	history := make([]statusChangeDTO, 0, len(order.StatusHistory))
	for _, change := range order.StatusHistory {
		history = append(history, statusChangeDTO{
			Status:    string(change.Status),
			Comment:   change.Comment,
			Actor:     change.Actor,
			Timestamp: change.Timestamp,
		})
	}

	var docs orderDocs
	var err error
	if docs.items, err = json.Marshal(items); err != nil {
		return docs, fmt.Errorf("marshal order items: %w", err)
	}
	if docs.shipping, err = json.Marshal(shippingDTO(order.ShippingAddress)); err != nil {
		return docs, fmt.Errorf("marshal shipping address: %w", err)
	}
	if docs.payment, err = json.Marshal(paymentDTO{
		Method:           string(order.Payment.Method),
		Status:           string(order.Payment.Status),
		GatewayOrderID:   order.Payment.GatewayOrderID,
		GatewayPaymentID: order.Payment.GatewayPaymentID,
		GatewaySignature: order.Payment.GatewaySignature,
		PaidAt:           order.Payment.PaidAt,
	}); err != nil {
		return docs, fmt.Errorf("marshal payment: %w", err)
	}
	if docs.pricing, err = json.Marshal(pricingDTO(order.Pricing)); err != nil {
		return docs, fmt.Errorf("marshal pricing: %w", err)
	}
	if docs.history, err = json.Marshal(history); err != nil {
		return docs, fmt.Errorf("marshal status history: %w", err)
	}
	if order.Prescription != nil {
		if docs.prescription, err = json.Marshal(prescriptionDTO{
			DocumentURL:     order.Prescription.DocumentURL,
			DocumentRef:     order.Prescription.DocumentRef,
			Status:          string(order.Prescription.Status),
			ReviewerID:      order.Prescription.ReviewerID,
			ReviewedAt:      order.Prescription.ReviewedAt,
			RejectionReason: order.Prescription.RejectionReason,
			UploadedAt:      order.Prescription.UploadedAt,
		}); err != nil {
			return docs, fmt.Errorf("marshal prescription: %w", err)
		}
	}
	return docs, nil
}

func decodeOrder(order *domain.Order, docs orderDocs) error {
	var items []orderItemDTO
	if err := json.Unmarshal(docs.items, &items); err != nil {
		return fmt.Errorf("unmarshal order items: %w", err)
	}
	order.Items = make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem(item))
	}

	var shipping shippingDTO
	if err := json.Unmarshal(docs.shipping, &shipping); err != nil {
		return fmt.Errorf("unmarshal shipping address: %w", err)
	}
	order.ShippingAddress = domain.ShippingAddress(shipping)

	var pay paymentDTO
	if err := json.Unmarshal(docs.payment, &pay); err != nil {
		return fmt.Errorf("unmarshal payment: %w", err)
	}
	order.Payment = domain.PaymentInfo{
		Method:           domain.PaymentMethod(pay.Method),
		Status:           domain.PaymentStatus(pay.Status),
		GatewayOrderID:   pay.GatewayOrderID,
		GatewayPaymentID: pay.GatewayPaymentID,
		GatewaySignature: pay.GatewaySignature,
		PaidAt:           pay.PaidAt,
	}

	var price pricingDTO
	if err := json.Unmarshal(docs.pricing, &price); err != nil {
		return fmt.Errorf("unmarshal pricing: %w", err)
	}
	order.Pricing = domain.Pricing(price)

	var history []statusChangeDTO
	if err := json.Unmarshal(docs.history, &history); err != nil {
		return fmt.Errorf("unmarshal status history: %w", err)
	}
	order.StatusHistory = make([]domain.StatusChange, 0, len(history))
	for _, change := range history {
		order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
			Status:    domain.OrderStatus(change.Status),
			Comment:   change.Comment,
			Actor:     change.Actor,
			Timestamp: change.Timestamp,
		})
	}

	if len(docs.prescription) > 0 {
		var rx prescriptionDTO
		if err := json.Unmarshal(docs.prescription, &rx); err != nil {
			return fmt.Errorf("unmarshal prescription: %w", err)
		}
		order.Prescription = &domain.Prescription{
			DocumentURL:     rx.DocumentURL,
			DocumentRef:     rx.DocumentRef,
			Status:          domain.PrescriptionStatus(rx.Status),
			ReviewerID:      rx.ReviewerID,
			ReviewedAt:      rx.ReviewedAt,
			RejectionReason: rx.RejectionReason,
			UploadedAt:      rx.UploadedAt,
		}
	}
	return nil
}

// Create сохраняет новый заказ с версией 1.
func (r *OrderRepository) Create(order domain.Order) error {
	ctx, cancel := opContext()
	defer cancel()

	docs, err := encodeOrder(order)
	if err != nil {
		return err
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, customer_id, status,
			items, shipping_address, payment, pricing, prescription, status_history,
			stock_deducted, delivered_at, cancelled_at, cancellation_reason, notes,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, NOW(), NOW())
	`, order.ID, order.OrderNumber, order.CustomerID, string(order.Status),
		docs.items, docs.shipping, docs.payment, docs.pricing, nullableJSON(docs.prescription), docs.history,
		order.StockDeducted, order.DeliveredAt, order.CancelledAt, order.CancellationReason, order.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrOrderNumberConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const orderColumns = `
	id, order_number, customer_id, status,
	items, shipping_address, payment, pricing, prescription, status_history,
	stock_deducted, delivered_at, cancelled_at, cancellation_reason, notes,
	version, created_at, updated_at`

func (r *OrderRepository) scanOrder(row interface {
	Scan(dest ...any) error
}) (domain.Order, error) {
	var (
		order        domain.Order
		status       string
		docs         orderDocs
		prescription sql.Null[[]byte]
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.CustomerID, &status,
		&docs.items, &docs.shipping, &docs.payment, &docs.pricing, &prescription, &docs.history,
		&order.StockDeducted, &order.DeliveredAt, &order.CancelledAt, &order.CancellationReason, &order.Notes,
		&order.Version, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	if prescription.Valid {
		docs.prescription = prescription.V
	}
	if err := decodeOrder(&order, docs); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Get возвращает заказ по id или ErrOrderNotFound.
func (r *OrderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.scanOrder(row)
}

// GetByNumber возвращает заказ по человекочитаемому номеру.
func (r *OrderRepository) GetByNumber(number string) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
	return r.scanOrder(row)
}

// ListByCustomer возвращает заказы клиента, новые первыми.
func (r *OrderRepository) ListByCustomer(customerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := opContext()
	defer cancel()

	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders by customer: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// List возвращает заказы по фильтру, новые первыми.
func (r *OrderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	where, args := filterClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	ctx, cancel := opContext()
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Count возвращает количество заказов под фильтром.
func (r *OrderRepository) Count(filter domain.OrderFilter) (int, error) {
	where, args := filterClause(filter)

	ctx, cancel := opContext()
	defer cancel()

	var count int
	if err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// Save применяет обновления с optimistic locking по колонке version.
func (r *OrderRepository) Save(order domain.Order) error {
	ctx, cancel := opContext()
	defer cancel()

	docs, err := encodeOrder(order)
	if err != nil {
		return err
	}

	result, err := r.store.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $3,
			items = $4,
			shipping_address = $5,
			payment = $6,
			pricing = $7,
			prescription = $8,
			status_history = $9,
			stock_deducted = $10,
			delivered_at = $11,
			cancelled_at = $12,
			cancellation_reason = $13,
			notes = $14,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, order.ID, order.Version, string(order.Status),
		docs.items, docs.shipping, docs.payment, docs.pricing, nullableJSON(docs.prescription), docs.history,
		order.StockDeducted, order.DeliveredAt, order.CancelledAt, order.CancellationReason, order.Notes)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows affected: %w", err)
	}
	if affected == 0 {
		// либо заказа нет, либо версия устарела
		var exists bool
		if err := r.store.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}
	return nil
}

func (r *OrderRepository) collect(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func filterClause(filter domain.OrderFilter) (string, []any) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		conditions = append(conditions, fmt.Sprintf("payment->>'status' = $%d", len(args)))
	}
	if filter.PrescriptionStatus != "" {
		args = append(args, string(filter.PrescriptionStatus))
		conditions = append(conditions, fmt.Sprintf("prescription->>'status' = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// nullableJSON превращает пустой документ в NULL.
func nullableJSON(doc []byte) any {
	if len(doc) == 0 {
		return nil
	}
	return doc
}
