package domain

// OrderFilter задаёт критерии выборки заказов для админских списков.
// Пустое поле означает отсутствие фильтра.
type OrderFilter struct {
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	PrescriptionStatus PrescriptionStatus
	Limit              int
	Offset             int
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderNumberConflict,
	// если номер заказа уже занят.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по человекочитаемому номеру.
	GetByNumber(number string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(customerID string, limit, offset int) ([]Order, error)
	// List возвращает заказы по фильтру, новые первыми.
	List(filter OrderFilter) ([]Order, error)
	// Count возвращает количество заказов, подходящих под фильтр (без limit/offset).
	Count(filter OrderFilter) (int, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// CatalogRepository описывает хранилище каталога со стороны заказа.
// Остаток — единственное поле, которое заказ мутирует, и только атомарно.
type CatalogRepository interface {
	// Get возвращает товар или ErrCatalogItemNotFound.
	Get(id string) (CatalogItem, error)
	// DecrementStock атомарно списывает qty, только если stock >= qty.
	// Возвращает товар после списания (для проверки low-stock порога)
	// или ErrInsufficientStock, если остатка не хватает.
	DecrementStock(id string, qty int32) (CatalogItem, error)
	// RestoreStock атомарно возвращает qty на склад (отмена заказа).
	RestoreStock(id string, qty int32) error
	// Upsert сохраняет товар; используется сидированием и тестами.
	Upsert(item CatalogItem) error
}

// OrderCounter выдаёт монотонную последовательность для номеров заказов.
// Инкремент обязан быть атомарным: read-then-increment недопустим.
type OrderCounter interface {
	// Next возвращает следующее значение последовательности key.
	Next(key string) (int64, error)
}
