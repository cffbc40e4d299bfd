// Package testutil holds in-memory stand-ins for the repositories and
// infrastructure the services depend on.
package testutil

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/repository"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
)

// OrderStore is an in-memory order repository.
type OrderStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]entity.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{rows: map[int64]entity.Order{}}
}

func (s *OrderStore) Create(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	order.ID = s.nextID
	s.rows[order.ID] = *order
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *OrderStore) List(_ context.Context, filter orderrepo.Filter) ([]*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(s.rows))
	var out []*entity.Order
	for _, id := range ids {
		row := s.rows[id]
		if filter.CustomerID > 0 && row.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, &row)
	}
	return page(out, filter.Offset, filter.Limit), nil
}

func (s *OrderStore) UpdateState(_ context.Context, order *entity.Order, from entity.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[order.ID]
	if !ok || row.Status != from {
		return repository.ErrStaleState
	}
	row.Status = order.Status
	row.TotalAmount = order.TotalAmount
	row.UpdatedAt = order.UpdatedAt
	row.ConfirmedAt = order.ConfirmedAt
	row.DeliveredAt = order.DeliveredAt
	s.rows[order.ID] = row
	return nil
}

func (s *OrderStore) UpdatePricingState(_ context.Context, id int64, state entity.PricingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.PricingState = state
	s.rows[id] = row
	return nil
}

// CatalogStore is an in-memory product and price plan catalog.
type CatalogStore struct {
	mu       sync.RWMutex
	products map[int64]entity.Product
	plans    []entity.PricePlan
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{products: map[int64]entity.Product{}}
}

// AddProduct registers a product and returns it.
func (s *CatalogStore) AddProduct(id int64, code entity.ProductCode) *entity.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := entity.Product{ID: id, Code: code, Name: string(code)}
	s.products[id] = p
	return &p
}

// AddPlan registers a price plan.
func (s *CatalogStore) AddPlan(plan entity.PricePlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan.ID = int64(len(s.plans) + 1)
	plan.Rates = maps.Clone(plan.Rates)
	s.plans = append(s.plans, plan)
}

func (s *CatalogStore) GetProduct(_ context.Context, id int64) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *CatalogStore) ListProducts(context.Context) ([]*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Product, 0, len(s.products))
	for _, id := range slices.Sorted(maps.Keys(s.products)) {
		p := s.products[id]
		out = append(out, &p)
	}
	return out, nil
}

func (s *CatalogStore) FindPlan(_ context.Context, productID, countryID int64, areaCode string) (*entity.PricePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, plan := range s.plans {
		if plan.ProductID == productID && plan.CountryID == countryID && plan.AreaCode == areaCode {
			plan.Rates = maps.Clone(plan.Rates)
			return &plan, nil
		}
	}
	return nil, repository.ErrNotFound
}

// PricingStore is an in-memory pricing snapshot repository.
type PricingStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[pricingKey]entity.OrderPricing
	// FailDesired makes every desired write fail with this error.
	FailDesired error
}

type pricingKey struct {
	orderID int64
	kind    entity.PricingType
}

func NewPricingStore() *PricingStore {
	return &PricingStore{rows: map[pricingKey]entity.OrderPricing{}}
}

func (s *PricingStore) Get(_ context.Context, orderID int64, pricingType entity.PricingType) (*entity.OrderPricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[pricingKey{orderID, pricingType}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row.Rates = maps.Clone(row.Rates)
	return &row, nil
}

func (s *PricingStore) Save(_ context.Context, pricing *entity.OrderPricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pricing.PricingType == entity.PricingDesired && s.FailDesired != nil {
		return s.FailDesired
	}
	key := pricingKey{pricing.OrderID, pricing.PricingType}
	if pricing.ID == 0 {
		if _, exists := s.rows[key]; exists {
			return repository.ErrDuplicate
		}
		s.nextID++
		pricing.ID = s.nextID
	}
	row := *pricing
	row.Rates = maps.Clone(pricing.Rates)
	s.rows[key] = row
	return nil
}

// NumberStore is an in-memory number repository.
type NumberStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]entity.Number
}

func NewNumberStore() *NumberStore {
	return &NumberStore{rows: map[int64]entity.Number{}}
}

func (s *NumberStore) Create(_ context.Context, number *entity.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Number == number.Number {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	number.ID = s.nextID
	s.rows[number.ID] = *number
	return nil
}

func (s *NumberStore) GetByID(_ context.Context, id int64) (*entity.Number, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *NumberStore) ListByOrder(_ context.Context, orderID int64) ([]*entity.Number, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Number
	for _, id := range slices.Sorted(maps.Keys(s.rows)) {
		row := s.rows[id]
		if row.OrderID == orderID {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (s *NumberStore) CountByOrder(ctx context.Context, orderID int64) (int, error) {
	rows, err := s.ListByOrder(ctx, orderID)
	return len(rows), err
}

func (s *NumberStore) AssignCustomer(_ context.Context, orderID, customerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, row := range s.rows {
		if row.OrderID != orderID {
			continue
		}
		owner := customerID
		row.CustomerID = &owner
		s.rows[id] = row
		n++
	}
	return n, nil
}

func (s *NumberStore) UpdateStatus(_ context.Context, number *entity.Number) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[number.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = number.Status
	row.DisconnectionStatus = number.DisconnectionStatus
	row.UpdatedAt = number.UpdatedAt
	s.rows[number.ID] = row
	return nil
}

func (s *NumberStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

// DisconnectionStore is an in-memory disconnection request repository.
type DisconnectionStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]entity.DisconnectionRequest
}

func NewDisconnectionStore() *DisconnectionStore {
	return &DisconnectionStore{rows: map[int64]entity.DisconnectionRequest{}}
}

// Create rejects a second pending request for a number with
// repository.ErrDuplicate, as the partial unique index does.
func (s *DisconnectionStore) Create(_ context.Context, req *entity.DisconnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Status == entity.DisconnectionPending {
		for _, row := range s.rows {
			if row.NumberID == req.NumberID && row.Status == entity.DisconnectionPending {
				return repository.ErrDuplicate
			}
		}
	}
	s.nextID++
	req.ID = s.nextID
	s.rows[req.ID] = *req
	return nil
}

func (s *DisconnectionStore) GetByID(_ context.Context, id int64) (*entity.DisconnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *DisconnectionStore) FindPending(ctx context.Context, numberID int64) (*entity.DisconnectionRequest, error) {
	pending, err := s.ListByStatus(ctx, entity.DisconnectionPending, 0)
	if err != nil {
		return nil, err
	}
	for _, req := range pending {
		if req.NumberID == numberID {
			return req, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *DisconnectionStore) ListByStatus(_ context.Context, status entity.DisconnectionStatus, limit int) ([]*entity.DisconnectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.DisconnectionRequest
	for _, id := range slices.Sorted(maps.Keys(s.rows)) {
		row := s.rows[id]
		if row.Status == status {
			out = append(out, &row)
		}
	}
	return page(out, 0, limit), nil
}

// CountForNumber returns how many requests exist per status for a number.
func (s *DisconnectionStore) CountForNumber(numberID int64) map[entity.DisconnectionStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[entity.DisconnectionStatus]int{}
	for _, row := range s.rows {
		if row.NumberID == numberID {
			counts[row.Status]++
		}
	}
	return counts
}

func (s *DisconnectionStore) Decide(_ context.Context, req *entity.DisconnectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[req.ID]
	if !ok || row.Status != entity.DisconnectionPending {
		return repository.ErrStaleState
	}
	s.rows[req.ID] = *req
	return nil
}

// InvoiceStore is an in-memory invoice repository.
type InvoiceStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]entity.Invoice
}

func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{rows: map[int64]entity.Invoice{}}
}

func (s *InvoiceStore) Create(_ context.Context, inv *entity.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.InvoiceNumber == inv.InvoiceNumber || (row.OrderID == inv.OrderID && row.Period == inv.Period) {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	inv.ID = s.nextID
	s.rows[inv.ID] = *inv
	return nil
}

func (s *InvoiceStore) GetByID(_ context.Context, id int64) (*entity.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *InvoiceStore) GetByOrderPeriod(_ context.Context, orderID int64, period string) (*entity.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.OrderID == orderID && row.Period == period {
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *InvoiceStore) ListByOrder(_ context.Context, orderID int64) ([]*entity.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Invoice
	for _, id := range slices.Sorted(maps.Keys(s.rows)) {
		row := s.rows[id]
		if row.OrderID == orderID {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (s *InvoiceStore) UpdateAmounts(_ context.Context, inv *entity.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[inv.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.UsageAmount = inv.UsageAmount
	row.Amount = inv.Amount
	row.UpdatedAt = inv.UpdatedAt
	s.rows[inv.ID] = row
	return nil
}

// WalletStore is an in-memory wallet ledger.
type WalletStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []entity.WalletTransaction
}

func NewWalletStore() *WalletStore {
	return &WalletStore{}
}

func (s *WalletStore) Latest(_ context.Context, userID int64) (*entity.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *entity.WalletTransaction
	for i := range s.rows {
		row := s.rows[i]
		if row.UserID == userID && (latest == nil || row.Sequence > latest.Sequence) {
			latest = &row
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (s *WalletStore) Append(_ context.Context, txn *entity.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == txn.UserID && row.Sequence == txn.Sequence {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	txn.ID = s.nextID
	s.rows = append(s.rows, *txn)
	return nil
}

func (s *WalletStore) List(_ context.Context, userID int64, limit int) ([]*entity.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.WalletTransaction
	for i := range s.rows {
		row := s.rows[i]
		if row.UserID == userID {
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return page(out, 0, limit), nil
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
