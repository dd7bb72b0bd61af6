package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"pasar/internal/models"
	"pasar/internal/store"
	"pasar/pkg/rabbitmq"

	"golang.org/x/sync/errgroup"
)

// OrderService turns a checkout intent into a durable order record while
// keeping the product stock ledger consistent with every placed order.
type OrderService struct {
	store store.Store
	mq    *rabbitmq.Client // optional; order events are best-effort
}

// NewOrderService creates a new OrderService. mq may be nil, in which
// case no order events are published.
func NewOrderService(st store.Store, mq *rabbitmq.Client) *OrderService {
	return &OrderService{
		store: st,
		mq:    mq,
	}
}

// PlacementResult is the successful outcome of PlaceOrder.
// FailedStockUpdates lists products whose stock decrement did not commit
// after the order record was already persisted; the order is not rolled
// back in that case.
type PlacementResult struct {
	OrderID            string   `json:"order_id"`
	FailedStockUpdates []string `json:"failed_stock_updates,omitempty"`
}

// StockCheck is the outcome of a single-product availability check.
type StockCheck struct {
	Sufficient  bool   `json:"sufficient"`
	Available   int    `json:"available"`
	ProductName string `json:"product_name"`
}

// PlaceOrder validates every line item against live stock, persists the
// order, and decrements stock per item via independent atomic
// transactions.
//
// Validation failures and persistence failures before the order record
// is written leave no partial state. Stock-transaction failures after
// the order is written are aggregated into the result instead of rolling
// the order back; order durability is prioritized over stock-count
// precision.
func (s *OrderService) PlaceOrder(ctx context.Context, order models.Order, actingUserID string) (*PlacementResult, error) {
	if actingUserID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one line item")
	}

	// Stock validation pass: fetch every line item's product concurrently
	// and wait for all reads before classifying. This is advisory; the
	// decrement transactions below are what actually keep stock
	// non-negative under races.
	products := make([]*models.Product, len(order.Items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range order.Items {
		i, item := i, item
		g.Go(func() error {
			var p models.Product
			err := s.store.Get(gctx, store.Join("products", item.ProductID), &p)
			if errors.Is(err, store.ErrNotFound) {
				return nil // classified as out of stock below
			}
			if err != nil {
				return &PersistenceError{Op: fmt.Sprintf("read stock for product %s", item.ProductID), Err: err}
			}
			products[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var issues []StockIssue
	for i, item := range order.Items {
		p := products[i]
		name := item.ProductName
		available := 0
		if p != nil {
			available = p.Stock
			if p.Name != "" {
				name = p.Name
			}
		}
		switch {
		case available <= 0:
			issues = append(issues, StockIssue{
				ProductID:   item.ProductID,
				ProductName: name,
				Requested:   item.Quantity,
				OutOfStock:  true,
			})
		case available < item.Quantity:
			issues = append(issues, StockIssue{
				ProductID:   item.ProductID,
				ProductName: name,
				Requested:   item.Quantity,
				Available:   available,
			})
		}
	}
	if len(issues) > 0 {
		return nil, &StockValidationError{Items: issues}
	}

	// Commit pass: the order record itself.
	orderID, err := s.store.GenerateID(ctx, "orders")
	if err != nil {
		return nil, &PersistenceError{Op: "generate order id", Err: err}
	}
	order.ID = orderID
	order.BuyerID = actingUserID
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = models.PaymentMethodDefault
	}
	if err := s.store.Set(ctx, store.Join("orders", orderID), order); err != nil {
		return nil, &PersistenceError{Op: "save order", Err: err}
	}

	// Stock decrement pass: one independent transaction per line item,
	// all issued, all awaited. A failed transaction still counts toward
	// completion; there is no multi-record atomicity across items.
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for i, item := range order.Items {
		item := item
		name := item.ProductName
		if products[i] != nil && products[i].Name != "" {
			name = products[i].Name
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			committed, err := s.decrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil || !committed {
				if err != nil {
					log.Printf("Warning: stock update failed for product %s in order %s: %v", item.ProductID, orderID, err)
				} else {
					log.Printf("Warning: stock update for product %s in order %s did not commit", item.ProductID, orderID)
				}
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	sort.Strings(failed)

	s.publishOrderCreated(order)

	return &PlacementResult{
		OrderID:            orderID,
		FailedStockUpdates: failed,
	}, nil
}

// decrementStock applies newStock = max(0, stock - quantity) and
// sold += quantity atomically on one product record. The clamp keeps
// stock non-negative even when a concurrent order raced past the
// validation pass.
func (s *OrderService) decrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	return s.store.RunTransaction(ctx, store.Join("products", productID), func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, fmt.Errorf("product %s no longer exists", productID)
		}
		var p models.Product
		if err := json.Unmarshal(current, &p); err != nil {
			return nil, err
		}
		p.Stock = max(0, p.Stock-quantity)
		p.Sold += quantity
		return json.Marshal(p)
	})
}

// CheckProductStock is the single-product variant of the validation
// pass, usable before checkout for early feedback.
func (s *OrderService) CheckProductStock(ctx context.Context, productID string, requestedQuantity int) (*StockCheck, error) {
	var p models.Product
	err := s.store.Get(ctx, store.Join("products", productID), &p)
	if errors.Is(err, store.ErrNotFound) {
		return &StockCheck{Sufficient: false, Available: 0}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("read stock for product %s", productID), Err: err}
	}
	return &StockCheck{
		Sufficient:  p.Stock > 0 && p.Stock >= requestedQuantity,
		Available:   p.Stock,
		ProductName: p.Name,
	}, nil
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.store.Get(ctx, store.Join("orders", orderID), &order); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("order with ID %s not found", orderID)
		}
		return nil, &PersistenceError{Op: fmt.Sprintf("read order %s", orderID), Err: err}
	}
	return &order, nil
}

// ListOrdersForBuyer retrieves all orders placed by one buyer.
func (s *OrderService) ListOrdersForBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	var all []models.Order
	if err := s.store.List(ctx, "orders", &all); err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	orders := make([]models.Order, 0, len(all))
	for _, o := range all {
		if o.BuyerID == buyerID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// publishOrderCreated emits an order.created event. Publish failures are
// logged and never alter the placement result.
func (s *OrderService) publishOrderCreated(order models.Order) {
	if s.mq == nil {
		return
	}
	event := map[string]any{
		"order_id": order.ID,
		"buyer_id": order.BuyerID,
		"status":   order.Status,
		"total":    order.TotalPrice,
	}
	if err := s.mq.PublishJSON(rabbitmq.OrderEventsQueue, "order.created", event); err != nil {
		log.Printf("Warning: failed to publish order created event for order %s: %v", order.ID, err)
	} else {
		log.Printf("Published order created event for order %s", order.ID)
	}
}
