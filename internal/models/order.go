package models

// OrderItem represents a single line item within an order.
type OrderItem struct {
	ProductID   string  `json:"product_id" validate:"required"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"` // Price at the time of order
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	ImageURL    string  `json:"image_url"`
}

// Order represents a placed purchase. ID and BuyerID are assigned at
// placement time and immutable thereafter. TotalPrice is supplied by the
// caller and persisted as-is; it is not recomputed from the line items.
type Order struct {
	ID            string      `json:"id"`
	BuyerID       string      `json:"buyer_id"`
	Items         []OrderItem `json:"items" validate:"required,min=1,dive"`
	TotalPrice    float64     `json:"total_price" validate:"gte=0"`
	PaymentMethod string      `json:"payment_method"` // "COD" by default, or a wallet identifier
	Status        string      `json:"status"`         // "Pending" at placement; mutated by fulfillment
	OrderDate     string      `json:"order_date"`
	DeliveryDate  string      `json:"delivery_date"`
}

// Order status and payment defaults applied at placement time.
const (
	OrderStatusPending   = "Pending"
	PaymentMethodDefault = "COD"
)
