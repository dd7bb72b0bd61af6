package models

// Product represents a product listed on the marketplace. Stock and Sold
// form the authoritative stock ledger for the product; Stock must never
// go negative as a result of order placement.
type Product struct {
	ID          string  `json:"id" validate:"omitempty,uuid"`
	SellerID    string  `json:"seller_id"`
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Sold        int     `json:"sold" validate:"gte=0"`
}
