package handlers

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandlePlaceOrder)
	router.Get("/products/:id/stock", h.HandleCheckStock)
}

// HandleGetMyOrders retrieves the authenticated user's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrdersForBuyer(c.Context(), middleware.UserID(c))
	if err != nil {
		log.Printf("Error getting orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrder(c.Context(), orderID)
	if err != nil {
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		if err.Error() == fmt.Sprintf("order with ID %s not found", orderID) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Order with ID %s not found", orderID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	// Buyers only see their own orders.
	if order.BuyerID != middleware.UserID(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": fmt.Sprintf("Order with ID %s not found", orderID),
		})
	}
	return c.JSON(order)
}

// HandlePlaceOrder places a new order for the authenticated user.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	var order models.Order
	if err := c.BodyParser(&order); err != nil {
		log.Printf("Error parsing request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(order); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "An order requires at least one item with a positive quantity",
			"error":   err.Error(),
		})
	}

	result, err := h.service.PlaceOrder(c.Context(), order, middleware.UserID(c))
	if err != nil {
		return h.placementError(c, err)
	}

	response := fiber.Map{
		"order_id": result.OrderID,
		"message":  "Order placed successfully",
	}
	if len(result.FailedStockUpdates) > 0 {
		// The order is durable but some stock counters did not update;
		// surface it rather than hiding it.
		response["message"] = "Order placed, but stock updates failed for some products"
		response["failed_stock_updates"] = result.FailedStockUpdates
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *OrderHandler) placementError(c *fiber.Ctx, err error) error {
	log.Printf("Error placing order: %v", err)

	if errors.Is(err, services.ErrNotAuthenticated) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	var stockErr *services.StockValidationError
	if errors.As(err, &stockErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": stockErr.Error(),
			"items":   stockErr.Items,
		})
	}

	var persistErr *services.PersistenceError
	if errors.As(err, &persistErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not place order",
			"error":   persistErr.Error(),
		})
	}

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Could not place order",
		"error":   err.Error(),
	})
}

// HandleCheckStock answers a single-product availability check, e.g. at
// add-to-cart time.
func (h *OrderHandler) HandleCheckStock(c *fiber.Ctx) error {
	quantity, err := strconv.Atoi(c.Query("quantity", "1"))
	if err != nil || quantity <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "quantity must be a positive integer",
		})
	}

	check, err := h.service.CheckProductStock(c.Context(), c.Params("id"), quantity)
	if err != nil {
		log.Printf("Error checking stock for product %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not check product stock",
			"error":   err.Error(),
		})
	}
	return c.JSON(check)
}
