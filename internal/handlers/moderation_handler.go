package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"pasar/internal/middleware"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ModerationHandler handles HTTP requests for reports, warnings, and
// ban checks.
type ModerationHandler struct {
	service  *services.ModerationService
	validate *validator.Validate
}

// NewModerationHandler creates a new ModerationHandler.
func NewModerationHandler(service *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the moderation routes with the Fiber app.
// Admin review routes should additionally be guarded by a role check at
// the router level.
func (h *ModerationHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/reports/users", h.HandleReportUser)
	router.Post("/reports/products", h.HandleReportProduct)
	router.Patch("/reports/products/:id", h.HandleReviewProductReport)
	router.Get("/warnings", h.HandleGetMyWarnings)
	router.Patch("/warnings/:id/read", h.HandleMarkWarningRead)
	router.Get("/users/:id/ban", h.HandleBanStatus)
}

// HandleReportUser files an abuse report against a user on behalf of the
// authenticated reporter.
func (h *ModerationHandler) HandleReportUser(c *fiber.Ctx) error {
	var input services.ReportUserInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing report request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	input.ReporterID = middleware.UserID(c)
	if input.ReporterID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": services.ErrNotAuthenticated.Error(),
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "A reported user and a reason are required",
			"error":   err.Error(),
		})
	}

	result, err := h.service.ReportUser(c.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrMissingReason) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": err.Error(),
			})
		}
		log.Printf("Error reporting user %s: %v", input.ReportedUserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not submit report",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleReportProduct files an abuse report against a product listing.
func (h *ModerationHandler) HandleReportProduct(c *fiber.Ctx) error {
	var input services.ReportProductInput
	if err := c.BodyParser(&input); err != nil {
		log.Printf("Error parsing product report body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	input.ReporterID = middleware.UserID(c)
	if input.ReporterID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": services.ErrNotAuthenticated.Error(),
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "A reported product and a reason are required",
			"error":   err.Error(),
		})
	}

	reportID, err := h.service.ReportProduct(c.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrMissingReason) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": err.Error(),
			})
		}
		log.Printf("Error reporting product %s: %v", input.ProductID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not submit report",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"report_id": reportID,
		"message":   "Product reported for review",
	})
}

// HandleReviewProductReport resolves a pending product report (admin).
func (h *ModerationHandler) HandleReviewProductReport(c *fiber.Ctx) error {
	if role, _ := c.Locals("role").(string); role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Only admins can review reports",
		})
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	reportID := c.Params("id")
	if err := h.service.ReviewProductReport(c.Context(), reportID, req.Accept); err != nil {
		log.Printf("Error reviewing product report %s: %v", reportID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Product report with ID %s not found", reportID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not review report",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product report %s resolved", reportID),
	})
}

// HandleGetMyWarnings lists the authenticated user's warnings.
func (h *ModerationHandler) HandleGetMyWarnings(c *fiber.Ctx) error {
	warnings, err := h.service.WarningsForUser(c.Context(), middleware.UserID(c))
	if err != nil {
		log.Printf("Error getting warnings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve warnings",
			"error":   err.Error(),
		})
	}
	return c.JSON(warnings)
}

// HandleMarkWarningRead acknowledges one of the authenticated user's
// warnings.
func (h *ModerationHandler) HandleMarkWarningRead(c *fiber.Ctx) error {
	warningID := c.Params("id")
	err := h.service.MarkWarningRead(c.Context(), middleware.UserID(c), warningID)
	if err != nil {
		log.Printf("Error acknowledging warning %s: %v", warningID, err)
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Warning with ID %s not found", warningID),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not acknowledge warning",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": "Warning acknowledged",
	})
}

// HandleBanStatus answers whether a user is currently banned. The check
// lifts expired bans as a side effect.
func (h *ModerationHandler) HandleBanStatus(c *fiber.Ctx) error {
	userID := c.Params("id")
	banned, expiresAt, err := h.service.IsUserBanned(c.Context(), userID)
	if err != nil {
		log.Printf("Error checking ban for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not check ban status",
			"error":   err.Error(),
		})
	}
	response := fiber.Map{"banned": banned}
	if banned {
		response["ban_expires_at"] = expiresAt
	}
	return c.JSON(response)
}
