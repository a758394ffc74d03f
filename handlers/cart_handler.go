package handlers

import (
	"errors"
	"strconv"
	"time"

	"keebshop_backend/internal/cart"
	"keebshop_backend/internal/catalog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const cartCookie = "cart_session"

type CartHandler struct {
	Carts   *cart.Manager
	Catalog *catalog.Reader
}

func NewCartHandler(carts *cart.Manager, reader *catalog.Reader) *CartHandler {
	return &CartHandler{Carts: carts, Catalog: reader}
}

// sessionID reads the cart session cookie, minting one on first contact.
func sessionID(c *fiber.Ctx) string {
	if sid := c.Cookies(cartCookie); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     cartCookie,
		Value:    sid,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return sid
}

func cartPayload(cr *cart.Cart) fiber.Map {
	return fiber.Map{
		"items":      cr.Items(),
		"totalCount": cr.TotalCount(),
		"totalValue": cr.TotalValue(),
	}
}

// GetCart - GET /api/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cr := h.Carts.Get(sessionID(c))
	return c.JSON(fiber.Map{"data": cartPayload(cr)})
}

// AddItemRequest is the add-to-cart payload.
type AddItemRequest struct {
	ProductID uint `json:"productId"`
	Quantity  int  `json:"qty"`
}

// AddItem - POST /api/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	product, err := h.Catalog.ByID(c.Context(), req.ProductID)
	if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch product"})
	}

	cr := h.Carts.Get(sessionID(c))
	if err := cr.Add(product, req.Quantity); err != nil {
		switch {
		case errors.Is(err, cart.ErrUnknownProduct):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
		case errors.Is(err, cart.ErrUpcoming):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This product is upcoming and cannot be ordered yet"})
		case errors.Is(err, cart.ErrOutOfStock):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This product is out of stock!"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not add to cart"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Added to cart", "data": cartPayload(cr)})
}

// UpdateItemRequest changes an item's quantity.
type UpdateItemRequest struct {
	Quantity int `json:"qty"`
}

// UpdateItem - PATCH /api/cart/items/:productId
// A quantity below 1 removes the item, matching the storefront controls.
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	productID, _ := strconv.Atoi(c.Params("productId"))

	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	cr := h.Carts.Get(sessionID(c))
	if err := cr.UpdateQuantity(uint(productID), req.Quantity); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Item not in cart"})
	}

	return c.JSON(fiber.Map{"message": "Cart updated", "data": cartPayload(cr)})
}

// RemoveItem - DELETE /api/cart/items/:productId
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID, _ := strconv.Atoi(c.Params("productId"))

	cr := h.Carts.Get(sessionID(c))
	if err := cr.Remove(uint(productID)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Item not in cart"})
	}

	return c.JSON(fiber.Map{"message": "Item removed", "data": cartPayload(cr)})
}
