package handlers

import (
	"encoding/json"
	"strconv"

	"keebshop_backend/internal/catalog"
	"keebshop_backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProductHandler struct {
	DB      *gorm.DB
	Catalog *catalog.Reader
}

func NewProductHandler(db *gorm.DB, reader *catalog.Reader) *ProductHandler {
	return &ProductHandler{DB: db, Catalog: reader}
}

// productView decorates a product with its derived URL slug.
type productView struct {
	models.Product
	Slug string `json:"slug"`
}

func withSlugs(products []models.Product) []productView {
	views := make([]productView, len(products))
	for i := range products {
		views[i] = productView{Product: products[i], Slug: catalog.Slug(&products[i], products)}
	}
	return views
}

// GetAllProducts - GET /api/products
func (h *ProductHandler) GetAllProducts(c *fiber.Ctx) error {
	products, err := h.Catalog.List(c.Context(), c.Query("category"), c.Query("q"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch products"})
	}
	return c.JSON(fiber.Map{"data": withSlugs(products)})
}

// GetProduct - GET /api/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))

	product, err := h.Catalog.ByID(c.Context(), uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	}
	return c.JSON(fiber.Map{"data": product})
}

// GetProductBySlug - GET /api/products/slug/:slug
func (h *ProductHandler) GetProductBySlug(c *fiber.Ctx) error {
	product, err := h.Catalog.BySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	}
	return c.JSON(fiber.Map{"data": product})
}

// GetInterest - GET /api/products/interest
// Random non-upcoming picks for the home page.
func (h *ProductHandler) GetInterest(c *fiber.Ctx) error {
	n := c.QueryInt("count", 4)
	products, err := h.Catalog.Interest(c.Context(), n)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch products"})
	}
	return c.JSON(fiber.Map{"data": withSlugs(products)})
}

// GetCategories - GET /api/categories
func (h *ProductHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.Catalog.Categories(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch categories"})
	}
	return c.JSON(fiber.Map{"data": categories})
}

// CreateProductRequest mirrors the admin add-product form.
type CreateProductRequest struct {
	Name                string       `json:"name"`
	Color               string       `json:"color"`
	Price               models.Price `json:"price"`
	Discount            float64      `json:"discount"`
	Stock               int          `json:"stock"`
	Images              []string     `json:"images"`
	Category            string       `json:"category"`
	Availability        string       `json:"availability"`
	HotDeal             bool         `json:"hotDeal"`
	Description         string       `json:"description"`
	DetailedDescription string       `json:"detailedDescription"`
	MetaTitle           string       `json:"metaTitle"`
	MetaDescription     string       `json:"metaDescription"`
}

// CreateProduct - POST /api/admin/products
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.Availability == "" {
		req.Availability = models.AvailabilityReady
	}
	if !validAvailability(req.Availability) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Availability must be Ready, Pre Order, or Upcoming"})
	}
	if req.Stock < models.StockUnlimited {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Stock must be >= -1"})
	}
	if req.Discount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Discount must be a non-negative number"})
	}
	if !req.Price.TBA && req.Discount > req.Price.Amount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Discount cannot exceed price"})
	}

	product := models.Product{
		Name:                req.Name,
		Color:               req.Color,
		Price:               req.Price,
		Discount:            req.Discount,
		Stock:               req.Stock,
		Images:              req.Images,
		Category:            req.Category,
		Availability:        req.Availability,
		HotDeal:             req.HotDeal,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		MetaTitle:           req.MetaTitle,
		MetaDescription:     req.MetaDescription,
	}

	if err := h.DB.Create(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create product"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// UpdateProductFieldRequest is one inline edit from the admin table.
type UpdateProductFieldRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// UpdateProductField - PATCH /api/admin/products/:id
// Field-level edit matching the admin console's inline table editing.
func (h *ProductHandler) UpdateProductField(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))

	var req UpdateProductFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	}

	if err := applyProductField(&product, req.Field, req.Value); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not update product"})
	}

	return c.JSON(fiber.Map{"message": "Product updated", "data": product, "stockStatus": product.StockStatus()})
}

// DeleteProduct - DELETE /api/admin/products/:id
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	}

	if err := h.DB.Delete(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not delete product"})
	}

	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func validAvailability(v string) bool {
	switch v {
	case models.AvailabilityReady, models.AvailabilityPreOrder, models.AvailabilityUpcoming:
		return true
	}
	return false
}

// applyProductField validates and applies a single-field edit. The field
// whitelist and validation rules mirror the admin products table.
func applyProductField(p *models.Product, field string, value json.RawMessage) error {
	switch field {
	case "name":
		return unmarshalString(value, &p.Name)
	case "color":
		return unmarshalString(value, &p.Color)
	case "category":
		return unmarshalString(value, &p.Category)
	case "description":
		return unmarshalString(value, &p.Description)
	case "detailedDescription":
		return unmarshalString(value, &p.DetailedDescription)
	case "metaTitle":
		return unmarshalString(value, &p.MetaTitle)
	case "metaDescription":
		return unmarshalString(value, &p.MetaDescription)
	case "price":
		var price models.Price
		if err := json.Unmarshal(value, &price); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Price must be a number or \"TBA\"")
		}
		if !price.TBA && price.Amount < p.Discount {
			return fiber.NewError(fiber.StatusBadRequest, "Price cannot drop below the current discount")
		}
		p.Price = price
		return nil
	case "discount":
		var n float64
		if err := json.Unmarshal(value, &n); err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Discount must be a non-negative number")
		}
		if !p.Price.TBA && n > p.Price.Amount {
			return fiber.NewError(fiber.StatusBadRequest, "Discount cannot exceed price")
		}
		p.Discount = n
		return nil
	case "stock":
		var n int
		if err := json.Unmarshal(value, &n); err != nil || n < models.StockUnlimited {
			return fiber.NewError(fiber.StatusBadRequest, "Stock must be an integer >= -1")
		}
		p.Stock = n
		return nil
	case "availability":
		var s string
		if err := json.Unmarshal(value, &s); err != nil || !validAvailability(s) {
			return fiber.NewError(fiber.StatusBadRequest, "Availability must be Ready, Pre Order, or Upcoming")
		}
		p.Availability = s
		return nil
	case "hotDeal":
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "hotDeal must be a boolean")
		}
		p.HotDeal = b
		return nil
	case "images":
		var images []string
		if err := json.Unmarshal(value, &images); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Images must be a list of URLs")
		}
		p.Images = images
		return nil
	default:
		return fiber.NewError(fiber.StatusBadRequest, "Unknown field "+field)
	}
}

func unmarshalString(value json.RawMessage, dst *string) error {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Value must be a string")
	}
	*dst = s
	return nil
}
