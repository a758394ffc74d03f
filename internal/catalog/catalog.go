// Package catalog reads the product collection and resolves the derived,
// never-persisted product slugs used in storefront URLs.
package catalog

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strings"

	"keebshop_backend/models"

	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

var whitespace = regexp.MustCompile(`\s+`)

// Slugify lowercases a name and collapses whitespace runs into dashes.
func Slugify(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

// Slug derives the URL slug for a product. When several products share a
// name, the color disambiguates; otherwise the name alone is the slug.
func Slug(p *models.Product, all []models.Product) string {
	slug := Slugify(p.Name)
	if p.Color == "" {
		return slug
	}
	sameName := 0
	for i := range all {
		if strings.EqualFold(all[i].Name, p.Name) {
			sameName++
		}
	}
	if sameName > 1 {
		slug += "-" + Slugify(p.Color)
	}
	return slug
}

// Reader fetches products. All reads here are advisory for display; the
// checkout transaction is the only authoritative stock read.
type Reader struct {
	DB *gorm.DB
}

func NewReader(db *gorm.DB) *Reader {
	return &Reader{DB: db}
}

// List returns products, optionally filtered by category and a name search.
func (r *Reader) List(ctx context.Context, category, q string) ([]models.Product, error) {
	query := r.DB.WithContext(ctx).Order("created_at desc")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ByID fetches a single product.
func (r *Reader) ByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// BySlug resolves a human-readable slug back to a product. Slugs are
// derived on the fly, so resolution walks the collection the same way the
// slugs were generated.
func (r *Reader) BySlug(ctx context.Context, slug string) (*models.Product, error) {
	var products []models.Product
	if err := r.DB.WithContext(ctx).Find(&products).Error; err != nil {
		return nil, err
	}
	for i := range products {
		if Slug(&products[i], products) == slug {
			return &products[i], nil
		}
	}
	return nil, ErrProductNotFound
}

// Interest picks up to n random non-upcoming products for the home page.
func (r *Reader) Interest(ctx context.Context, n int) ([]models.Product, error) {
	var products []models.Product
	err := r.DB.WithContext(ctx).
		Where("availability <> ?", models.AvailabilityUpcoming).
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	rand.Shuffle(len(products), func(i, j int) {
		products[i], products[j] = products[j], products[i]
	})
	if len(products) > n {
		products = products[:n]
	}
	return products, nil
}

// Categories lists the storefront categories.
func (r *Reader) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.DB.WithContext(ctx).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}
