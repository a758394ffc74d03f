package config

import (
	"log"

	"keebshop_backend/models"
	"keebshop_backend/utils"

	"gorm.io/gorm"
)

func SeedCategories(db *gorm.DB) {
	categories := []models.Category{
		{Name: "Keycaps", Image: "k.png"},
		{Name: "Switches", Image: "s.png"},
		{Name: "Keyboard and Mouse", Image: "k&b.png"},
		{Name: "Accessories and Collectables", Image: "c&a.png"},
	}

	for _, c := range categories {
		db.Where(models.Category{Name: c.Name}).FirstOrCreate(&c)
	}
	log.Println("Categories seeded")
}

func SeedUsers(db *gorm.DB) {
	log.Println("🌱 Seeding users...")

	password, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			Email:    "admin@keebshop.local",
			Password: password,
			FullName: "Shop Admin",
			Role:     "admin",
		},
	}

	for _, u := range users {
		db.Where(models.User{Email: u.Email}).FirstOrCreate(&u)
	}
}

func SeedProducts(db *gorm.DB) {
	log.Println("🌱 Seeding products...")

	var count int64
	db.Model(&models.Product{}).Count(&count)
	if count > 0 {
		return
	}

	products := []models.Product{
		{
			Name:         "GMK Olivia Clone",
			Color:        "Pink",
			Price:        models.PriceOf(1850),
			Discount:     150,
			Stock:        12,
			Category:     "Keycaps",
			Availability: models.AvailabilityReady,
			HotDeal:      true,
			Images:       []string{"https://cdn.keebshop.local/olivia-1.jpg", "https://cdn.keebshop.local/olivia-2.jpg"},
			Description:  "PBT dye-sub keycap set, Cherry profile.",
		},
		{
			Name:         "Gateron Milky Yellow Pro",
			Color:        "",
			Price:        models.PriceOf(9),
			Stock:        models.StockUnlimited,
			Category:     "Switches",
			Availability: models.AvailabilityReady,
			Description:  "Linear switch, sold per piece. Factory lubed.",
		},
		{
			Name:         "Zoom75 Essential Edition",
			Color:        "Sea Salt",
			Price:        models.PriceOf(21500),
			Stock:        0,
			Category:     "Keyboard and Mouse",
			Availability: models.AvailabilityPreOrder,
			Description:  "Group buy. 25% advance to confirm your slot.",
		},
		{
			Name:         "Artisan Axolotl Resin Cap",
			Color:        "Amber",
			Price:        models.PriceTBA(),
			Stock:        0,
			Category:     "Accessories and Collectables",
			Availability: models.AvailabilityUpcoming,
			Description:  "Hand-cast artisan keycap. Drop date to be announced.",
		},
	}

	if err := db.Create(&products).Error; err != nil {
		log.Printf("Failed to seed products: %v", err)
	}
}
