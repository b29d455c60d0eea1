// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/domain/order"
	"github.com/maxreshetnik/portfolio/internal/domain/user"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		&user.User{},

		&catalog.Category{},
		&catalog.Product{},
		&catalog.Specification{},
		&catalog.Rate{},

		&order.Order{},
		&order.Item{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates the constraints and indexes gorm tags cannot
// express: the one-cart-per-user partial unique index, the non-negative
// stock check and the full-text search indexes.
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	statements := []string{
		// One order in the cart status per user.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_user_cart ON orders(user_id) WHERE status = 1",

		// Backstop for the guarded reservation updates.
		`DO $$ BEGIN
			ALTER TABLE specifications ADD CONSTRAINT chk_specifications_available_qty CHECK (available_qty >= 0);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,

		// Full-text search
		"CREATE INDEX IF NOT EXISTS idx_categories_name_fts ON categories USING GIN (to_tsvector('english', name))",
		"CREATE INDEX IF NOT EXISTS idx_products_name_fts ON products USING GIN (to_tsvector('english', name || ' ' || marking))",
		"CREATE INDEX IF NOT EXISTS idx_specifications_tag_fts ON specifications USING GIN (to_tsvector('english', tag))",

		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",

		// Listing indexes
		"CREATE INDEX IF NOT EXISTS idx_specifications_category_qty ON specifications(category_id, available_qty)",
		"CREATE INDEX IF NOT EXISTS idx_specifications_created_at ON specifications(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_order_date ON orders(order_date DESC)",
	}

	successCount := 0
	failCount := 0

	for _, stmt := range statements {
		if err := m.db.Exec(stmt).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if err := m.seedSampleProducts(); err != nil {
		return fmt.Errorf("failed to seed sample products: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

// seedCategories creates the default category tree, one top-level
// category per product kind plus a few subcategories.
func (m *Migration) seedCategories() error {
	log.Println("🏷️ Seeding categories...")

	tops := []catalog.Category{
		{Name: "TVs", Kind: catalog.KindTV},
		{Name: "Smartphones", Kind: catalog.KindSmartphone},
		{Name: "Clothing", Kind: catalog.KindClothing},
		{Name: "Food", Kind: catalog.KindFood},
	}

	topIDs := make(map[catalog.ProductKind]uint, len(tops))
	for _, category := range tops {
		var existing catalog.Category
		result := m.db.Where("name = ?", category.Name).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&category).Error; err != nil {
				return err
			}
			log.Printf("✅ Created category: %s", category.Name)
			topIDs[category.Kind] = category.ID
		} else {
			topIDs[existing.Kind] = existing.ID
		}
	}

	subs := []catalog.Category{
		{Name: "OLED TVs", Kind: catalog.KindTV},
		{Name: "LED TVs", Kind: catalog.KindTV},
		{Name: "Menswear", Kind: catalog.KindClothing},
		{Name: "Womenswear", Kind: catalog.KindClothing},
		{Name: "Groceries", Kind: catalog.KindFood},
	}
	for _, category := range subs {
		parentID := topIDs[category.Kind]
		if parentID == 0 {
			continue
		}
		category.ParentID = &parentID

		var existing catalog.Category
		result := m.db.Where("name = ?", category.Name).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&category).Error; err != nil {
				return err
			}
			log.Printf("✅ Created category: %s", category.Name)
		}
	}

	return nil
}

func (m *Migration) seedAdminUser() error {
	log.Println("👤 Seeding admin user...")

	var existing user.User
	result := m.db.Where("email = ?", "admin@example.com").First(&existing)
	if result.Error == nil {
		log.Printf("⏭️ Admin user already exists with ID: %d", existing.ID)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("Admin123!"), 10)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	adminUser := user.User{
		Email:     "admin@example.com",
		Password:  string(hashedPassword),
		FirstName: "Admin",
		LastName:  "User",
		IsActive:  true,
		IsAdmin:   true,
	}
	if err := m.db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Println("✅ Created admin user: admin@example.com")
	return nil
}

// seedSampleProducts creates a couple of products with sellable
// specifications for development environments.
func (m *Migration) seedSampleProducts() error {
	log.Println("🛍️ Seeding sample products...")

	var productCount int64
	m.db.Model(&catalog.Product{}).Count(&productCount)
	if productCount > 0 {
		log.Println("⏭️ Sample products already exist")
		return nil
	}

	var tvCategory, foodCategory catalog.Category
	if err := m.db.Where("name = ?", "OLED TVs").First(&tvCategory).Error; err != nil {
		return err
	}
	if err := m.db.Where("name = ?", "Groceries").First(&foodCategory).Error; err != nil {
		return err
	}

	tv := catalog.Product{
		Kind:             catalog.KindTV,
		Name:             "Bravia XR",
		Marking:          "XR-55A80L",
		Description:      "55 inch OLED television.",
		Unit:             catalog.UnitPiece,
		CategoryID:       tvCategory.ID,
		ScreenDiagonal:   "55",
		ScreenResolution: "3840x2160",
	}
	if err := m.db.Create(&tv).Error; err != nil {
		return err
	}
	tvSpec := catalog.Specification{
		Tag:          "55 inch",
		PrePacking:   decimal.NewFromInt(1),
		WeightVol:    decimal.RequireFromString("18.6"),
		Price:        decimal.RequireFromString("1499.99"),
		Discount:     10,
		AvailableQty: decimal.NewFromInt(12),
		CategoryID:   tvCategory.ID,
		ProductKind:  tv.Kind,
		ProductID:    tv.ID,
	}
	if err := m.db.Create(&tvSpec).Error; err != nil {
		return err
	}

	rice := catalog.Product{
		Kind:        catalog.KindFood,
		Name:        "Basmati Rice",
		Marking:     "long grain",
		Description: "Aged long grain rice sold by weight.",
		Unit:        catalog.UnitKilo,
		CategoryID:  foodCategory.ID,
	}
	if err := m.db.Create(&rice).Error; err != nil {
		return err
	}
	riceSpec := catalog.Specification{
		Tag:          "loose weight",
		PrePacking:   decimal.RequireFromString("0.5"),
		WeightVol:    decimal.RequireFromString("0.5"),
		Price:        decimal.RequireFromString("4.20"),
		AvailableQty: decimal.RequireFromString("250"),
		CategoryID:   foodCategory.ID,
		ProductKind:  rice.Kind,
		ProductID:    rice.ID,
	}
	if err := m.db.Create(&riceSpec).Error; err != nil {
		return err
	}

	log.Println("✅ Created sample products")
	return nil
}
