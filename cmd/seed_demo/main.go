package main

import (
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/database"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/store"
)

func main() {
	fmt.Println("🌱 eckPOS Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	localStore := store.New(db)
	if err := localStore.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var tableCount int64
	db.Model(&models.DiningTable{}).Count(&tableCount)
	if tableCount > 0 {
		fmt.Printf("⚠️  Database already has %d tables. Clear it first? (y/N): ", tableCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE orders CASCADE")
		db.Exec("TRUNCATE TABLE pending_writes CASCADE")
		db.Exec("TRUNCATE TABLE sync_checkpoints CASCADE")
		db.Exec("TRUNCATE TABLE menu_items CASCADE")
		db.Exec("TRUNCATE TABLE menu_categories CASCADE")
		db.Exec("TRUNCATE TABLE dining_tables CASCADE")
		fmt.Println("✅ Data cleared")
	}

	now := time.Now().UTC()

	fmt.Println()
	fmt.Println("🪑 Creating tables...")
	for i := 1; i <= 12; i++ {
		capacity := 2
		if i%3 == 0 {
			capacity = 4
		}
		if i > 10 {
			capacity = 8
		}
		table := models.DiningTable{
			ID:        fmt.Sprintf("table-%d", i),
			Number:    i,
			Capacity:  capacity,
			Status:    models.TableStatusFree,
			UpdatedAt: now,
		}
		if err := db.Create(&table).Error; err != nil {
			log.Fatalf("❌ Failed to create table %d: %v", i, err)
		}
	}
	fmt.Println("✅ Created 12 tables")

	fmt.Println()
	fmt.Println("📋 Creating menu...")
	categories := []models.MenuCategory{
		{ID: "cat-starters", Name: "Starters", Sequence: 10, UpdatedAt: now},
		{ID: "cat-mains", Name: "Mains", Sequence: 20, UpdatedAt: now},
		{ID: "cat-drinks", Name: "Drinks", Sequence: 30, UpdatedAt: now},
		{ID: "cat-desserts", Name: "Desserts", Sequence: 40, UpdatedAt: now},
	}
	for _, cat := range categories {
		if err := db.Create(&cat).Error; err != nil {
			log.Fatalf("❌ Failed to create category %s: %v", cat.Name, err)
		}
	}

	items := []models.MenuItem{
		{ID: "item-bruschetta", CategoryID: "cat-starters", Name: "Bruschetta", PriceCents: 650, Active: true, UpdatedAt: now},
		{ID: "item-soup", CategoryID: "cat-starters", Name: "Soup of the Day", PriceCents: 550, Active: true, UpdatedAt: now},
		{ID: "item-margherita", CategoryID: "cat-mains", Name: "Pizza Margherita", PriceCents: 950, Active: true, UpdatedAt: now},
		{ID: "item-carbonara", CategoryID: "cat-mains", Name: "Spaghetti Carbonara", PriceCents: 1150, Active: true, UpdatedAt: now},
		{ID: "item-schnitzel", CategoryID: "cat-mains", Name: "Schnitzel with Fries", PriceCents: 1450, Active: true, UpdatedAt: now},
		{ID: "item-water", CategoryID: "cat-drinks", Name: "Mineral Water 0.5l", PriceCents: 280, Active: true, UpdatedAt: now},
		{ID: "item-cola", CategoryID: "cat-drinks", Name: "Cola 0.33l", PriceCents: 320, Active: true, UpdatedAt: now},
		{ID: "item-espresso", CategoryID: "cat-drinks", Name: "Espresso", PriceCents: 250, Active: true, UpdatedAt: now},
		{ID: "item-tiramisu", CategoryID: "cat-desserts", Name: "Tiramisu", PriceCents: 580, Active: true, UpdatedAt: now},
		{ID: "item-gelato", CategoryID: "cat-desserts", Name: "Gelato (3 scoops)", PriceCents: 480, Active: true, UpdatedAt: now},
	}
	for _, item := range items {
		if err := db.Create(&item).Error; err != nil {
			log.Fatalf("❌ Failed to create item %s: %v", item.Name, err)
		}
	}
	fmt.Printf("✅ Created %d categories, %d items\n", len(categories), len(items))

	fmt.Println()
	fmt.Println("🎉 Demo data ready")
}
