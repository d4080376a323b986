package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"spaceremit/internal/config"
	"spaceremit/internal/db"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
)

// seedOrders are demo orders for exercising the callback flow locally.
var seedOrders = []model.Order{
	{Total: decimal.NewFromFloat(25.00), Currency: "USD", BillingName: "Ada Lovelace", BillingEmail: "ada@example.com"},
	{Total: decimal.NewFromFloat(120.50), Currency: "USD", BillingName: "Grace Hopper", BillingEmail: "grace@example.com"},
	{Total: decimal.NewFromFloat(9.99), Currency: "EUR", BillingName: "Alan Turing", BillingEmail: "alan@example.com"},
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	orderRepo := repository.NewOrderRepository(gormDB)
	ctx := context.Background()

	for i := range seedOrders {
		order := seedOrders[i]
		if err := orderRepo.Create(ctx, &order); err != nil {
			log.Printf("Warning: failed to create order for %s: %v", order.BillingEmail, err)
			continue
		}
		log.Printf("Created order %d (%s %s, key=%s)", order.ID, order.Total, order.Currency, order.OrderKey)
	}

	log.Println("Seed completed")
}
