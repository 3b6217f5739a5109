package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/meruscrap/pimapos/internal/database"
	"github.com/meruscrap/pimapos/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("Verifying seed data...")
	fmt.Println()

	var purchaseCount, saleCount, photoCount, notificationCount, sessionCount int64

	database.DB.Model(&models.PurchaseTransaction{}).Count(&purchaseCount)
	database.DB.Model(&models.SaleTransaction{}).Count(&saleCount)
	database.DB.Model(&models.TransactionPhoto{}).Count(&photoCount)
	database.DB.Model(&models.NotificationRecord{}).Where("deleted_at IS NULL").Count(&notificationCount)
	database.DB.Model(&models.UserSession{}).Where("is_active = true").Count(&sessionCount)

	fmt.Println("Record counts:")
	fmt.Printf("  Purchases:       %d\n", purchaseCount)
	fmt.Printf("  Sales:           %d\n", saleCount)
	fmt.Printf("  Photos:          %d\n", photoCount)
	fmt.Printf("  Notifications:   %d\n", notificationCount)
	fmt.Printf("  Active sessions: %d\n", sessionCount)
	fmt.Println()

	var pending []models.NotificationRecord
	database.DB.
		Where("is_handled = false AND is_dismissed = false AND deleted_at IS NULL").
		Order("created_at DESC").
		Limit(5).
		Find(&pending)

	fmt.Printf("Newest pending notifications (%d shown):\n", len(pending))
	for _, rec := range pending {
		fmt.Printf("  %s  %s  tx=%s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.EventType, rec.TransactionID)
	}

	if purchaseCount == 0 && saleCount == 0 {
		fmt.Println()
		fmt.Println("No transactions found. Run `go run ./cmd/seed dev` first.")
	}
}
