// Package seed fills a development database with realistic scrap-yard data:
// purchase and sale transactions, photo rows, and the pending notifications a
// busy counter would accumulate.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/meruscrap/pimapos/internal/models"
	"github.com/meruscrap/pimapos/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var materials = []string{
	"copper", "aluminum", "brass", "steel", "cast iron", "lead", "zinc",
	"stainless steel", "mixed metal",
}

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev seeds the development database with realistic data.
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating purchase transactions...")
	purchases, err := s.seedPurchases(120)
	if err != nil {
		return fmt.Errorf("failed to seed purchases: %w", err)
	}

	logger.Log.Info("Creating sale transactions...")
	sales, err := s.seedSales(40)
	if err != nil {
		return fmt.Errorf("failed to seed sales: %w", err)
	}

	logger.Log.Info("Creating transaction photos...")
	if err := s.seedPhotos(purchases); err != nil {
		return fmt.Errorf("failed to seed photos: %w", err)
	}

	logger.Log.Info("Creating pending notifications...")
	if err := s.seedNotifications(purchases, sales, 25); err != nil {
		return fmt.Errorf("failed to seed notifications: %w", err)
	}

	logger.Log.Info("Seeding complete",
		zap.Int("purchases", len(purchases)),
		zap.Int("sales", len(sales)),
	)
	return nil
}

// SeedTest seeds a minimal fixture set for end-to-end tests: one purchase
// with photos, one sale, and a pending notification for each.
func (s *Seeder) SeedTest() error {
	purchases, err := s.seedPurchases(1)
	if err != nil {
		return err
	}
	sales, err := s.seedSales(1)
	if err != nil {
		return err
	}
	if err := s.seedPhotos(purchases); err != nil {
		return err
	}
	return s.seedNotifications(purchases, sales, 2)
}

// Clean removes seeded rows. Notification state goes first so concurrent
// readers never observe dangling transaction ids mid-clean.
func (s *Seeder) Clean() error {
	for _, stmt := range []string{
		"DELETE FROM notification_states",
		"DELETE FROM transaction_photos",
		"DELETE FROM purchase_transactions",
		"DELETE FROM sale_transactions",
		"DELETE FROM user_sessions",
	} {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}
	return nil
}

func (s *Seeder) seedPurchases(count int) ([]models.PurchaseTransaction, error) {
	purchases := make([]models.PurchaseTransaction, 0, count)
	for i := 0; i < count; i++ {
		weight := gofakeit.Float64Range(2, 800)
		pricePerKG := gofakeit.Float64Range(30, 950)
		isWalkIn := gofakeit.Bool()

		p := models.PurchaseTransaction{
			SupplierName:  gofakeit.Name(),
			IsWalkIn:      isWalkIn,
			MaterialType:  materials[rand.Intn(len(materials))],
			WeightKG:      weight,
			TotalAmount:   weight * pricePerKG,
			PaymentStatus: models.PaymentPending,
			CreatedAt:     gofakeit.DateRange(time.Now().Add(-72*time.Hour), time.Now()),
		}
		if !isWalkIn {
			id := gofakeit.UUID()
			p.SupplierID = &id
		}
		if gofakeit.Bool() {
			p.PaymentStatus = models.PaymentCompleted
		}

		if err := s.db.Create(&p).Error; err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, nil
}

func (s *Seeder) seedSales(count int) ([]models.SaleTransaction, error) {
	sales := make([]models.SaleTransaction, 0, count)
	for i := 0; i < count; i++ {
		weight := gofakeit.Float64Range(100, 5000)
		pricePerKG := gofakeit.Float64Range(50, 1100)

		sale := models.SaleTransaction{
			BuyerName:     gofakeit.Company(),
			MaterialType:  materials[rand.Intn(len(materials))],
			WeightKG:      weight,
			TotalAmount:   weight * pricePerKG,
			PaymentStatus: models.PaymentCompleted,
			CreatedAt:     gofakeit.DateRange(time.Now().Add(-72*time.Hour), time.Now()),
		}
		if err := s.db.Create(&sale).Error; err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (s *Seeder) seedPhotos(purchases []models.PurchaseTransaction) error {
	for i := range purchases {
		// Roughly two thirds of purchases get photographed at the scale.
		if rand.Intn(3) == 0 {
			continue
		}
		n := 1 + rand.Intn(3)
		for j := 0; j < n; j++ {
			photo := models.TransactionPhoto{
				TransactionID: purchases[i].ID,
				StoragePath:   fmt.Sprintf("transactions/%s/photo_%d.jpg", purchases[i].ID, j),
				SortOrder:     j,
				IsPrimary:     j == 0,
			}
			if err := s.db.Create(&photo).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// seedNotifications leaves the most recent transactions pending, which is the
// state a terminal comes up in after an unattended busy stretch.
func (s *Seeder) seedNotifications(purchases []models.PurchaseTransaction, sales []models.SaleTransaction, count int) error {
	created := 0
	for i := len(purchases) - 1; i >= 0 && created < count; i-- {
		if err := s.createNotification(&models.Transaction{
			Table:    models.TablePurchases,
			Purchase: &purchases[i],
		}); err != nil {
			return err
		}
		created++
	}
	for i := len(sales) - 1; i >= 0 && created < count; i-- {
		if err := s.createNotification(&models.Transaction{
			Table: models.TableSales,
			Sale:  &sales[i],
		}); err != nil {
			return err
		}
		created++
	}
	return nil
}

func (s *Seeder) createNotification(tx *models.Transaction) error {
	rec := models.NotificationRecord{
		TransactionID:    tx.ID(),
		TransactionTable: tx.Table,
		EventType:        models.EventInsert,
		NotificationData: store.EncodeTransaction(tx),
		PriorityLevel:    models.PriorityFor(models.EventInsert, tx.Total()),
		RequiresAction:   true,
		ExpiresAt:        time.Now().UTC().Add(models.InsertUpdateExpiry),
	}
	return s.db.Create(&rec).Error
}
