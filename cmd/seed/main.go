package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/pharmacy/internal/domain"
	"github.com/vladislavdragonenkov/pharmacy/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// seedItems — демонстрационный каталог. Цены в пайсах.
var seedItems = []domain.CatalogItem{
	{
		ID: "med-paracetamol-500", Name: "Paracetamol 500mg (15 tablets)",
		PriceMinor: 2500, TaxRatePercent: 12, Stock: 200, LowStockThreshold: 20, IsActive: true,
	},
	{
		ID: "med-cetirizine-10", Name: "Cetirizine 10mg (10 tablets)",
		PriceMinor: 1800, DiscountPriceMinor: 1500, TaxRatePercent: 12, Stock: 150, LowStockThreshold: 15, IsActive: true,
	},
	{
		ID: "med-ors-sachet", Name: "ORS Rehydration Sachet",
		PriceMinor: 1200, TaxRatePercent: 5, Stock: 300, LowStockThreshold: 30, IsActive: true,
	},
	{
		ID: "med-amoxicillin-250", Name: "Amoxicillin 250mg (10 capsules)",
		PriceMinor: 5000, TaxRatePercent: 12, Stock: 80, LowStockThreshold: 10,
		PrescriptionRequired: true, IsActive: true,
	},
	{
		ID: "med-azithromycin-500", Name: "Azithromycin 500mg (3 tablets)",
		PriceMinor: 8500, DiscountPriceMinor: 7900, TaxRatePercent: 12, Stock: 60, LowStockThreshold: 10,
		PrescriptionRequired: true, IsActive: true,
	},
	{
		ID: "med-insulin-glargine", Name: "Insulin Glargine 100IU/ml",
		PriceMinor: 65000, TaxRatePercent: 5, Stock: 25, LowStockThreshold: 5,
		PrescriptionRequired: true, IsActive: true,
	},
	{
		ID: "otc-vitamin-c", Name: "Vitamin C 500mg (30 tablets)",
		PriceMinor: 15000, DiscountPriceMinor: 12000, TaxRatePercent: 18, Stock: 120, LowStockThreshold: 12, IsActive: true,
	},
	{
		ID: "otc-thermometer", Name: "Digital Thermometer",
		PriceMinor: 29900, TaxRatePercent: 18, Stock: 40, LowStockThreshold: 5, IsActive: true,
	},
	{
		// снят с продажи: создание заказа с этой позицией должно падать
		ID: "med-discontinued", Name: "Discontinued Cough Syrup",
		PriceMinor: 9000, TaxRatePercent: 12, Stock: 10, LowStockThreshold: 2, IsActive: false,
	},
}

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: PHARMACY_POSTGRES__DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("PHARMACY_POSTGRES__DSN"))
	}
	if dsn == "" {
		fail("PHARMACY_POSTGRES__DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fail("apply migrations: %v", err)
	}

	catalog := postgres.NewCatalogRepository(store)
	for _, item := range seedItems {
		if err := catalog.Upsert(item); err != nil {
			fail("seed %s: %v", item.ID, err)
		}
		fmt.Printf("seeded %s (%s)\n", item.ID, item.Name)
	}
	fmt.Printf("seed complete: %d catalog items\n", len(seedItems))
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
