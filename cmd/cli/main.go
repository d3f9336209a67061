package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/guilucasv/teodorofit/internal/models"
	"github.com/guilucasv/teodorofit/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := addUserCmd.String("username", "", "Username for the new admin user")
	password := addUserCmd.String("password", "", "Password for the new admin user")

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *username == "" || *password == "" {
			fmt.Println("username and password are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		createUser(*username, *password)
	case "seed-products":
		seedProducts()
	case "sync-stock":
		syncStock()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("expected 'add-user', 'seed-products' or 'sync-stock' subcommand")
	os.Exit(1)
}

func openStore() *store.Store {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./teodorofit.db"
	}

	db, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Migrate("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func createUser(username, password string) {
	db := openStore()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	if err := db.CreateUser(username, string(hashedPassword)); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User '%s' created successfully.\n", username)
}

// seedProducts loads the reference catalog into an empty database.
func seedProducts() {
	db := openStore()

	catalog := []models.Product{
		{ID: "prod-001", Title: "Legging Pro", Price: 89.90, Image: "images/model1.png", Description: "Conforto e flexibilidade para seus treinos mais intensos.", Quantity: 15},
		{ID: "prod-002", Title: "Top Elite", Price: 69.90, Image: "images/model2.png", Description: "Sustentação máxima com design moderno.", Quantity: 25},
		{ID: "prod-003", Title: "Conjunto Fit", Price: 149.90, Image: "images/model3.png", Description: "A combinação perfeita de estilo e funcionalidade.", Quantity: 10},
		{ID: "prod-004", Title: "Conjunto Elegance", Price: 60.00, Image: "images/product-3.png", Description: "Conjunto Academia completo: legging modeladora e top esportivo exclusivo.", Quantity: 100},
		{ID: "prod-005", Title: "Conjunto Green Moon", Price: 60.00, Image: "images/product-1.png", Description: "Estilo verde vibrante para quem não tem medo de ousar.", Quantity: 20},
	}

	for i := range catalog {
		catalog[i].LowStockThreshold = 5
		if err := db.CreateProduct(&catalog[i]); err != nil {
			log.Fatalf("Failed to seed product %s: %v", catalog[i].ID, err)
		}
		fmt.Printf("Seeded %s (%s)\n", catalog[i].ID, catalog[i].Title)
	}
	fmt.Println("Catalog seeded successfully.")
}

// syncStock re-mirrors the legacy stock field onto quantity for rows that
// drifted apart.
func syncStock() {
	db := openStore()

	fixed, err := db.SyncStock()
	if err != nil {
		log.Fatalf("Failed to sync stock: %v", err)
	}
	if fixed == 0 {
		fmt.Println("All stock fields already in sync.")
		return
	}
	fmt.Printf("Fixed %d product(s) with drifted stock.\n", fixed)
}
