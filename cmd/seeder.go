package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample client systems",
	Long:  `Seed the database with sample client systems for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			if _, err := db.Exec("DELETE FROM client_systems"); err != nil {
				log.Fatalf("failed to clear client systems: %v", err)
			}
			fmt.Println("Cleared existing client systems")
		}

		clients := []struct {
			ClientID string
			Name     string
			APIKey   string
		}{
			{"demo-store", "Demo Storefront", "demo-store-api-key"},
			{"acme-pos", "Acme Point of Sale", "acme-pos-api-key"},
		}

		for _, c := range clients {
			var exists int
			if err := db.QueryRow("SELECT 1 FROM client_systems WHERE client_id = $1", c.ClientID).Scan(&exists); err == nil {
				fmt.Printf("client system %s already exists, skipping\n", c.ClientID)
				continue
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(c.APIKey), cfg.Security.BCryptCost)
			if err != nil {
				log.Fatalf("failed to hash api key for %s: %v", c.ClientID, err)
			}

			if _, err := db.Exec(
				"INSERT INTO client_systems (client_id, name, api_key_hash, active, created_at, updated_at) VALUES ($1, $2, $3, true, now(), now())",
				c.ClientID, c.Name, string(hash),
			); err != nil {
				log.Fatalf("failed to insert client system %s: %v", c.ClientID, err)
			}

			fmt.Printf("Seeded client system: %s (api key: %s)\n", c.ClientID, c.APIKey)
		}

		fmt.Println("Client systems seeded successfully")
	},
}
