package main

import (
	"fmt"
	"log"
	"os"

	"github.com/maxreshetnik/portfolio/internal/config"
	"github.com/maxreshetnik/portfolio/internal/pkg/auth"
)

// Hashes a password with the configured bcrypt cost so the result can be
// seeded straight into the users table. The password goes through the same
// strength validation the registration endpoint applies.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/generate_password.go <password>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	pm := auth.NewPasswordManager(cfg)
	hash, err := pm.HashPassword(os.Args[1])
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	if err := pm.VerifyPassword(os.Args[1], hash); err != nil {
		log.Fatal("Hash verification failed:", err)
	}

	fmt.Printf("Bcrypt cost: %d\n", cfg.Security.BcryptCost)
	fmt.Printf("Hash: %s\n", hash)
}
