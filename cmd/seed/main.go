// Seeds demo accounts (customer, agent, support) for local development.
package main

import (
	"log"
	"os"

	"pesaflow/internal/config"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		log.Fatal("SEED_PASSWORD must be set in environment")
	}

	if err := repositories.InitDB(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	defer func() {
		if repositories.DB != nil {
			sqlDB, err := repositories.DB.DB()
			if err == nil {
				if err := sqlDB.Close(); err != nil {
					log.Printf("⚠️ Failed to close PostgreSQL connection: %v", err)
				}
			}
		}
		if repositories.RedisClient != nil {
			if err := repositories.RedisClient.Close(); err != nil {
				log.Printf("⚠️ Failed to close Redis connection: %v", err)
			}
		}
	}()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	seeds := []models.Account{
		{
			Email:    "customer@pesaflow.dev",
			Password: string(hashed),
			Name:     "Demo Customer",
			Phone:    "+254700000001",
			Role:     models.RoleUser,
		},
		{
			Email:    "agent@pesaflow.dev",
			Password: string(hashed),
			Name:     "Demo Agent",
			Phone:    "+254700000002",
			Role:     models.RoleAgent,
			IsAgent:  true,
		},
		{
			Email:    "support@pesaflow.dev",
			Password: string(hashed),
			Name:     "Demo Support",
			Phone:    "+254700000003",
			Role:     models.RoleAdmin,
		},
	}

	for i := range seeds {
		var existing models.Account
		if err := repositories.DB.Where("email = ?", seeds[i].Email).First(&existing).Error; err == nil {
			log.Printf("Account %s already exists", seeds[i].Email)
			continue
		}
		if err := repositories.DB.Create(&seeds[i]).Error; err != nil {
			log.Fatal("Failed to create seed account:", err)
		}
		log.Printf("✅ Created %s (%s)", seeds[i].Email, seeds[i].Role)
	}
}
