package main

import (
	"log"

	"github.com/migasfree/migasfree-backend/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ migasfreed failed to start: %v", err)
	}
}
