package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/gstbill/gstbill/internal/app"
	"github.com/gstbill/gstbill/internal/config"
)

func main() {

	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	a.Run(ctx)

}
