package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/doncapon/yemisshop-sub009/internal/app"
)

func main() {
	_ = godotenv.Load()

	a := app.New()
	if err := a.Run(); err != nil {
		log.Fatal(err)
	}
}
