package main

import (
	"log"
	"os"

	"exam-arena-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("exam-arena: %v", err)
		os.Exit(1)
	}
}
