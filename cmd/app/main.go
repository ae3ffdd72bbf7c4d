package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"render-sender/internal/bootstrap"
)

func main() {
	app, err := bootstrap.New()
	if errors.Is(err, bootstrap.ErrAlreadyRunning) {
		fmt.Fprintln(os.Stderr, "render-sender is already open")
		return
	}
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
