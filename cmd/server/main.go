package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"groundtruth/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- application.Run() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-sigChan:
		log.Println("Shutting down...")
	}

	if err := application.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
