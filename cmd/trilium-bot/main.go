package main

import (
	"fmt"
	"os"

	"github.com/alexanderramin/trilium-bot/internal/app"
	"github.com/alexanderramin/trilium-bot/internal/cli"
	"github.com/alexanderramin/trilium-bot/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return cli.NewRootCmd(&cfg, app.New).Execute()
}
