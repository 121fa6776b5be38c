package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/suifan/internal/client/app"
	"github.com/dmitrijs2005/suifan/internal/client/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	a, err := app.NewApp(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	a.Run(ctx)
}
