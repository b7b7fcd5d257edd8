// Package main is the wbik command itself.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"go.viam.com/wholebody/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		cancel()
		log.Fatal(err)
	}
}
