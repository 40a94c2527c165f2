package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	translationmanager "github.com/pitabwire/translation-manager"
	"github.com/pitabwire/translation-manager/foundation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:])
	stop()
	exitOnErr(err)
}

func run(ctx context.Context, args []string) error {
	app, err := foundation.New(ctx,
		foundation.WithName("translation-manager"),
		foundation.WithProviders(translationmanager.NewServiceProvider()),
	)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	return app.Run(ctx, args)
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
