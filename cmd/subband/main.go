// Package main provides the CLI entry point for subband.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, l10n.F("subband version %s", c.App.Version))
	}

	return &cli.App{
		Name:        "subband",
		Usage:       l10n.T("Pyramid motion search video encoder"),
		Description: l10n.T("subband encodes raw video with hierarchical motion estimation and adaptive rate control."),
		Version:     version,
		Commands: []*cli.Command{
			encodeCommand(),
			inspectCommand(),
			{
				Name:        "version",
				Usage:       l10n.T("Show version information"),
				Description: l10n.T("Display the version of subband."),
				Action: func(c *cli.Context) error {
					cli.VersionPrinter(c)
					return nil
				},
			},
		},
	}
}
