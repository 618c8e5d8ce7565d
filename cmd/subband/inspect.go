package main

import (
	"fmt"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/subband/pkg/adapters/mp4muxer"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:        "inspect",
		Usage:       l10n.T("Print the stream parameters and pictures of an encoded file"),
		Description: l10n.T("Read an MP4 file written by subband and list its pictures."),
		ArgsUsage:   "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pictures", Usage: l10n.T("List every picture")},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("FILE argument is required"), 2)
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			st, err := mp4muxer.Read(f)
			if err != nil {
				return err
			}

			out := c.App.Writer
			var sync, bytes int
			for _, p := range st.Pictures {
				if p.Sync {
					sync++
				}
				bytes += len(p.Payload)
			}
			fmt.Fprintln(out, l10n.F("Stream: %dx%d %s at %.2f fps", st.Meta.Width, st.Meta.Height, st.Meta.Subsampling, st.Meta.FrameRate()))
			fmt.Fprintln(out, l10n.F("Pictures: %d (%d intra), %d payload bytes", len(st.Pictures), sync, bytes))

			if c.Bool("pictures") {
				for i, p := range st.Pictures {
					kind := "P"
					if p.Sync {
						kind = "I"
					}
					fmt.Fprintf(out, "%6d %s %8d %8d\n", i, kind, p.DecodeTime, len(p.Payload))
				}
			}
			return nil
		},
	}
}
