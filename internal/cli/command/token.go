package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/epicenterhq/epicenter-go/pkg/token"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "generate shared secrets for peer auth and the RESP front-end",
		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "generate a token and print it with its SHA-256 hash",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "peer", Usage: "mark as a sync peer token (epat_ prefix)"},
					&cli.IntFlag{Name: "length", Value: token.DefaultLength, Usage: "token length in bytes"},
				},
				Action: func(c *cli.Context) error {
					var t string
					var err error
					if c.Bool("peer") {
						t, err = token.GeneratePeerToken()
					} else {
						t, err = token.GenerateWithLength(c.Int("length"))
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "token:\t%s\nhash:\t%s\n", t, token.Hash(t))
					return nil
				},
			},
			{
				Name:      "verify",
				Usage:     "check a token against a hash",
				ArgsUsage: "<token> <hash>",
				Action: func(c *cli.Context) error {
					if !token.Verify(c.Args().First(), c.Args().Get(1)) {
						return fmt.Errorf("token: hash mismatch")
					}
					fmt.Fprintln(c.App.Writer, "ok")
					return nil
				},
			},
		},
	}
}
