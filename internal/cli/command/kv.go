package command

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/epicenterhq/epicenter-go/internal/schema"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

func kvCommand() *cli.Command {
	return &cli.Command{
		Name:  "kv",
		Usage: "key-value operations",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print a key's JSON value",
				ArgsUsage: "<key>",
				Action: withSession(func(c *cli.Context, s *session) error {
					table := workspace.Table[kvRow](s.client, kvTableName)
					res := table.Get(c.Args().First())
					switch res.Status {
					case schema.StatusNotFound:
						return fmt.Errorf("kv: key %q not found", c.Args().First())
					case schema.StatusInvalid:
						return fmt.Errorf("kv: key %q holds an invalid row", c.Args().First())
					}
					fmt.Fprintln(c.App.Writer, string(res.Value.Value))
					return nil
				}),
			},
			{
				Name:      "set",
				Usage:     "set a key to a JSON value",
				ArgsUsage: "<key> <json>",
				Action: withSession(func(c *cli.Context, s *session) error {
					raw := json.RawMessage(c.Args().Get(1))
					if !json.Valid(raw) {
						// Bare strings are accepted as a convenience.
						quoted, err := json.Marshal(c.Args().Get(1))
						if err != nil {
							return err
						}
						raw = quoted
					}
					table := workspace.Table[kvRow](s.client, kvTableName)
					return table.Set(kvRow{ID: c.Args().First(), Value: raw})
				}),
			},
			{
				Name:      "del",
				Usage:     "delete a key",
				ArgsUsage: "<key>",
				Action: withSession(func(c *cli.Context, s *session) error {
					workspace.Table[kvRow](s.client, kvTableName).Delete(c.Args().First())
					return nil
				}),
			},
			{
				Name:  "list",
				Usage: "list all keys",
				Action: withSession(func(c *cli.Context, s *session) error {
					table := workspace.Table[kvRow](s.client, kvTableName)
					for _, row := range table.GetAllValid() {
						fmt.Fprintln(c.App.Writer, row.ID)
					}
					return nil
				}),
			},
		},
	}
}
