package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/epicenterhq/epicenter-go/internal/vfs"
)

func fsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fs",
		Usage: "filesystem operations",
		Subcommands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list a directory",
				ArgsUsage: "[path]",
				Action: withSession(func(c *cli.Context, s *session) error {
					path := c.Args().First()
					if path == "" {
						path = "/"
					}
					entries, err := s.fs.ReaddirWithFileTypes(path)
					if err != nil {
						return err
					}
					for _, e := range entries {
						marker := ""
						if e.IsDir() {
							marker = "/"
						}
						fmt.Fprintln(c.App.Writer, e.Name+marker)
					}
					return nil
				}),
			},
			{
				Name:      "cat",
				Usage:     "print a file's content",
				ArgsUsage: "<path>",
				Action: withSession(func(c *cli.Context, s *session) error {
					data, err := s.fs.ReadFileBuffer(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(data)
					return err
				}),
			},
			{
				Name:      "write",
				Usage:     "write stdin (or the second argument) to a file",
				ArgsUsage: "<path> [content]",
				Action: withSession(func(c *cli.Context, s *session) error {
					path := c.Args().First()
					if c.Args().Len() > 1 {
						return s.fs.WriteFile(c.Context, path, c.Args().Get(1))
					}
					data, err := io.ReadAll(os.Stdin)
					if err != nil {
						return err
					}
					return s.fs.WriteFileBytes(c.Context, path, data)
				}),
			},
			{
				Name:      "append",
				Usage:     "append the second argument to a file",
				ArgsUsage: "<path> <content>",
				Action: withSession(func(c *cli.Context, s *session) error {
					return s.fs.AppendFile(c.Context, c.Args().First(), c.Args().Get(1))
				}),
			},
			{
				Name:      "mkdir",
				Usage:     "create a directory",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "p", Usage: "create missing parents"},
				},
				Action: withSession(func(c *cli.Context, s *session) error {
					return s.fs.Mkdir(c.Args().First(), vfs.MkdirOptions{Recursive: c.Bool("p")})
				}),
			},
			{
				Name:      "rm",
				Usage:     "remove a file or directory",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "r", Usage: "remove recursively"},
					&cli.BoolFlag{Name: "f", Usage: "ignore missing paths"},
				},
				Action: withSession(func(c *cli.Context, s *session) error {
					return s.fs.Rm(c.Args().First(), vfs.RmOptions{
						Recursive: c.Bool("r"),
						Force:     c.Bool("f"),
					})
				}),
			},
			{
				Name:      "mv",
				Usage:     "move or rename",
				ArgsUsage: "<src> <dst>",
				Action: withSession(func(c *cli.Context, s *session) error {
					return s.fs.Mv(c.Args().First(), c.Args().Get(1))
				}),
			},
			{
				Name:      "cp",
				Usage:     "copy a file or tree",
				ArgsUsage: "<src> <dst>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "r", Usage: "copy recursively"},
				},
				Action: withSession(func(c *cli.Context, s *session) error {
					return s.fs.Cp(c.Context, c.Args().First(), c.Args().Get(1),
						vfs.CpOptions{Recursive: c.Bool("r")})
				}),
			},
			{
				Name:      "stat",
				Usage:     "print a path's metadata",
				ArgsUsage: "<path>",
				Action: withSession(func(c *cli.Context, s *session) error {
					info, err := s.fs.Stat(c.Args().First())
					if err != nil {
						return err
					}
					kind := "file"
					if info.IsDir {
						kind = "folder"
					}
					fmt.Fprintf(c.App.Writer, "name:\t%s\ntype:\t%s\nsize:\t%d\nmode:\t%s\nmtime:\t%s\nid:\t%s\n",
						info.Name, kind, info.Size, info.Mode, info.ModTime.Format("2006-01-02T15:04:05.000Z07:00"), info.ID)
					return nil
				}),
			},
		},
	}
}
