package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/epicenterhq/epicenter-go/internal/content"
	"github.com/epicenterhq/epicenter-go/internal/ext/persistence"
	"github.com/epicenterhq/epicenter-go/internal/infra/buildinfo"
	"github.com/epicenterhq/epicenter-go/internal/schema"
	"github.com/epicenterhq/epicenter-go/internal/vfs"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

// kvTableName is the table backing epicenterctl's generic key-value
// commands.
const kvTableName = "kv"

// kvRow is one generic key-value pair: an id and an arbitrary JSON value.
type kvRow struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

func kvTable() schema.TableDefinition[kvRow] {
	return schema.TableDefinition[kvRow]{
		ValueDefinition: schema.ValueDefinition[kvRow]{
			Validate: func(r kvRow) []schema.FieldError {
				if r.ID == "" {
					return []schema.FieldError{{Path: "id", Message: "must not be empty"}}
				}
				return nil
			},
		},
		RowID: func(r kvRow) string { return r.ID },
	}
}

// session is an opened workspace plus the filesystem over it.
type session struct {
	client *workspace.Client
	pool   *content.Pool
	fs     *vfs.FS
}

func openSession(c *cli.Context) (*session, error) {
	dataDir := c.String("data")
	if dataDir == "" {
		return nil, fmt.Errorf("--data directory is required")
	}

	b := workspace.NewWorkspace(c.String("workspace"), true)
	workspace.WithTable(b, vfs.FilesTableName, vfs.FilesTable())
	workspace.WithTable(b, kvTableName, kvTable())
	b.WithExtension(persistence.Key, persistence.Extension(persistence.Config{Dir: dataDir}))
	client := b.Build()
	if err := client.WhenReady(context.Background()); err != nil {
		_ = client.Destroy()
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	persist := workspace.Extension[*persistence.Persistence](client, persistence.Key)
	pool := content.NewPool(persist.ContentProvider())
	fsys := vfs.New(workspace.Table[vfs.FileRow](client, vfs.FilesTableName), pool)
	return &session{client: client, pool: pool, fs: fsys}, nil
}

func (s *session) close() error {
	s.fs.Close()
	if err := s.pool.DestroyAll(); err != nil {
		_ = s.client.Destroy()
		return err
	}
	return s.client.Destroy()
}

// withSession wraps a command action with workspace open/teardown.
func withSession(fn func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		opErr := fn(c, s)
		if cerr := s.close(); cerr != nil && opErr == nil {
			opErr = cerr
		}
		return opErr
	}
}

// App builds the epicenterctl command tree.
func App() *cli.App {
	return &cli.App{
		Name:  "epicenterctl",
		Usage: "manage a local epicenter workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Usage:   "workspace data directory",
				EnvVars: []string{"EPICENTER_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "workspace",
				Usage:   "workspace guid",
				Value:   "epicenter",
				EnvVars: []string{"EPICENTER_WORKSPACE"},
			},
		},
		Commands: []*cli.Command{
			fsCommand(),
			kvCommand(),
			tokenCommand(),
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, "epicenterctl "+buildinfo.String())
					return nil
				},
			},
		},
	}
}
