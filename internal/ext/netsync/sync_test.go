package netsync

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/schema"
	"github.com/epicenterhq/epicenter-go/internal/server/httpserver"
	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

type post struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func postsTable() schema.TableDefinition[post] {
	return schema.TableDefinition[post]{
		RowID: func(p post) string { return p.ID },
	}
}

func newRelay(t *testing.T, requireAuth bool, token string) *httptest.Server {
	t.Helper()
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Store:       NewUpdateLog(),
		RequireAuth: requireAuth,
		PeerToken:   token,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func newSyncedClient(t *testing.T, replica crdt.ReplicaID, cfg Config) *workspace.Client {
	t.Helper()
	b := workspace.NewWorkspace("room1", true, workspace.WithReplicaID(replica))
	workspace.WithTable(b, "posts", postsTable())
	b.WithExtension(Key, Extension(cfg))
	c := b.Build()
	if err := c.WhenReady(context.Background()); err != nil {
		t.Fatalf("WhenReady error: %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	return c
}

func TestDirectModeConvergesThroughRelay(t *testing.T) {
	srv := newRelay(t, false, "")
	cfg := Config{Mode: ModeDirect, ServerURL: srv.URL, PullInterval: time.Hour}

	a := newSyncedClient(t, 5, cfg)
	b := newSyncedClient(t, 12, cfg)

	if err := workspace.Table[post](a, "posts").Set(post{ID: "p1", Title: "hello"}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := workspace.Extension[*Sync](a, Key).ForceSync(ctx); err != nil {
		t.Fatalf("a ForceSync error: %v", err)
	}
	if err := workspace.Extension[*Sync](b, Key).ForceSync(ctx); err != nil {
		t.Fatalf("b ForceSync error: %v", err)
	}

	res := workspace.Table[post](b, "posts").Get("p1")
	if res.Status != schema.StatusValid || res.Value.Title != "hello" {
		t.Fatalf("b's view = %+v, want valid hello", res)
	}
}

func TestBidirectionalMergeKeepsBothRows(t *testing.T) {
	srv := newRelay(t, false, "")
	cfg := Config{Mode: ModeDirect, ServerURL: srv.URL, PullInterval: time.Hour}

	a := newSyncedClient(t, 5, cfg)
	b := newSyncedClient(t, 12, cfg)
	ctx := context.Background()

	if err := workspace.Table[post](a, "posts").Set(post{ID: "pa", Title: "from-a"}); err != nil {
		t.Fatal(err)
	}
	if err := workspace.Table[post](b, "posts").Set(post{ID: "pb", Title: "from-b"}); err != nil {
		t.Fatal(err)
	}

	sa := workspace.Extension[*Sync](a, Key)
	sb := workspace.Extension[*Sync](b, Key)
	if err := sa.ForceSync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sb.ForceSync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sa.ForceSync(ctx); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*workspace.Client{a, b} {
		posts := workspace.Table[post](c, "posts")
		if res := posts.Get("pa"); res.Status != schema.StatusValid {
			t.Fatalf("pa missing on a client: %+v", res)
		}
		if res := posts.Get("pb"); res.Status != schema.StatusValid {
			t.Fatalf("pb missing on a client: %+v", res)
		}
	}
}

func TestAuthenticatedModeRequiresToken(t *testing.T) {
	srv := newRelay(t, true, "sekrit")

	// Wrong token: the extension must fail ready with the 4401 sentinel.
	b := workspace.NewWorkspace("room1", true)
	workspace.WithTable(b, "posts", postsTable())
	b.WithExtension(Key, Extension(Config{
		Mode:      ModeAuthenticated,
		ServerURL: srv.URL,
		TokenFunc: func(ctx context.Context) (string, error) { return "wrong", nil },
	}))
	c := b.Build()
	err := c.WhenReady(context.Background())
	if err == nil {
		t.Fatal("WhenReady succeeded with a bad token")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	_ = c.Destroy()

	// Correct token: ready and able to sync.
	good := newSyncedClient(t, 3, Config{
		Mode:      ModeAuthenticated,
		ServerURL: srv.URL,
		TokenFunc: func(ctx context.Context) (string, error) { return "sekrit", nil },
	})
	if err := workspace.Extension[*Sync](good, Key).ForceSync(context.Background()); err != nil {
		t.Fatalf("authenticated ForceSync error: %v", err)
	}
}

func TestUpdateLogCursorSemantics(t *testing.T) {
	l := NewUpdateLog()
	c1, _ := l.Append([]byte("one"))
	c2, _ := l.Append([]byte("two"))
	if c1 != 1 || c2 != 2 {
		t.Fatalf("cursors = %d, %d, want 1, 2", c1, c2)
	}

	all, _ := l.Since(0)
	if len(all) != 2 {
		t.Fatalf("Since(0) returned %d updates, want 2", len(all))
	}
	rest, _ := l.Since(1)
	if len(rest) != 1 || string(rest[0]) != "two" {
		t.Fatalf("Since(1) = %q, want [two]", rest)
	}
	none, _ := l.Since(2)
	if len(none) != 0 {
		t.Fatalf("Since(head) returned %d updates, want 0", len(none))
	}
}
