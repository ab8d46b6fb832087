package localserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testHandler(snapErr error) *Handler {
	return NewHandler(
		func() Status {
			return Status{Version: "test", Workspace: "ws1", Files: 3, WALBytes: 128}
		},
		func() error { return snapErr },
	)
}

func TestHandler_Ping(t *testing.T) {
	var sb strings.Builder
	if err := testHandler(nil).Execute(&sb, "ping"); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if sb.String() != "pong\n" {
		t.Fatalf("response = %q, want pong", sb.String())
	}
}

func TestHandler_StatusRendersFields(t *testing.T) {
	var sb strings.Builder
	if err := testHandler(nil).Execute(&sb, "status"); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"version:\ttest", "workspace:\tws1", "files:\t3", "wal_bytes:\t128"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output %q missing %q", out, want)
		}
	}
}

func TestHandler_SnapshotReportsFailureWithoutClosing(t *testing.T) {
	var sb strings.Builder
	if err := testHandler(errors.New("disk full")).Execute(&sb, "snapshot"); err != nil {
		t.Fatalf("Execute error: %v (a failed snapshot must not drop the connection)", err)
	}
	if !strings.Contains(sb.String(), "disk full") {
		t.Fatalf("response = %q, want the snapshot error", sb.String())
	}
}

func TestHandler_UnknownCommand(t *testing.T) {
	var sb strings.Builder
	if err := testHandler(nil).Execute(&sb, "frobnicate"); err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if !strings.Contains(sb.String(), "unknown command") {
		t.Fatalf("response = %q, want unknown command", sb.String())
	}
}

func TestServer_ServesOverUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mgmt.sock")
	srv := New(path, testHandler(nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.ListenAndServe()
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		<-done
	})

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("unix", path)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if line != "pong\n" {
		t.Fatalf("response = %q, want pong", line)
	}
}
