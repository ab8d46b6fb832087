package respkv

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/epicenterhq/epicenter-go/internal/workspace"
)

func newClientWithResp(t *testing.T, addr, authToken string) *workspace.Client {
	t.Helper()
	b := workspace.NewWorkspace("ws1", true)
	b.WithExtension(Key, Extension(Config{Addr: addr, AuthToken: authToken}))
	c := b.Build()
	if err := c.WhenReady(context.Background()); err != nil {
		t.Fatalf("WhenReady error: %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	return c
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func dialRESP(t *testing.T, addr string) net.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up on %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func command(args ...string) string {
	var sb strings.Builder
	sb.WriteString("*")
	sb.WriteString(strconv.Itoa(len(args)))
	sb.WriteString("\r\n")
	for _, a := range args {
		sb.WriteString("$")
		sb.WriteString(strconv.Itoa(len(a)))
		sb.WriteString("\r\n")
		sb.WriteString(a)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func TestStoreAdapter(t *testing.T) {
	c := newClientWithResp(t, freeAddr(t), "")
	store := workspace.Extension[*Exports](c, Key).Store

	store.Set("k", []byte("v"))
	got, ok := store.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Get(k) = (%q, %v), want (v, true)", got, ok)
	}
	if !store.Exists("k") {
		t.Fatal("Exists(k) = false after Set")
	}
	if !store.Del("k") {
		t.Fatal("Del(k) = false, want true for an existing key")
	}
	if store.Del("k") {
		t.Fatal("second Del(k) = true, want false")
	}
	if store.Exists("k") {
		t.Fatal("Exists(k) = true after Del")
	}
}

func TestRESPWireRoundTrip(t *testing.T) {
	addr := freeAddr(t)
	newClientWithResp(t, addr, "")

	conn := dialRESP(t, addr)
	defer conn.Close()
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte(command("PING"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != "+PONG" {
		t.Fatalf("PING reply = %q, want +PONG", got)
	}

	if _, err := conn.Write([]byte(command("SET", "greeting", "hello"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != "+OK" {
		t.Fatalf("SET reply = %q, want +OK", got)
	}

	if _, err := conn.Write([]byte(command("GET", "greeting"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != "$5" {
		t.Fatalf("GET length line = %q, want $5", got)
	}
	if got := readLine(t, r); got != "hello" {
		t.Fatalf("GET payload = %q, want hello", got)
	}

	if _, err := conn.Write([]byte(command("DEL", "greeting"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != ":1" {
		t.Fatalf("DEL reply = %q, want :1", got)
	}
}

func TestRESPAuthRequired(t *testing.T) {
	addr := freeAddr(t)
	newClientWithResp(t, addr, "sekrit")

	conn := dialRESP(t, addr)
	defer conn.Close()
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte(command("GET", "k"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); !strings.HasPrefix(got, "-NOAUTH") {
		t.Fatalf("unauthenticated GET reply = %q, want -NOAUTH...", got)
	}

	if _, err := conn.Write([]byte(command("AUTH", "sekrit"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != "+OK" {
		t.Fatalf("AUTH reply = %q, want +OK", got)
	}

	if _, err := conn.Write([]byte(command("EXISTS", "k"))); err != nil {
		t.Fatal(err)
	}
	if got := readLine(t, r); got != ":0" {
		t.Fatalf("authenticated EXISTS reply = %q, want :0", got)
	}
}
