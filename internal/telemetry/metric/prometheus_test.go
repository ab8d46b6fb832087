package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestRegistry_MutationsTotal(t *testing.T) {
	r := NewRegistry()
	r.MutationsTotal.WithLabelValues("kv", "set").Add(10)
	r.MutationsTotal.WithLabelValues("kv", "set").Inc()
	r.MutationsTotal.WithLabelValues("table", "delete").Inc()

	body := scrape(t, r)

	if !strings.Contains(body, `epicenter_mutations_total{kind="kv",op="set"} 11`) {
		t.Error(`expected epicenter_mutations_total{kind="kv",op="set"} 11`)
	}
	if !strings.Contains(body, `epicenter_mutations_total{kind="table",op="delete"} 1`) {
		t.Error(`expected epicenter_mutations_total{kind="table",op="delete"} 1`)
	}
}

func TestRegistry_ReadsTotal(t *testing.T) {
	r := NewRegistry()
	r.ReadsTotal.WithLabelValues("kv").Add(3)

	body := scrape(t, r)
	if !strings.Contains(body, `epicenter_reads_total{kind="kv"} 3`) {
		t.Error(`expected epicenter_reads_total{kind="kv"} 3`)
	}
}

func TestRegistry_RequestsAndDuration(t *testing.T) {
	r := NewRegistry()
	r.RequestsTotal.WithLabelValues("http", "GET", "200").Inc()
	r.RequestsTotal.WithLabelValues("resp", "GET", "OK").Inc()
	r.RequestDuration.WithLabelValues("http", "GET").Observe(0.02)

	body := scrape(t, r)
	if !strings.Contains(body, `epicenter_requests_total{method="GET",protocol="http",status="200"} 1`) {
		t.Error("expected epicenter_requests_total for http GET 200")
	}
	if !strings.Contains(body, `epicenter_requests_total{method="GET",protocol="resp",status="OK"} 1`) {
		t.Error("expected epicenter_requests_total for resp GET OK")
	}
	if !strings.Contains(body, "epicenter_request_duration_seconds_count") {
		t.Error("expected epicenter_request_duration_seconds_count")
	}
	if !strings.Contains(body, "epicenter_request_duration_seconds_bucket") {
		t.Error("expected epicenter_request_duration_seconds_bucket")
	}
}

func TestRegistry_StorageGauges(t *testing.T) {
	r := NewRegistry()
	r.WALSize.Set(3072)
	r.MemoryUsage.Set(1.048576e+08)
	r.SnapshotSize.Set(2048)

	body := scrape(t, r)
	if !strings.Contains(body, "epicenter_wal_size_bytes 3072") {
		t.Error("expected epicenter_wal_size_bytes 3072")
	}
	if !strings.Contains(body, "epicenter_memory_bytes 1.048576e+08") {
		t.Error("expected epicenter_memory_bytes 1.048576e+08")
	}
	if !strings.Contains(body, "epicenter_snapshot_size_bytes 2048") {
		t.Error("expected epicenter_snapshot_size_bytes 2048")
	}
}

func TestRegistry_SyncGauges(t *testing.T) {
	r := NewRegistry()
	r.PeersActive.Set(4)
	r.SyncUpdatesSent.Add(7)

	body := scrape(t, r)
	if !strings.Contains(body, "epicenter_sync_peers_active 4") {
		t.Error("expected epicenter_sync_peers_active 4")
	}
	if !strings.Contains(body, "epicenter_sync_updates_sent_total 7") {
		t.Error("expected epicenter_sync_updates_sent_total 7")
	}
}

func TestRegistry_HandlerServesPlaintext(t *testing.T) {
	r := NewRegistry()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("content-type = %q, want text/plain", ct)
	}
}
