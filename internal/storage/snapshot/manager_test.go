package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/epicenterhq/epicenter-go/pkg/crypto/adaptive"
)

func rec(ns, key, value string) Record {
	return Record{Namespace: ns, Key: key, Value: json.RawMessage(`"` + value + `"`), Ts: time.Now().UnixMilli()}
}

func TestManager_CreateAndLoad(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	records := []Record{rec("cells", "r1:c1", "u1"), rec("cells", "r2:c1", "u2")}
	info, err := m.Create(records, uint64(3)<<32|123)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.RecordCount != 2 {
		t.Fatalf("RecordCount = %d, want 2", info.RecordCount)
	}

	loaded, loadedInfo, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %d, want 2", len(loaded))
	}
	if loaded[0].Key != "r1:c1" || loaded[1].Key != "r2:c1" {
		t.Fatalf("loaded records mismatch: %+v", loaded)
	}
	if loadedInfo.WALLastOffset != info.WALLastOffset {
		t.Fatalf("WALLastOffset = %d, want %d", loadedInfo.WALLastOffset, info.WALLastOffset)
	}
}

func TestManager_LoadEmptyRecords(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Create(nil, uint64(1)<<32); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, info, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded = %d, want 0", len(loaded))
	}
	if info.RecordCount != 0 {
		t.Fatalf("RecordCount = %d, want 0", info.RecordCount)
	}
}

func TestManager_NoSnapshots(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, _, err = m.Load()
	if err != ErrNoSnapshots {
		t.Fatalf("Load err = %v, want %v", err, ErrNoSnapshots)
	}
}

func TestManager_EncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	c, err := adaptive.New(key)
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}

	cfg := DefaultConfig(dir)
	cfg.Cipher = c
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Create([]Record{rec("cells", "r1:c1", "secret")}, uint64(1)<<32); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, _, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Key != "r1:c1" {
		t.Fatalf("loaded mismatch: %+v", loaded)
	}
}

func TestManager_EncryptedWithoutCipherLoadsMetadataOnly(t *testing.T) {
	dir := t.TempDir()

	key := make([]byte, 32)
	c, err := adaptive.New(key)
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}

	encCfg := DefaultConfig(dir)
	encCfg.Cipher = c
	encM, err := NewManager(encCfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := encM.Create([]Record{rec("cells", "r1:c1", "secret")}, uint64(1)<<32); err != nil {
		t.Fatalf("Create: %v", err)
	}

	plainM, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	records, info, err := plainM.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records without cipher, got %+v", records)
	}
	if info.RecordCount != 1 {
		t.Fatalf("RecordCount = %d, want 1", info.RecordCount)
	}
}

func TestManager_List(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Create([]Record{rec("cells", "r", "v")}, uint64(i+1)<<32); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}
}

func TestManager_PruneKeepsRetentionCount(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.RetentionCount = 2
	cfg.RetentionDays = 0
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := m.Create([]Record{rec("cells", "r", "v")}, uint64(i+1)<<32); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) > 2 {
		t.Fatalf("len(infos) = %d, want <= 2", len(infos))
	}
}

func TestManager_PruneAlwaysKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.RetentionCount = 1
	cfg.RetentionDays = 0
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Create([]Record{rec("cells", "r", "old")}, uint64(1)<<32); err != nil {
		t.Fatalf("Create old: %v", err)
	}
	time.Sleep(time.Millisecond)
	newInfo, err := m.Create([]Record{rec("cells", "r", "new")}, uint64(2)<<32)
	if err != nil {
		t.Fatalf("Create new: %v", err)
	}

	if err := m.Prune(); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != newInfo.ID {
		t.Fatalf("infos after prune = %+v, want only newest %q", infos, newInfo.ID)
	}
}

func TestManager_CorruptedChecksumFallsBack(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	good, err := m.Create([]Record{rec("cells", "r1", "v1")}, uint64(1)<<32)
	if err != nil {
		t.Fatalf("Create 1: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := m.Create([]Record{rec("cells", "r2", "v2")}, uint64(2)<<32); err != nil {
		t.Fatalf("Create 2: %v", err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// Corrupt the newest snapshot file.
	newest := infos[len(infos)-1]
	f, err := os.OpenFile(newest.Path, os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0xFF}, 0); err != nil {
		f.Close()
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	records, info, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.ID != good.ID {
		t.Fatalf("fell back to wrong snapshot: got %q, want %q", info.ID, good.ID)
	}
	if len(records) != 1 || records[0].Key != "r1" {
		t.Fatalf("records mismatch: %+v", records)
	}
}

func TestManager_MissingDirListReturnsEmpty(t *testing.T) {
	m, err := NewManager(DefaultConfig(filepath.Join(t.TempDir(), "sub")))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	// Remove the dir NewManager just created, to exercise the IsNotExist path.
	if err := os.RemoveAll(m.cfg.Dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("len(infos) = %d, want 0", len(infos))
	}
}

func TestManager_RequiresDir(t *testing.T) {
	_, err := NewManager(Config{})
	if err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestManager_GenerateIDUniqueWithinSameSecond(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	now := time.Now()
	id1 := m.generateID(now)
	if _, err := os.Create(filepath.Join(dir, id1+fileExtension)); err != nil {
		t.Fatalf("Create marker file: %v", err)
	}
	id2 := m.generateID(now)
	if id1 == id2 {
		t.Fatalf("expected distinct ids for same timestamp, got %q twice", id1)
	}
}
