// Package snapshot provides compacted point-in-time snapshots of a
// workspace's cell/row store, complementing the write-ahead log.
//
// Snapshots are periodic full dumps of the in-memory state, enabling
// faster recovery by reducing WAL replay time.
//
// File layout:
//
//   snapshot-<timestamp>-<sequence>.snap
//   [magic:8 "EPICSNAP"]
//   [HeaderLen:4][HeaderJSON:HeaderLen]
//   [DataLen:4][Data:DataLen]   (JSON records, or encrypted bytes)
//   [checksum:32 SHA-256 of all bytes above]
//
// Recovery process:
//
//  1. Load latest valid snapshot
//  2. Replay WAL entries after the snapshot's WAL offset
//  3. Rebuild secondary indexes
package snapshot
