// Package main provides the entry point for epicenterd.
//
// epicenterd hosts a workspace — the files table, a content-document pool,
// and the virtual filesystem over them — together with the durable
// persistence extension, the peer update-exchange relay endpoints, an
// optional RESP front-end, and optional outbound sync to another relay.
package main
