// Package netsync is the workspace sync extension: it exchanges encoded
// store state with peers over HTTP, in either of two modes — "direct"
// (connect straight to a relay, room = document guid) or "authenticated"
// (obtain a bearer token first, then connect).
//
// Convergence is by state merge, not log replication: each push carries a
// full map of namespace -> store state, and each pulled blob is applied
// through the stores' own LWW rules, so peers need no coordinator and no
// delivery ordering. Wire framing beyond this blob format is out of scope.
//
// Peer discovery on a LAN can optionally ride memberlist gossip: nodes
// broadcast their update cursor, and a node seeing a higher cursor than
// its own pulls immediately instead of waiting out the poll interval.
package netsync
