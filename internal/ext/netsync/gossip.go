package netsync

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hashicorp/memberlist"
)

// GossipConfig configures optional memberlist-based peer discovery.
type GossipConfig struct {
	// NodeName must be unique per node; defaults to the bind address.
	NodeName string
	// BindAddr/BindPort are the gossip listener; zero port picks one.
	BindAddr string
	BindPort int
	// Seeds are existing cluster members to join. Empty starts a new
	// cluster.
	Seeds []string
}

// cursorMsg is the single gossip payload: "I have caught up to cursor N".
type cursorMsg struct {
	Node   string `json:"node"`
	Cursor uint64 `json:"cursor"`
}

type gossip struct {
	ml    *memberlist.Memberlist
	queue *memberlist.TransmitLimitedQueue

	nodeName string
	onCursor func(uint64)
}

func newGossip(cfg GossipConfig, onCursor func(uint64)) (*gossip, error) {
	g := &gossip{onCursor: onCursor}

	mlCfg := memberlist.DefaultLANConfig()
	if cfg.NodeName != "" {
		mlCfg.Name = cfg.NodeName
	}
	if cfg.BindAddr != "" {
		mlCfg.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort != 0 {
		mlCfg.BindPort = cfg.BindPort
		mlCfg.AdvertisePort = cfg.BindPort
	}
	mlCfg.Delegate = g
	mlCfg.LogOutput = io.Discard

	ml, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, err
	}
	g.ml = ml
	g.nodeName = mlCfg.Name
	g.queue = &memberlist.TransmitLimitedQueue{
		NumNodes:       ml.NumMembers,
		RetransmitMult: mlCfg.RetransmitMult,
	}

	if len(cfg.Seeds) > 0 {
		if _, err := ml.Join(cfg.Seeds); err != nil {
			_ = ml.Shutdown()
			return nil, err
		}
	}
	return g, nil
}

// announce broadcasts this node's cursor to the cluster.
func (g *gossip) announce(cursor uint64) {
	payload, err := json.Marshal(cursorMsg{Node: g.nodeName, Cursor: cursor})
	if err != nil {
		return
	}
	g.queue.QueueBroadcast(&broadcast{payload: payload})
}

func (g *gossip) peers() []string {
	members := g.ml.Members()
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Name)
	}
	return out
}

func (g *gossip) close() {
	_ = g.ml.Leave(2 * time.Second)
	_ = g.ml.Shutdown()
}

// NodeMeta implements memberlist.Delegate.
func (g *gossip) NodeMeta(limit int) []byte { return nil }

// NotifyMsg implements memberlist.Delegate: a peer's cursor announcement.
func (g *gossip) NotifyMsg(b []byte) {
	var msg cursorMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return
	}
	if msg.Node == g.nodeName {
		return
	}
	g.onCursor(msg.Cursor)
}

// GetBroadcasts implements memberlist.Delegate.
func (g *gossip) GetBroadcasts(overhead, limit int) [][]byte {
	return g.queue.GetBroadcasts(overhead, limit)
}

// LocalState implements memberlist.Delegate; full-state push/pull is
// unused — the relay log is the source of truth.
func (g *gossip) LocalState(join bool) []byte { return nil }

// MergeRemoteState implements memberlist.Delegate.
func (g *gossip) MergeRemoteState(buf []byte, join bool) {}

// broadcast adapts a payload to memberlist.Broadcast.
type broadcast struct {
	payload []byte
}

func (b *broadcast) Invalidates(other memberlist.Broadcast) bool { return false }
func (b *broadcast) Message() []byte                             { return b.payload }
func (b *broadcast) Finished()                                   {}
