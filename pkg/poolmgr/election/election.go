// Package election provides optional Raft-based leader election among
// multiple prism-pool-manager replicas supervising the same host
// group, grounded on the teacher's pkg/manager/fsm.go Raft FSM
// pattern, repurposed from cluster service/node state replication to
// a single `IsLeader() bool` fact: the FSM carries no business data
// because there is nothing to replicate, only a leadership outcome to
// observe.
package election

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures an Elector. Peers is the full set of Raft server
// IDs/addresses in the group, including this node. When Peers has
// fewer than two entries, election is disabled: IsLeader always
// returns true and no Raft group is formed, leaving single-replica
// deployments unchanged.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	Peers    []Peer
}

// Peer is one member of a Pool Manager's Raft group.
type Peer struct {
	NodeID string
	Addr   string
}

// Elector reports whether this replica currently holds Raft leadership
// within its Pool Manager host group.
type Elector struct {
	raft     *raft.Raft
	disabled bool
}

// New forms or joins the Raft group described by cfg. With fewer than
// two peers, it returns a disabled Elector (always-leader, no Raft
// group), matching single-node behavior.
func New(cfg Config) (*Elector, error) {
	if len(cfg.Peers) < 2 {
		return &Elector{disabled: true}, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating raft data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving raft bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft stable store: %w", err)
	}

	fsm := &noopFSM{}
	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("creating raft node: %w", err)
	}

	servers := make([]raft.Server, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		servers = append(servers, raft.Server{ID: raft.ServerID(p.NodeID), Address: raft.ServerAddress(p.Addr)})
	}
	future := r.BootstrapCluster(raft.Configuration{Servers: servers})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("bootstrapping raft cluster: %w", err)
	}

	return &Elector{raft: r}, nil
}

// IsLeader reports whether this replica currently holds leadership. A
// disabled (single-replica) Elector always returns true.
func (e *Elector) IsLeader() bool {
	if e.disabled {
		return true
	}
	return e.raft.State() == raft.Leader
}

// PeerCount returns the size of the Raft group (1 when disabled).
func (e *Elector) PeerCount() int {
	if e.disabled {
		return 1
	}
	cfgFuture := e.raft.GetConfiguration()
	if err := cfgFuture.Error(); err != nil {
		return 1
	}
	return len(cfgFuture.Configuration().Servers)
}

// Close shuts down the Raft node, if one was formed.
func (e *Elector) Close() error {
	if e.disabled {
		return nil
	}
	return e.raft.Shutdown().Error()
}

// noopFSM carries no replicated state: a Pool Manager's Raft group
// exists only to elect a leader, never to agree on application data.
type noopFSM struct{}

func (f *noopFSM) Apply(*raft.Log) interface{} { return nil }

func (f *noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (f *noopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (noopSnapshot) Release() {}
