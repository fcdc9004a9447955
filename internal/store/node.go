package store

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

const (
	retainSnapshots  = 2
	maxPool          = 3
	transportTimeout = 10 * time.Second
)

// NodeOptions describes the local raft node.
type NodeOptions struct {
	NodeID    string
	RaftAddr  string
	DataDir   string
	Bootstrap bool
}

// OpenNode starts a raft node backed by BoltDB for its log and stable store,
// file snapshots and a TCP transport. If opts.Bootstrap is set and no state
// exists yet, the node bootstraps a single-server cluster with itself.
func OpenNode(opts NodeOptions, local *MemStore, logger hclog.Logger) (*RaftStore, error) {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create raft data dir: %w", err)
	}

	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(opts.NodeID)
	conf.Logger = logger.Named("raft")

	boltStore, err := raftboltdb.NewBoltStore(filepath.Join(opts.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	snaps, err := raft.NewFileSnapshotStoreWithLogger(opts.DataDir, retainSnapshots, logger.Named("snapshot"))
	if err != nil {
		boltStore.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	advertise, err := net.ResolveTCPAddr("tcp", opts.RaftAddr)
	if err != nil {
		boltStore.Close()
		return nil, fmt.Errorf("failed to resolve raft address: %w", err)
	}
	trans, err := raft.NewTCPTransportWithLogger(opts.RaftAddr, advertise, maxPool, transportTimeout, logger.Named("transport"))
	if err != nil {
		boltStore.Close()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	rs := NewRaftStore(local)
	rs.closers = append(rs.closers, boltStore, trans)
	if err := rs.Open(conf, boltStore, boltStore, snaps, trans); err != nil {
		boltStore.Close()
		trans.Close()
		return nil, err
	}

	if opts.Bootstrap {
		hasState, err := raft.HasExistingState(boltStore, boltStore, snaps)
		if err != nil {
			rs.Close()
			return nil, err
		}
		if !hasState {
			cfg := raft.Configuration{
				Servers: []raft.Server{{ID: conf.LocalID, Address: trans.LocalAddr()}},
			}
			if err := rs.raft.BootstrapCluster(cfg).Error(); err != nil {
				rs.Close()
				return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
			}
			rs.bootstrapped = true
			logger.Info("bootstrapped cluster", "id", opts.NodeID, "addr", trans.LocalAddr())
		}
	}

	return rs, nil
}
