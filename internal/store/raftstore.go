package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"
	"github.com/heysubinoy/rollbook/internal/codec"
	"github.com/heysubinoy/rollbook/pkg/roster"
)

const defaultApplyTimeout = 10 * time.Second

// ErrNoRaft is returned by write operations on a RaftStore that has not been opened.
var ErrNoRaft = errors.New("raft is not running")

// Command represents an add/remove/replace operation to be applied via Raft.
type Command struct {
	Op         string `json:"op"` // "add", "remove" or "replace"
	Name       string `json:"name,omitempty"`
	RollNumber int    `json:"roll_number,omitempty"`
	Grade      string `json:"grade,omitempty"`
	Payload    []byte `json:"payload,omitempty"` // codec container, only for replace
}

// RaftStore wraps a MemStore and applies changes via Raft consensus.
// Reads are served from the local replica.
type RaftStore struct {
	store        *MemStore
	raft         *raft.Raft
	applyTimeout time.Duration
	closers      []io.Closer
	bootstrapped bool
}

// Compile-time checks.
var (
	_ roster.Store = (*RaftStore)(nil)
	_ raft.FSM     = (*RaftStore)(nil)
)

// NewRaftStore returns a RaftStore over store. Call Open before writing.
func NewRaftStore(store *MemStore) *RaftStore {
	return &RaftStore{store: store, applyTimeout: defaultApplyTimeout}
}

// Open starts raft with rs as its FSM.
func (rs *RaftStore) Open(conf *raft.Config, logs raft.LogStore, stable raft.StableStore, snaps raft.SnapshotStore, trans raft.Transport) error {
	r, err := raft.NewRaft(conf, rs, logs, stable, snaps, trans)
	if err != nil {
		return fmt.Errorf("failed to start raft: %w", err)
	}
	rs.raft = r
	return nil
}

// GetRaft returns the underlying raft.Raft pointer (for API layer leader checks)
func (rs *RaftStore) GetRaft() *raft.Raft {
	return rs.raft
}

// Local returns the local replica.
func (rs *RaftStore) Local() *MemStore {
	return rs.store
}

// IsLeader reports whether this node is currently the raft leader.
func (rs *RaftStore) IsLeader() bool {
	return rs.raft != nil && rs.raft.State() == raft.Leader
}

// Leader returns the raft address and ID of the current leader, empty if unknown.
func (rs *RaftStore) Leader() (raft.ServerAddress, raft.ServerID) {
	if rs.raft == nil {
		return "", ""
	}
	return rs.raft.LeaderWithID()
}

// Bootstrapped reports whether OpenNode created a fresh cluster, as opposed
// to resuming from existing raft state or joining one.
func (rs *RaftStore) Bootstrapped() bool {
	return rs.bootstrapped
}

// WaitForLeader polls until this node is leader or timeout passes.
func (rs *RaftStore) WaitForLeader(timeout time.Duration) error {
	if rs.raft == nil {
		return ErrNoRaft
	}
	deadline := time.Now().Add(timeout)
	for !rs.IsLeader() {
		if time.Now().After(deadline) {
			return fmt.Errorf("not leader after %s", timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Join adds a voter to the cluster. Only the leader can do this.
func (rs *RaftStore) Join(id, addr string) error {
	if rs.raft == nil {
		return ErrNoRaft
	}
	return rs.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, 0).Error()
}

// Close shuts raft down and releases its stores.
func (rs *RaftStore) Close() error {
	var errs []error
	if rs.raft != nil {
		errs = append(errs, rs.raft.Shutdown().Error())
	}
	for _, c := range rs.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Apply applies a Raft log entry to the local store.
func (rs *RaftStore) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return err
	}
	switch cmd.Op {
	case "add":
		return rs.store.Add(roster.NewRecord(cmd.Name, cmd.RollNumber, cmd.Grade))
	case "remove":
		return rs.store.Remove(cmd.RollNumber)
	case "replace":
		records, err := codec.Unmarshal(cmd.Payload)
		if err != nil {
			return err
		}
		rs.store.Replace(records)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Op)
}

// Snapshot captures the local replica as a codec container.
func (rs *RaftStore) Snapshot() (raft.FSMSnapshot, error) {
	return &recordSnapshot{data: codec.Marshal(rs.store.List())}, nil
}

// Restore replaces the local replica with a snapshot written by Snapshot.
func (rs *RaftStore) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	records, err := codec.Decode(rc)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	rs.store.Replace(records)
	return nil
}

type recordSnapshot struct {
	data []byte
}

func (s *recordSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *recordSnapshot) Release() {}

func (rs *RaftStore) apply(cmd Command) error {
	if rs.raft == nil {
		return ErrNoRaft
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	f := rs.raft.Apply(data, rs.applyTimeout)
	if err := f.Error(); err != nil {
		return err
	}
	if resp, ok := f.Response().(error); ok {
		return resp
	}
	return nil
}

// Add submits an add command to Raft.
func (rs *RaftStore) Add(record roster.Record) error {
	return rs.apply(Command{
		Op:         "add",
		Name:       record.Name(),
		RollNumber: record.RollNumber(),
		Grade:      record.Grade(),
	})
}

// Remove submits a remove command to Raft.
func (rs *RaftStore) Remove(rollNumber int) error {
	return rs.apply(Command{Op: "remove", RollNumber: rollNumber})
}

// Search reads directly from the local store.
func (rs *RaftStore) Search(rollNumber int) (roster.Record, bool) {
	return rs.store.Search(rollNumber)
}

// List reads directly from the local store.
func (rs *RaftStore) List() []roster.Record {
	return rs.store.List()
}

// Save writes the local replica to path.
func (rs *RaftStore) Save(path string) error {
	return rs.store.Save(path)
}

// Load decodes path locally and replicates the result as a replace command.
func (rs *RaftStore) Load(path string) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	return rs.apply(Command{Op: "replace", Payload: codec.Marshal(records)})
}
