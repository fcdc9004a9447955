package store

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/rollbook/internal/codec"
	"github.com/heysubinoy/rollbook/pkg/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyCommand(t *testing.T, rs *RaftStore, cmd Command) interface{} {
	t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	return rs.Apply(&raft.Log{Data: data})
}

func TestRaftStoreApply(t *testing.T) {
	rs := NewRaftStore(NewMemStore())

	assert.Nil(t, applyCommand(t, rs, Command{Op: "add", Name: "Alice", RollNumber: 1, Grade: "A"}))
	assert.Nil(t, applyCommand(t, rs, Command{Op: "add", Name: "Bob", RollNumber: 2, Grade: "B"}))
	assert.Nil(t, applyCommand(t, rs, Command{Op: "add", Name: "Alice2", RollNumber: 1, Grade: "C"}))
	assert.Nil(t, applyCommand(t, rs, Command{Op: "remove", RollNumber: 1}))

	assert.Equal(t, []roster.Record{roster.NewRecord("Bob", 2, "B")}, rs.List())
}

func TestRaftStoreApplyReplace(t *testing.T) {
	rs := NewRaftStore(NewMemStore())
	assert.Nil(t, applyCommand(t, rs, Command{Op: "add", Name: "Alice", RollNumber: 1, Grade: "A"}))

	next := []roster.Record{roster.NewRecord("Carl", 3, "C")}
	assert.Nil(t, applyCommand(t, rs, Command{Op: "replace", Payload: codec.Marshal(next)}))
	assert.Equal(t, next, rs.List())
}

func TestRaftStoreApplyRejectsBadInput(t *testing.T) {
	rs := NewRaftStore(NewMemStore())

	resp := rs.Apply(&raft.Log{Data: []byte("{")})
	assert.Error(t, resp.(error))

	resp = applyCommand(t, rs, Command{Op: "truncate"})
	assert.Error(t, resp.(error))

	resp = applyCommand(t, rs, Command{Op: "replace", Payload: []byte("junk")})
	assert.ErrorIs(t, resp.(error), codec.ErrCorrupt)
	assert.Empty(t, rs.List())

	blank := codec.Marshal([]roster.Record{roster.NewRecord("", 0, "")})
	resp = applyCommand(t, rs, Command{Op: "replace", Payload: blank})
	assert.ErrorIs(t, resp.(error), codec.ErrCorrupt)
	assert.Error(t, rs.Restore(io.NopCloser(bytes.NewReader(blank))))
	assert.Empty(t, rs.List())
}

type memSink struct {
	bytes.Buffer
	closed   bool
	canceled bool
}

func (s *memSink) ID() string    { return "test" }
func (s *memSink) Close() error  { s.closed = true; return nil }
func (s *memSink) Cancel() error { s.canceled = true; return nil }

func TestRaftStoreSnapshotRestore(t *testing.T) {
	src := NewRaftStore(NewMemStore())
	assert.Nil(t, applyCommand(t, src, Command{Op: "add", Name: "Alice", RollNumber: 1, Grade: "A"}))
	assert.Nil(t, applyCommand(t, src, Command{Op: "add", Name: "Bob", RollNumber: 2, Grade: "B"}))

	snap, err := src.Snapshot()
	require.NoError(t, err)
	sink := &memSink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()
	assert.True(t, sink.closed)
	assert.False(t, sink.canceled)

	dst := NewRaftStore(NewMemStore())
	assert.Nil(t, applyCommand(t, dst, Command{Op: "add", Name: "Stale", RollNumber: 9, Grade: "F"}))
	require.NoError(t, dst.Restore(io.NopCloser(&sink.Buffer)))
	assert.Equal(t, src.List(), dst.List())
}

func TestRaftStoreWritesWithoutRaft(t *testing.T) {
	rs := NewRaftStore(NewMemStore())
	assert.ErrorIs(t, rs.Add(roster.NewRecord("Alice", 1, "A")), ErrNoRaft)
	assert.ErrorIs(t, rs.Remove(1), ErrNoRaft)
	assert.False(t, rs.IsLeader())
}

func newSingleNode(t *testing.T) *RaftStore {
	t.Helper()

	conf := raft.DefaultConfig()
	conf.LocalID = "node1"
	conf.HeartbeatTimeout = 50 * time.Millisecond
	conf.ElectionTimeout = 50 * time.Millisecond
	conf.LeaderLeaseTimeout = 50 * time.Millisecond
	conf.CommitTimeout = 5 * time.Millisecond
	conf.Logger = hclog.NewNullLogger()

	addr, trans := raft.NewInmemTransport("")
	logs := raft.NewInmemStore()
	snaps := raft.NewInmemSnapshotStore()

	rs := NewRaftStore(NewMemStore())
	require.NoError(t, rs.Open(conf, logs, logs, snaps, trans))
	t.Cleanup(func() { rs.Close() })

	boot := raft.Configuration{Servers: []raft.Server{{ID: conf.LocalID, Address: addr}}}
	require.NoError(t, rs.GetRaft().BootstrapCluster(boot).Error())

	require.Eventually(t, rs.IsLeader, 5*time.Second, 10*time.Millisecond)
	return rs
}

func TestRaftStoreSingleNode(t *testing.T) {
	rs := newSingleNode(t)

	require.NoError(t, rs.Add(roster.NewRecord("Alice", 1, "A")))
	_, id := rs.Leader()
	assert.Equal(t, raft.ServerID("node1"), id)

	require.NoError(t, rs.Add(roster.NewRecord("Bob", 2, "B")))
	require.NoError(t, rs.Remove(2))

	got, ok := rs.Search(1)
	require.True(t, ok)
	assert.Equal(t, "Alice", got.Name())
	assert.Len(t, rs.List(), 1)
}

func TestRaftStoreLoadReplicatesFile(t *testing.T) {
	rs := newSingleNode(t)
	path := filepath.Join(t.TempDir(), "students.rbk")

	saved := NewMemStore()
	require.NoError(t, saved.Add(roster.NewRecord("Alice", 1, "A")))
	require.NoError(t, saved.Add(roster.NewRecord("Bob", 2, "B")))
	require.NoError(t, saved.Save(path))

	require.NoError(t, rs.Add(roster.NewRecord("Stale", 9, "F")))
	require.NoError(t, rs.Load(path))
	assert.Equal(t, saved.List(), rs.List())

	err := rs.Load(filepath.Join(t.TempDir(), "missing.rbk"))
	assert.True(t, roster.IsIO(err))
	assert.Equal(t, saved.List(), rs.List())
}
