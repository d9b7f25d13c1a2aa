package tcp

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"telnest/internal/channel"
)

// connectionRecord is the registry's bookkeeping for one connection:
// its private outbound queue and the handles of its two workers.
// Only the ConnectionManager holds it.
type connectionRecord struct {
	id     ConnectionID
	conn   net.Conn
	outbox *channel.Queue[Outbound]

	readDone  chan struct{} // closed when the read worker exits
	writeDone chan struct{} // closed when the write worker exits
	running   atomic.Int32  // workers still running; socket closes at zero
}

func newConnectionRecord(conn net.Conn) *connectionRecord {
	rec := &connectionRecord{
		id:        NewConnectionID(),
		conn:      conn,
		outbox:    channel.New[Outbound](),
		readDone:  make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	rec.running.Store(2)
	return rec
}

// workerExited closes the socket once both workers are gone and reports
// whether this was the last one.
func (r *connectionRecord) workerExited() bool {
	if r.running.Add(-1) == 0 {
		r.conn.Close()
		return true
	}
	return false
}

type shard struct {
	mu      sync.RWMutex
	records map[ConnectionID]*connectionRecord
}

// ConnectionManager maps connection ids to their records. The map is split
// into shards picked by hashing the id, so traffic on one connection never
// waits behind a lock held for another shard.
type ConnectionManager struct {
	shards []*shard
	logger *slog.Logger
}

// constructor for ConnectionManager
func NewConnectionManager(shards int, logger *slog.Logger) *ConnectionManager {
	if shards <= 0 {
		shards = DefaultShards
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &ConnectionManager{
		shards: make([]*shard, shards),
		logger: logger,
	}
	for i := range m.shards {
		m.shards[i] = &shard{records: make(map[ConnectionID]*connectionRecord)}
	}
	return m
}

func (m *ConnectionManager) shardFor(id ConnectionID) *shard {
	return m.shards[xxhash.Sum64(id[:])%uint64(len(m.shards))]
}

// method to add a new connection
func (m *ConnectionManager) add(rec *connectionRecord) {
	s := m.shardFor(rec.id)
	s.mu.Lock()
	s.records[rec.id] = rec
	s.mu.Unlock()
	m.logger.Info("connection_added",
		"connection_id", rec.id.String(),
		"remote_addr", remoteAddr(rec.conn),
	)
}

// method to remove a connection; missing ids are ignored
func (m *ConnectionManager) remove(id ConnectionID) (*connectionRecord, bool) {
	s := m.shardFor(id)
	s.mu.Lock()
	rec, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	if ok {
		m.logger.Info("connection_removed",
			"connection_id", id.String(),
		)
	}
	return rec, ok
}

func (m *ConnectionManager) get(id ConnectionID) (*connectionRecord, bool) {
	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// removeAll empties every shard and returns what was there.
func (m *ConnectionManager) removeAll() []*connectionRecord {
	var out []*connectionRecord
	for _, s := range m.shards {
		s.mu.Lock()
		for id, rec := range s.records {
			out = append(out, rec)
			delete(s.records, id)
		}
		s.mu.Unlock()
	}
	return out
}

// IDs returns a snapshot of the registered ids, in no particular order.
func (m *ConnectionManager) IDs() []ConnectionID {
	ids := make([]ConnectionID, 0, m.Count())
	for _, s := range m.shards {
		s.mu.RLock()
		for id := range s.records {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}

// Count is the number of registered connections.
func (m *ConnectionManager) Count() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
