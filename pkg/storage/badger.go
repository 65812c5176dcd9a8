// Package storage provides storage engine implementations for NornicQ.
//
// BadgerEngine provides persistent disk-based storage using BadgerDB.
// It implements the Engine interface; every mutation runs in one Badger
// transaction.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode      = byte(0x01) // node:nodeID -> nodeRecord
	prefixEdge      = byte(0x02) // edge:edgeID -> edgeRecord
	prefixNodeOrder = byte(0x03) // order:seq -> nodeID
	prefixOutgoing  = byte(0x04) // out:nodeID:0x00:seq -> edgeID
	prefixIncoming  = byte(0x05) // in:nodeID:0x00:edgeID -> empty
	prefixPair      = byte(0x06) // pair:from:0x00:to:0x00:key -> edgeID
	prefixLink      = byte(0x07) // link:from:0x00:to -> seq
	prefixNeighbor  = byte(0x08) // nbr:from:0x00:seq -> to
)

var sequenceKey = []byte{0xFF, 's', 'e', 'q'}

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> nodeRecord
//   - Edges: 0x02 + edgeID -> edgeRecord
//   - Node order: 0x03 + seq -> nodeID
//   - Outgoing: 0x04 + nodeID + 0x00 + seq -> edgeID
//   - Incoming: 0x05 + nodeID + 0x00 + edgeID -> empty
//   - Pair: 0x06 + from + 0x00 + to + 0x00 + key -> edgeID
//   - Link: 0x07 + from + 0x00 + to -> first-connection seq
//   - Neighbor: 0x08 + from + 0x00 + seq -> to
//
// Link and Neighbor exist while at least one from->to edge survives, so
// OutEdges lists neighbors in first-connection order like MemoryEngine.
//
// Sequence numbers come from a Badger sequence, so node order and adjacency
// order follow creation order across restarts.
type BadgerEngine struct {
	db         *badger.DB
	seq        *badger.Sequence
	serializer Serializer

	// writeMu serializes mutations; key allocation reads then writes pair keys.
	writeMu sync.Mutex

	mu       sync.RWMutex
	closed   bool
	inMemory bool

	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// BadgerOptions configures the BadgerEngine.
type BadgerOptions struct {
	// DataDir is the directory for data files. Ignored when InMemory is set.
	DataDir string

	// InMemory runs Badger without touching disk (tests).
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Serializer picks the record encoding. Empty means msgpack.
	Serializer Serializer

	// Logger receives Badger's internal logs. Nil keeps Badger quiet.
	Logger *slog.Logger
}

type nodeRecord struct {
	Seq  uint64 `msgpack:"seq"`
	Node Node   `msgpack:"node"`
}

type edgeRecord struct {
	Seq  uint64 `msgpack:"seq"`
	Edge Edge   `msgpack:"edge"`
}

// NewBadgerEngine opens (or creates) a persistent store in dataDir.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{DataDir: dataDir})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{InMemory: true})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	serializer, err := ParseSerializer(string(opts.Serializer))
	if err != nil {
		return nil, err
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{log: opts.Logger.With("component", "badger")})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sequence: %w", err)
	}

	engine := &BadgerEngine{
		db:         db,
		seq:        seq,
		serializer: serializer,
		inMemory:   opts.InMemory,
	}

	if err := engine.initializeCounts(); err != nil {
		seq.Release()
		db.Close()
		return nil, fmt.Errorf("failed to initialize counts: %w", err)
	}

	return engine, nil
}

// IsInMemory reports whether the engine runs without disk persistence.
func (b *BadgerEngine) IsInMemory() bool {
	return b.inMemory
}

// ============================================================================
// Key encoding helpers
// ============================================================================

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

func nodeOrderKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte{prefixNodeOrder}, seq)
}

func outgoingPrefix(id NodeID) []byte {
	key := append([]byte{prefixOutgoing}, []byte(id)...)
	return append(key, 0x00)
}

func outgoingKey(id NodeID, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(outgoingPrefix(id), seq)
}

func incomingPrefix(id NodeID) []byte {
	key := append([]byte{prefixIncoming}, []byte(id)...)
	return append(key, 0x00)
}

func incomingKey(id NodeID, edgeID EdgeID) []byte {
	return append(incomingPrefix(id), []byte(edgeID)...)
}

func pairPrefix(from, to NodeID) []byte {
	key := append([]byte{prefixPair}, []byte(from)...)
	key = append(key, 0x00)
	key = append(key, []byte(to)...)
	return append(key, 0x00)
}

func pairKey(from, to NodeID, key EdgeKey) []byte {
	return binary.BigEndian.AppendUint64(pairPrefix(from, to), uint64(key))
}

func linkKey(from, to NodeID) []byte {
	key := append([]byte{prefixLink}, []byte(from)...)
	key = append(key, 0x00)
	return append(key, []byte(to)...)
}

func neighborPrefix(id NodeID) []byte {
	key := append([]byte{prefixNeighbor}, []byte(id)...)
	return append(key, 0x00)
}

func neighborKey(id NodeID, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(neighborPrefix(id), seq)
}

// validKeyPart rejects IDs that would break the 0x00-separated index keys.
func validKeyPart(id string) bool {
	return id != "" && strings.IndexByte(id, 0x00) < 0
}

// ============================================================================
// Transaction helpers
// ============================================================================

func (b *BadgerEngine) ensureOpen() error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrStorageClosed
	}
	return nil
}

func (b *BadgerEngine) withView(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	return b.db.View(fn)
}

func (b *BadgerEngine) withUpdate(fn func(txn *badger.Txn) error) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.db.Update(fn)
}

// scanPrefix calls fn for each item under prefix in key order. Callers must
// not mutate the iterated range from inside fn.
func scanPrefix(txn *badger.Txn, prefix []byte, keysOnly bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerEngine) getNodeRecord(txn *badger.Txn, id NodeID) (*nodeRecord, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec nodeRecord
	if err := item.Value(func(val []byte) error { return decodeValue(val, &rec) }); err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", id, err)
	}
	return &rec, nil
}

func (b *BadgerEngine) getEdgeRecord(txn *badger.Txn, id EdgeID) (*edgeRecord, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec edgeRecord
	if err := item.Value(func(val []byte) error { return decodeValue(val, &rec) }); err != nil {
		return nil, fmt.Errorf("failed to decode edge %s: %w", id, err)
	}
	return &rec, nil
}

func (b *BadgerEngine) initializeCounts() error {
	var nodes, edges int64
	err := b.db.View(func(txn *badger.Txn) error {
		if err := scanPrefix(txn, []byte{prefixNode}, true, func(*badger.Item) error {
			nodes++
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(txn, []byte{prefixEdge}, true, func(*badger.Item) error {
			edges++
			return nil
		})
	})
	if err != nil {
		return err
	}
	b.nodeCount.Store(nodes)
	b.edgeCount.Store(edges)
	return nil
}

// ============================================================================
// Engine: nodes
// ============================================================================

// CreateNode creates a new node.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if !validKeyPart(string(node.ID)) {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq, err := b.seq.Next()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		data, err := encodeValue(b.serializer, nodeRecord{Seq: seq, Node: *copyNode(node)})
		if err != nil {
			return fmt.Errorf("failed to encode node: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(nodeOrderKey(seq), []byte(node.ID))
	})
	if err == nil {
		b.nodeCount.Add(1)
	}
	return err
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	var node *Node
	err := b.withView(func(txn *badger.Txn) error {
		rec, err := b.getNodeRecord(txn, id)
		if err != nil {
			return err
		}
		node = &rec.Node
		return nil
	})
	return node, err
}

// DeleteNode removes a node and every edge touching it.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	var edgesDeleted int64
	err := b.withUpdate(func(txn *badger.Txn) error {
		rec, err := b.getNodeRecord(txn, id)
		if err != nil {
			return err
		}

		var edgeIDs []EdgeID
		if err := scanPrefix(txn, outgoingPrefix(id), false, func(item *badger.Item) error {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			edgeIDs = append(edgeIDs, EdgeID(val))
			return nil
		}); err != nil {
			return err
		}
		inPrefix := incomingPrefix(id)
		if err := scanPrefix(txn, inPrefix, true, func(item *badger.Item) error {
			edgeIDs = append(edgeIDs, EdgeID(item.Key()[len(inPrefix):]))
			return nil
		}); err != nil {
			return err
		}

		// Self-loops show up in both scans.
		slices.Sort(edgeIDs)
		for _, edgeID := range slices.Compact(edgeIDs) {
			if err := b.deleteEdgeInTxn(txn, edgeID); err != nil {
				return err
			}
			edgesDeleted++
		}

		if err := txn.Delete(nodeOrderKey(rec.Seq)); err != nil {
			return err
		}
		return txn.Delete(nodeKey(id))
	})
	if err == nil {
		b.nodeCount.Add(-1)
		b.edgeCount.Add(-edgesDeleted)
	}
	return err
}

// ============================================================================
// Engine: edges
// ============================================================================

// CreateEdge creates an edge between two existing nodes and assigns its key.
func (b *BadgerEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		edge.ID = EdgeID(uuid.NewString())
	}
	if !validKeyPart(string(edge.ID)) {
		return ErrInvalidID
	}

	err := b.withUpdate(func(txn *badger.Txn) error {
		key := edgeKey(edge.ID)
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := b.getNodeRecord(txn, edge.StartNode); err != nil {
			return err
		}
		if _, err := b.getNodeRecord(txn, edge.EndNode); err != nil {
			return err
		}

		edgeKeyVal, err := b.nextEdgeKey(txn, edge.StartNode, edge.EndNode)
		if err != nil {
			return err
		}
		seq, err := b.seq.Next()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		stored := copyEdge(edge)
		stored.Key = edgeKeyVal
		data, err := encodeValue(b.serializer, edgeRecord{Seq: seq, Edge: *stored})
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(outgoingKey(edge.StartNode, seq), []byte(edge.ID)); err != nil {
			return err
		}
		if err := txn.Set(incomingKey(edge.EndNode, edge.ID), []byte{}); err != nil {
			return err
		}
		if err := txn.Set(pairKey(edge.StartNode, edge.EndNode, edgeKeyVal), []byte(edge.ID)); err != nil {
			return err
		}
		if err := b.linkNeighbor(txn, edge.StartNode, edge.EndNode, seq); err != nil {
			return err
		}
		edge.Key = edgeKeyVal
		return nil
	})
	if err == nil {
		b.edgeCount.Add(1)
	}
	return err
}

// nextEdgeKey applies the same allocation rule as MemoryEngine: start at the
// parallel count and skip keys in use.
func (b *BadgerEngine) nextEdgeKey(txn *badger.Txn, from, to NodeID) (EdgeKey, error) {
	prefix := pairPrefix(from, to)
	used := make(map[EdgeKey]struct{})
	err := scanPrefix(txn, prefix, true, func(item *badger.Item) error {
		used[EdgeKey(binary.BigEndian.Uint64(item.Key()[len(prefix):]))] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, err
	}
	key := EdgeKey(len(used))
	for {
		if _, taken := used[key]; !taken {
			return key, nil
		}
		key++
	}
}

// linkNeighbor records to as a neighbor of from at seq unless the pair is
// already connected.
func (b *BadgerEngine) linkNeighbor(txn *badger.Txn, from, to NodeID, seq uint64) error {
	_, err := txn.Get(linkKey(from, to))
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if err := txn.Set(linkKey(from, to), binary.BigEndian.AppendUint64(nil, seq)); err != nil {
		return err
	}
	return txn.Set(neighborKey(from, seq), []byte(to))
}

// unlinkNeighbor drops the from->to neighbor entry once no pair key is left.
// Iterators inside an update transaction see its pending deletes.
func (b *BadgerEngine) unlinkNeighbor(txn *badger.Txn, from, to NodeID) error {
	remaining := false
	if err := scanPrefix(txn, pairPrefix(from, to), true, func(*badger.Item) error {
		remaining = true
		return nil
	}); err != nil {
		return err
	}
	if remaining {
		return nil
	}

	item, err := txn.Get(linkKey(from, to))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if len(val) != 8 {
		return fmt.Errorf("corrupt link record %s->%s", from, to)
	}
	if err := txn.Delete(neighborKey(from, binary.BigEndian.Uint64(val))); err != nil {
		return err
	}
	return txn.Delete(linkKey(from, to))
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	var edge *Edge
	err := b.withView(func(txn *badger.Txn) error {
		rec, err := b.getEdgeRecord(txn, id)
		if err != nil {
			return err
		}
		edge = &rec.Edge
		return nil
	})
	return edge, err
}

// DeleteEdge removes an edge.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	err := b.withUpdate(func(txn *badger.Txn) error {
		return b.deleteEdgeInTxn(txn, id)
	})
	if err == nil {
		b.edgeCount.Add(-1)
	}
	return err
}

func (b *BadgerEngine) deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	rec, err := b.getEdgeRecord(txn, id)
	if err != nil {
		return err
	}
	e := rec.Edge
	for _, key := range [][]byte{
		edgeKey(id),
		outgoingKey(e.StartNode, rec.Seq),
		incomingKey(e.EndNode, id),
		pairKey(e.StartNode, e.EndNode, e.Key),
	} {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return b.unlinkNeighbor(txn, e.StartNode, e.EndNode)
}

// ============================================================================
// Graph capability
// ============================================================================

// NodeIDs returns every node ID in creation order.
func (b *BadgerEngine) NodeIDs() ([]NodeID, error) {
	var ids []NodeID
	err := b.withView(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte{prefixNodeOrder}, false, func(item *badger.Item) error {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, NodeID(val))
			return nil
		})
	})
	return ids, err
}

// NodeAttributes returns the node's properties with its labels under LabelsKey.
func (b *BadgerEngine) NodeAttributes(id NodeID) (map[string]any, error) {
	node, err := b.GetNode(id)
	if err != nil {
		return nil, err
	}
	return nodeAttributes(node), nil
}

// OutEdges returns the adjacency of id grouped by neighbor. Neighbors appear
// in first-connection order; keys ascend within a group.
func (b *BadgerEngine) OutEdges(id NodeID) ([]OutEdge, error) {
	var out []OutEdge
	err := b.withView(func(txn *badger.Txn) error {
		if _, err := b.getNodeRecord(txn, id); err != nil {
			return err
		}
		var neighbors []NodeID
		if err := scanPrefix(txn, neighborPrefix(id), false, func(item *badger.Item) error {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			neighbors = append(neighbors, NodeID(val))
			return nil
		}); err != nil {
			return err
		}
		for _, to := range neighbors {
			prefix := pairPrefix(id, to)
			if err := scanPrefix(txn, prefix, true, func(item *badger.Item) error {
				key := EdgeKey(binary.BigEndian.Uint64(item.Key()[len(prefix):]))
				out = append(out, OutEdge{To: to, Key: key})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EdgeAttributes returns the properties of the (from, to, key) edge with its
// type under TypeKey.
func (b *BadgerEngine) EdgeAttributes(from, to NodeID, key EdgeKey) (map[string]any, error) {
	var attrs map[string]any
	err := b.withView(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(from, to, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		edgeID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err := b.getEdgeRecord(txn, EdgeID(edgeID))
		if err != nil {
			return err
		}
		attrs = edgeAttributes(&rec.Edge)
		return nil
	})
	return attrs, err
}

// NodeCount returns the cached number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.nodeCount.Load(), nil
}

// EdgeCount returns the cached number of edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	if err := b.ensureOpen(); err != nil {
		return 0, err
	}
	return b.edgeCount.Load(), nil
}

// Close releases the sequence lease and closes the database.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.seq.Release(); err != nil {
		b.db.Close()
		return fmt.Errorf("failed to release sequence: %w", err)
	}
	return b.db.Close()
}

// badgerLogger routes Badger's printf-style logging into slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
