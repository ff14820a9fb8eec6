package main

import (
	"time"

	"go.uber.org/atomic"
)

// ValueKind distinguishes the closed set of value shapes a key can hold.
type ValueKind uint8

const (
	KindString ValueKind = iota
	KindList
)

// Value is the tagged union stored under a key: either a UTF-8 string or an
// ordered sequence of UTF-8 strings. The set of kinds is closed and known at
// build time, so this is a plain tagged struct rather than an interface with
// dynamic dispatch.
type Value struct {
	Kind ValueKind
	Str  string
	List *StringList
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func ListValue(items ...string) Value {
	l := NewStringList()
	for _, it := range items {
		l.RightPush(it)
	}
	return Value{Kind: KindList, List: l}
}

// Size is the sum of byte lengths of contained strings, per the memory
// accounting model in §3: the key itself and structural overhead are
// excluded.
func (v Value) Size() int64 {
	switch v.Kind {
	case KindString:
		return int64(len(v.Str))
	case KindList:
		if v.List == nil {
			return 0
		}
		return v.List.ByteSize()
	default:
		return 0
	}
}

// Entry is a value plus an optional absolute expiration timestamp. The zero
// value of ExpiresAt means "never expires".
type Entry struct {
	Value     Value
	ExpiresAt time.Time
}

func (e Entry) HasTTL() bool { return !e.ExpiresAt.IsZero() }

func (e Entry) Expired(now time.Time) bool {
	return e.HasTTL() && !now.Before(e.ExpiresAt)
}

// StringList is a doubly-linked list of strings backing a KindList Value.
// Grounded in the teacher's List/ListNode shape (data_structures.go),
// narrowed to the string element type this server's data model needs and
// stripped of its own locking: a StringList only ever changes under the
// single event-loop goroutine that owns the Keyspace.
type StringList struct {
	head, tail *stringListNode
	length     int
	byteSize   int64
}

type stringListNode struct {
	value      string
	prev, next *stringListNode
}

func NewStringList() *StringList { return &StringList{} }

func (l *StringList) LeftPush(v string) int {
	node := &stringListNode{value: v}
	if l.head == nil {
		l.head, l.tail = node, node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}
	l.length++
	l.byteSize += int64(len(v))
	return l.length
}

func (l *StringList) RightPush(v string) int {
	node := &stringListNode{value: v}
	if l.tail == nil {
		l.head, l.tail = node, node
	} else {
		l.tail.next = node
		node.prev = l.tail
		l.tail = node
	}
	l.length++
	l.byteSize += int64(len(v))
	return l.length
}

func (l *StringList) LeftPop() (string, bool) {
	if l.head == nil {
		return "", false
	}
	v := l.head.value
	l.head = l.head.next
	if l.head != nil {
		l.head.prev = nil
	} else {
		l.tail = nil
	}
	l.length--
	l.byteSize -= int64(len(v))
	return v, true
}

func (l *StringList) RightPop() (string, bool) {
	if l.tail == nil {
		return "", false
	}
	v := l.tail.value
	l.tail = l.tail.prev
	if l.tail != nil {
		l.tail.next = nil
	} else {
		l.head = nil
	}
	l.length--
	l.byteSize -= int64(len(v))
	return v, true
}

func (l *StringList) Len() int { return l.length }

func (l *StringList) ByteSize() int64 { return l.byteSize }

// Values returns the list's elements in order.
func (l *StringList) Values() []string {
	out := make([]string, 0, l.length)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

// CommandName enumerates the commands this server's router recognizes.
type CommandName int

const (
	CmdGet CommandName = iota
	CmdSet
	CmdDel
	CmdExists
	CmdExpire
	CmdIncr
	CmdDecr
	CmdAppend
	CmdFlushdb
)

// Command is a validated, routed request ready for the executor.
type Command struct {
	Name CommandName
	Key  string

	// SET, APPEND
	Value    string
	HasPX    bool
	PXMillis int64

	// EXPIRE
	Seconds int64
}

// ServerStats tracks coarse performance counters, mirroring the teacher's
// ServerStats but backed by go.uber.org/atomic instead of a mutex (see
// DESIGN.md).
type ServerStats struct {
	TotalOps     atomic.Uint64
	GetOps       atomic.Uint64
	SetOps       atomic.Uint64
	DelOps       atomic.Uint64
	Connections  atomic.Uint64
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
}

// StatsSnapshot is a point-in-time, non-atomic copy of ServerStats safe to
// log or serialize.
type StatsSnapshot struct {
	TotalOps     uint64
	GetOps       uint64
	SetOps       uint64
	DelOps       uint64
	Connections  uint64
	BytesRead    uint64
	BytesWritten uint64
	HitRate      float64
}

func (s *ServerStats) Snapshot() StatsSnapshot {
	get := s.GetOps.Load()
	del := s.DelOps.Load()
	var hitRate float64
	if get > 0 {
		hitRate = float64(get-del) / float64(get)
	}
	return StatsSnapshot{
		TotalOps:     s.TotalOps.Load(),
		GetOps:       get,
		SetOps:       s.SetOps.Load(),
		DelOps:       del,
		Connections:  s.Connections.Load(),
		BytesRead:    s.BytesRead.Load(),
		BytesWritten: s.BytesWritten.Load(),
		HitRate:      hitRate,
	}
}

// connectionState tracks per-connection bookkeeping carried across event
// loop ticks: the read accumulator (§9's retained-buffer fix) and the last
// activity time used by idle-timeout enforcement.
type connectionState struct {
	id           string
	readBuf      []byte
	lastActivity time.Time
}
