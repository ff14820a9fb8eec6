package main

import (
	"strings"
	"time"
)

// Execute applies cmd to ks and produces the response frame, translating
// any *ProtocolError into an ErrorFrame. Grounded in the original
// Executor::execute (engine/executor.rs), extended to the full command set
// this implementation carries (spec.md §4.4).
func Execute(ks *Keyspace, cmd Command, now time.Time) Frame {
	switch cmd.Name {
	case CmdGet:
		return executeGet(ks, cmd, now)

	case CmdSet:
		return executeSet(ks, cmd, now)

	case CmdDel:
		if ks.Del(cmd.Key) {
			return SimpleStringFrame("OK")
		}
		return SimpleStringFrame("Key not found")

	case CmdExists:
		if ks.Exists(cmd.Key, now) {
			return SimpleStringFrame("true")
		}
		return SimpleStringFrame("false")

	case CmdExpire:
		if err := ks.Expire(cmd.Key, cmd.Seconds, now); err != nil {
			return asErrorFrame(err)
		}
		return SimpleStringFrame("OK")

	case CmdIncr:
		v, err := ks.Incr(cmd.Key, now)
		if err != nil {
			return asErrorFrame(err)
		}
		return IntegerFrame(v)

	case CmdDecr:
		v, err := ks.Decr(cmd.Key, now)
		if err != nil {
			return asErrorFrame(err)
		}
		return IntegerFrame(v)

	case CmdAppend:
		result, err := ks.Append(cmd.Key, cmd.Value, now)
		if err != nil {
			return asErrorFrame(err)
		}
		return NewBulkString([]byte(result))

	case CmdFlushdb:
		ks.Clear()
		return SimpleStringFrame("OK")

	default:
		return asErrorFrame(ErrInternal("unrouted command"))
	}
}

func executeGet(ks *Keyspace, cmd Command, now time.Time) Frame {
	v, err := ks.Get(cmd.Key, now)
	if err != nil {
		return asErrorFrame(err)
	}
	switch v.Kind {
	case KindString:
		return NewBulkString([]byte(v.Str))
	case KindList:
		// Space-joining a list's elements is a deliberate core choice (this
		// implementation has no MGET/LRANGE); it precludes round-tripping
		// values that themselves contain spaces. Preserved intentionally
		// from the teacher's GET rendering (spec.md §4.4's note).
		var items []string
		if v.List != nil {
			items = v.List.Values()
		}
		return NewBulkString([]byte(strings.Join(items, " ")))
	default:
		return asErrorFrame(ErrInternal("unknown value kind"))
	}
}

func executeSet(ks *Keyspace, cmd Command, now time.Time) Frame {
	expiresAt := time.Time{}
	if cmd.HasPX {
		expiresAt = now.Add(time.Duration(cmd.PXMillis) * time.Millisecond)
	}
	if err := ks.Set(cmd.Key, StringValue(cmd.Value), expiresAt); err != nil {
		return asErrorFrame(err)
	}
	return SimpleStringFrame("OK")
}

func asErrorFrame(err error) Frame {
	return ErrorFrame(err.Error())
}
