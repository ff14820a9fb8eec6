package main

import (
	"strconv"
	"strings"
)

// RouteFrame validates a parsed request frame and translates it into a
// Command the executor can apply. It mirrors the original router's
// match-on-array-then-match-on-name-and-arity shape (engine/router.rs),
// extended with the EXPIRE/INCR/DECR/APPEND/FLUSHDB commands that the most
// featureful revision of the original adds (spec.md §9).
func RouteFrame(f Frame) (Command, error) {
	arr, ok := f.(ArrayFrame)
	if !ok || !arr.Valid {
		return Command{}, ErrParse("expected array request")
	}
	if len(arr.Items) == 0 {
		return Command{}, ErrParse("empty command array")
	}

	nameBulk, ok := arr.Items[0].(BulkStringFrame)
	if !ok || !nameBulk.Valid {
		return Command{}, ErrParse("command name must be a bulk string")
	}
	name := strings.ToUpper(string(nameBulk.Data))

	args := arr.Items[1:]

	switch name {
	case "GET":
		key, err := requireOneKey(name, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdGet, Key: key}, nil

	case "DEL":
		key, err := requireOneKey(name, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdDel, Key: key}, nil

	case "EXISTS":
		key, err := requireOneKey(name, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdExists, Key: key}, nil

	case "INCR":
		key, err := requireOneKey(name, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdIncr, Key: key}, nil

	case "DECR":
		key, err := requireOneKey(name, args)
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdDecr, Key: key}, nil

	case "APPEND":
		if len(args) != 2 {
			return Command{}, ErrInvalidArgCount(name, 2, len(args))
		}
		key, err := bulkString(args[0])
		if err != nil {
			return Command{}, err
		}
		val, err := bulkString(args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Name: CmdAppend, Key: key, Value: val}, nil

	case "FLUSHDB":
		if len(args) != 0 {
			return Command{}, ErrInvalidArgCount(name, 0, len(args))
		}
		return Command{Name: CmdFlushdb}, nil

	case "EXPIRE":
		if len(args) != 2 {
			return Command{}, ErrInvalidArgCount(name, 2, len(args))
		}
		key, err := bulkString(args[0])
		if err != nil {
			return Command{}, err
		}
		secsText, err := bulkString(args[1])
		if err != nil {
			return Command{}, err
		}
		secs, err := strconv.ParseInt(secsText, 10, 64)
		if err != nil || secs < 0 {
			return Command{}, ErrParse("EXPIRE seconds must be a non-negative integer")
		}
		return Command{Name: CmdExpire, Key: key, Seconds: secs}, nil

	case "SET":
		return routeSet(args)

	default:
		return Command{}, ErrInvalidCommand(strings.ToLower(name))
	}
}

func routeSet(args []Frame) (Command, error) {
	if len(args) != 2 && len(args) != 4 {
		return Command{}, ErrInvalidArgCount("SET", 2, len(args))
	}

	key, err := bulkString(args[0])
	if err != nil {
		return Command{}, err
	}
	value, err := bulkString(args[1])
	if err != nil {
		return Command{}, err
	}

	cmd := Command{Name: CmdSet, Key: key, Value: value}
	if len(args) == 2 {
		return cmd, nil
	}

	option, err := bulkString(args[2])
	if err != nil {
		return Command{}, err
	}
	if !strings.EqualFold(option, "PX") {
		return Command{}, ErrInvalidCommand("SET " + option)
	}

	msText, err := bulkString(args[3])
	if err != nil {
		return Command{}, err
	}
	ms, err := strconv.ParseInt(msText, 10, 64)
	if err != nil || ms < 0 {
		return Command{}, ErrParse("PX milliseconds must be a non-negative integer")
	}

	cmd.HasPX = true
	cmd.PXMillis = ms
	return cmd, nil
}

func requireOneKey(name string, args []Frame) (string, error) {
	if len(args) != 1 {
		return "", ErrInvalidArgCount(name, 1, len(args))
	}
	return bulkString(args[0])
}

func bulkString(f Frame) (string, error) {
	b, ok := f.(BulkStringFrame)
	if !ok || !b.Valid {
		return "", ErrParse("expected a non-null bulk string argument")
	}
	return string(b.Data), nil
}
