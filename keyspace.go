package main

import (
	"strconv"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/rand"
)

// CycleKind distinguishes the two active-expiration cadences.
type CycleKind int

const (
	CycleFast CycleKind = iota
	CycleSlow
)

// ExpireStats reports what one active-expiration cycle accomplished,
// grounded in the original implementation's ExpireStats struct
// (storage/memory.rs).
type ExpireStats struct {
	KeysChecked       int
	KeysExpired       int
	TotalIterations   int
	StoppedByThresh   bool
	Elapsed           time.Duration
}

// SamplerConfig tunes the active-expiration cycles (§4.2); defaults match
// the original's hardcoded constants, promoted to configuration (see
// SPEC_FULL.md §2.2).
type SamplerConfig struct {
	SampleSize    int
	FastBudget    time.Duration
	SlowBudget    time.Duration
	HitThreshold  float64
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		SampleSize:   20,
		FastBudget:   1 * time.Millisecond,
		SlowBudget:   25 * time.Millisecond,
		HitThreshold: 0.25,
	}
}

// Keyspace is the process-wide key/value map: the single piece of mutable
// state owned exclusively by the event-loop goroutine (spec.md §9). No
// internal locking is used; any future parallelization must add a
// synchronization boundary at the executor entry point instead of inside
// this type.
type Keyspace struct {
	entries    map[string]Entry
	usedMemory int64
	maxMemory  int64
	sampler    SamplerConfig
	rng        *rand.Rand
}

func NewKeyspace(maxMemory int64, sampler SamplerConfig) *Keyspace {
	return &Keyspace{
		entries:    make(map[string]Entry),
		maxMemory:  maxMemory,
		sampler:    sampler,
		rng:        rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

func (k *Keyspace) Len() int { return len(k.entries) }

func (k *Keyspace) UsedMemory() int64 { return k.usedMemory }

// Get returns the live value stored at key, passively expiring it first if
// its TTL has passed.
func (k *Keyspace) Get(key string, now time.Time) (Value, error) {
	entry, ok := k.entries[key]
	if !ok {
		return Value{}, ErrKeyNotFound()
	}
	if entry.Expired(now) {
		k.remove(key, entry)
		return Value{}, ErrKeyNotFound()
	}
	return entry.Value, nil
}

// Set installs value under key with an optional absolute expiry. The
// memory admission check subtracts the key's prior size (if any) before
// testing the new size against maxMemory, and leaves the keyspace
// unchanged on OutOfMemory.
func (k *Keyspace) Set(key string, value Value, expiresAt time.Time) error {
	newSize := value.Size()

	projected := k.usedMemory
	if old, ok := k.entries[key]; ok {
		projected -= old.Value.Size()
	}

	if k.maxMemory > 0 && projected+newSize > k.maxMemory {
		return ErrOutOfMemory()
	}

	k.usedMemory = projected + newSize
	k.entries[key] = Entry{Value: value, ExpiresAt: expiresAt}
	return nil
}

// Del removes key unconditionally, reporting whether it had been present
// (an expired-but-unswept entry still counts as present here, matching the
// original's delete()/LoadAndDelete semantics — DEL does not distinguish
// "expired" from "present").
func (k *Keyspace) Del(key string) bool {
	entry, ok := k.entries[key]
	if !ok {
		return false
	}
	k.remove(key, entry)
	return true
}

// Exists reports whether key is present and live. Unlike the original
// reference server (which returns true for an expired-but-unswept key —
// spec.md §9's documented wart), this implementation sweeps on read here
// too, so EXISTS and GET agree (the REDESIGN resolution recorded in
// SPEC_FULL.md §9).
func (k *Keyspace) Exists(key string, now time.Time) bool {
	entry, ok := k.entries[key]
	if !ok {
		return false
	}
	if entry.Expired(now) {
		k.remove(key, entry)
		return false
	}
	return true
}

// Clear empties the keyspace (FLUSHDB).
func (k *Keyspace) Clear() {
	k.entries = make(map[string]Entry)
	k.usedMemory = 0
}

// Expire sets key's TTL to now+seconds. KeyNotFound if key is absent or
// already expired.
func (k *Keyspace) Expire(key string, seconds int64, now time.Time) error {
	entry, ok := k.entries[key]
	if !ok || entry.Expired(now) {
		if ok {
			k.remove(key, entry)
		}
		return ErrKeyNotFound()
	}
	entry.ExpiresAt = now.Add(time.Duration(seconds) * time.Second)
	k.entries[key] = entry
	return nil
}

// Incr and Decr initialize an absent key to "1"/"-1", or parse an existing
// String value as a signed 64-bit integer and add/subtract one. A
// non-String value, an unparseable value, or overflow all surface as
// NotInteger (the original reference server folds "wrong type" into this
// same error for these two commands — spec.md §4.2).
func (k *Keyspace) Incr(key string, now time.Time) (int64, error) { return k.addDelta(key, 1, now) }
func (k *Keyspace) Decr(key string, now time.Time) (int64, error) { return k.addDelta(key, -1, now) }

func (k *Keyspace) addDelta(key string, delta int64, now time.Time) (int64, error) {
	entry, ok := k.entries[key]
	if ok && entry.Expired(now) {
		k.remove(key, entry)
		ok = false
	}

	var current int64
	if ok {
		if entry.Value.Kind != KindString {
			return 0, ErrNotInteger()
		}
		parsed, err := strconv.ParseInt(entry.Value.Str, 10, 64)
		if err != nil {
			return 0, ErrNotInteger()
		}
		current = parsed
	}

	next := current + delta
	if delta > 0 && next < current {
		return 0, ErrNotInteger()
	}
	if delta < 0 && next > current {
		return 0, ErrNotInteger()
	}

	newValue := StringValue(strconv.FormatInt(next, 10))
	expiresAt := time.Time{}
	if ok {
		expiresAt = entry.ExpiresAt
	}
	if err := k.Set(key, newValue, expiresAt); err != nil {
		return 0, err
	}
	return next, nil
}

// Append concatenates text onto an existing String value, or creates key
// with text as its whole value (no TTL) if absent. A non-String value is
// WrongType.
func (k *Keyspace) Append(key, text string, now time.Time) (string, error) {
	entry, ok := k.entries[key]
	if ok && entry.Expired(now) {
		k.remove(key, entry)
		ok = false
	}

	if !ok {
		if err := k.Set(key, StringValue(text), time.Time{}); err != nil {
			return "", err
		}
		return text, nil
	}

	if entry.Value.Kind != KindString {
		return "", ErrWrongType()
	}

	newStr := entry.Value.Str + text
	if err := k.Set(key, StringValue(newStr), entry.ExpiresAt); err != nil {
		return "", err
	}
	return newStr, nil
}

func (k *Keyspace) remove(key string, entry Entry) {
	delete(k.entries, key)
	k.usedMemory -= entry.Value.Size()
	if k.usedMemory < 0 {
		k.usedMemory = 0
	}
}

// ActiveExpireCycle samples keys uniformly at random (with replacement)
// from a snapshot of the current key set, evicting any whose TTL has
// passed, and stops early once the per-iteration hit rate falls below the
// configured threshold or the cycle's time budget is exhausted — the
// probabilistic sweep described in spec.md §4.2, grounded in the
// original's active_expire_cycle (storage/memory.rs).
func (k *Keyspace) ActiveExpireCycle(kind CycleKind, now time.Time) ExpireStats {
	var stats ExpireStats
	start := time.Now()

	budget := k.sampler.FastBudget
	if kind == CycleSlow {
		budget = k.sampler.SlowBudget
	}

	if len(k.entries) == 0 {
		stats.Elapsed = time.Since(start)
		return stats
	}

	keys := maps.Keys(k.entries)

	for time.Since(start) < budget {
		stats.TotalIterations++
		expiredThisIteration := 0

		for i := 0; i < k.sampler.SampleSize; i++ {
			key := keys[k.rng.Intn(len(keys))]
			stats.KeysChecked++

			entry, ok := k.entries[key]
			if !ok {
				continue
			}
			if entry.Expired(now) {
				k.remove(key, entry)
				expiredThisIteration++
				stats.KeysExpired++
			}
		}

		hitRate := float64(expiredThisIteration) / float64(k.sampler.SampleSize)
		if hitRate < k.sampler.HitThreshold {
			stats.StoppedByThresh = true
			break
		}
	}

	stats.Elapsed = time.Since(start)
	return stats
}
