// Package prediction implements the append-only prediction registry and the
// nearest-value resolution scan used to settle the pool.
package prediction

import (
	"errors"
	"math"
)

// ErrNoWinner is returned when resolution cannot select any prediction. This
// only happens on an empty registry or when every candidate's wrapped distance
// equals the MaxUint64 sentinel.
var ErrNoWinner = errors.New("prediction: no winning prediction found")

// initialCapacity is the registry's starting capacity; it doubles when full.
const initialCapacity = 10

// Entry is a single submitted prediction. Entries are immutable and stored in
// insertion order.
type Entry struct {
	Value uint64 `json:"value"`
	Owner string `json:"owner"`
}

// Store is the growable prediction registry. Two structures back it: the
// ordered sequence used for the resolution scan, and a value→owner index used
// for exact-match lookup. A later submission with a duplicate value overwrites
// the index mapping (last-writer-wins) while both entries remain in the
// sequence. The pool service serializes all access.
type Store struct {
	entries []Entry
	owners  map[uint64]string
	size    int
}

// New creates an empty registry with the initial capacity.
func New() *Store {
	return &Store{
		entries: make([]Entry, initialCapacity),
		owners:  make(map[uint64]string),
	}
}

// Submit appends a prediction at index = size, doubling capacity first if the
// registry is full, and updates the value→owner index.
func (s *Store) Submit(owner string, value uint64) {
	if s.size == len(s.entries) {
		grown := make([]Entry, len(s.entries)*2)
		copy(grown, s.entries)
		s.entries = grown
	}
	s.entries[s.size] = Entry{Value: value, Owner: owner}
	s.size++
	s.owners[value] = owner
}

// Len returns the number of submitted predictions.
func (s *Store) Len() int {
	return s.size
}

// Cap returns the registry's current capacity.
func (s *Store) Cap() int {
	return len(s.entries)
}

// Entries returns the submitted predictions in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, s.size)
	copy(out, s.entries[:s.size])
	return out
}

// ResolveNearest selects the winning owner for the reported value.
//
// An exact match in the value→owner index always wins, even when later
// submissions sit numerically closer. Otherwise the sequence is scanned left
// to right minimizing reported-stored under uint64 wraparound: a stored value
// above the reported one wraps to a huge distance, so predictions below the
// reported value are strongly preferred. The wraparound is kept deliberately
// for settlement compatibility rather than replaced with absolute distance.
//
// The running minimum starts at MaxUint64 and only a strictly smaller distance
// takes the lead, so ties resolve to the earliest submission. A candidate whose
// wrapped distance equals the sentinel itself can never take the lead; if no
// candidate beats the sentinel, ErrNoWinner is returned.
func (s *Store) ResolveNearest(reported uint64) (string, error) {
	if owner, ok := s.owners[reported]; ok {
		return owner, nil
	}

	best := uint64(math.MaxUint64)
	winner := ""
	found := false

	for i := 0; i < s.size; i++ {
		diff := reported - s.entries[i].Value // uint64 wraparound intended
		if diff < best {
			best = diff
			winner = s.entries[i].Owner
			found = true
		}
	}

	if !found {
		return "", ErrNoWinner
	}
	return winner, nil
}
