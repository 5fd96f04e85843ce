package client

import (
	"strconv"
	"sync/atomic"
)

// Seq is an optional sequence number. The zero value is "unset" and
// encodes as JSON null.
type Seq struct {
	Value uint64
	Valid bool
}

// SeqOf returns a set Seq holding n.
func SeqOf(n uint64) Seq {
	return Seq{Value: n, Valid: true}
}

func (s Seq) String() string {
	if !s.Valid {
		return "unset"
	}
	return strconv.FormatUint(s.Value, 10)
}

func (s Seq) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendUint(nil, s.Value, 10), nil
}

func (s *Seq) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Seq{}
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	*s = SeqOf(n)
	return nil
}

// Sequence holds the highest dispatch sequence number seen in one session.
// A lower number arriving out of order does not replace it.
// The read loop is the only writer; the heartbeat task reads it.
type Sequence struct {
	v atomic.Pointer[uint64]
}

// Load returns the current value, unset if no dispatch was seen yet.
func (s *Sequence) Load() Seq {
	p := s.v.Load()
	if p == nil {
		return Seq{}
	}
	return SeqOf(*p)
}

// Store records n unless a larger value is already held.
func (s *Sequence) Store(n uint64) {
	next := &n
	for {
		old := s.v.Load()
		if old != nil && *old > n {
			return
		}
		if s.v.CompareAndSwap(old, next) {
			return
		}
	}
}
