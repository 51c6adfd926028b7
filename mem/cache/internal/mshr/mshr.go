// Package mshr tracks the misses that a cache is waiting on.
package mshr

import (
	"fmt"

	"github.com/sarchlab/memhier/mem"
)

// EntryState tells whether the fill request of an entry has left the cache.
type EntryState int

// Entry states.
const (
	EntryAllocated EntryState = iota
	EntryIssued
)

// An Entry tracks one missing line and all the requests waiting for it.
type Entry struct {
	Address  uint64
	Requests []*mem.AccessReq
	FillReq  *mem.AccessReq
	State    EntryState
}

// MSHR records cache's request to bottom memory.
type MSHR interface {
	Lookup(addr uint64) (*Entry, bool)
	AddEntry(addr uint64) (*Entry, error)
	RemoveEntry(addr uint64) (*Entry, error)
	AddReqToEntry(req *mem.AccessReq, addr uint64) error
	CanAddReqToEntry(addr uint64) bool
	IsFull() bool
	NumEntries() int
	Reset()
}

// NewMSHR creates a new MSHR with capacity entries, each holding at most
// targetsPerEntry requests.
func NewMSHR(capacity, targetsPerEntry int) MSHR {
	return &mshrImpl{
		Capacity:        capacity,
		TargetsPerEntry: targetsPerEntry,
	}
}

type mshrImpl struct {
	Capacity        int
	TargetsPerEntry int
	Entries         []*Entry
}

func (m *mshrImpl) Lookup(addr uint64) (*Entry, bool) {
	for _, e := range m.Entries {
		if e.Address == addr {
			return e, true
		}
	}

	return nil, false
}

func (m *mshrImpl) AddEntry(addr uint64) (*Entry, error) {
	if _, found := m.Lookup(addr); found {
		return nil, fmt.Errorf("trying to add an address that is already in MSHR")
	}

	if m.IsFull() {
		return nil, fmt.Errorf("%w: trying to add to a full MSHR",
			mem.ErrResourceExhausted)
	}

	entry := &Entry{
		Address: addr,
		State:   EntryAllocated,
	}

	m.Entries = append(m.Entries, entry)

	return entry, nil
}

func (m *mshrImpl) RemoveEntry(addr uint64) (*Entry, error) {
	for i, e := range m.Entries {
		if e.Address == addr {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return e, nil
		}
	}

	return nil, fmt.Errorf("trying to remove an non-exist entry")
}

func (m *mshrImpl) AddReqToEntry(req *mem.AccessReq, addr uint64) error {
	e, found := m.Lookup(addr)
	if !found {
		return fmt.Errorf("trying to add a request to an non-exist entry")
	}

	if len(e.Requests) >= m.TargetsPerEntry {
		return fmt.Errorf("%w: entry 0x%x already has %d targets",
			mem.ErrResourceExhausted, addr, len(e.Requests))
	}

	e.Requests = append(e.Requests, req)

	return nil
}

func (m *mshrImpl) CanAddReqToEntry(addr uint64) bool {
	e, found := m.Lookup(addr)
	if !found {
		return false
	}

	return len(e.Requests) < m.TargetsPerEntry
}

func (m *mshrImpl) IsFull() bool {
	return len(m.Entries) >= m.Capacity
}

func (m *mshrImpl) NumEntries() int {
	return len(m.Entries)
}

func (m *mshrImpl) Reset() {
	m.Entries = nil
}
