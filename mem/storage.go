package mem

import "fmt"

// A Storage keeps the data of the simulated memory.
//
// The storage is managed in units, similar to pages. Units that are never
// touched by Read or Write are not allocated.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4 * uint64(KB)
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// InRange returns true if [address, address+length) lies in the storage.
func (s *Storage) InRange(address, length uint64) bool {
	end := address + length
	if end < address {
		return false
	}

	return end <= s.capacity
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if !s.InRange(address, length) {
		return fmt.Errorf("%w: [0x%x, 0x%x) beyond capacity 0x%x",
			ErrAddressOutOfRange, address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) getUnit(baseAddr uint64, create bool) []byte {
	unit, ok := s.data[baseAddr]
	if !ok && create {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns a copy of length bytes starting at address. Bytes never
// written read as zero.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		if unit := s.getUnit(baseAddr, false); unit != nil {
			copy(res[offset:offset+n], unit[inUnitAddr:inUnitAddr+n])
		}

		offset += n
	}

	return res, nil
}

// Write copies data into the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		unit := s.getUnit(baseAddr, true)
		copy(unit[inUnitAddr:inUnitAddr+n], data[offset:offset+n])

		offset += n
	}

	return nil
}
