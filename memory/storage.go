package memory

import (
	"encoding/binary"
	"errors"
)

// A Storage keeps the content of a simulated memory device.
//
// The storage manages its content in fixed-size units and only allocates a
// unit once it is touched by a Read or Write. An untouched unit reads as the
// fill byte, so a NOR-flash array can be modeled with fill 0xFF without
// allocating its full capacity up front.
type Storage struct {
	unitSize uint64
	capacity uint64
	fill     byte
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity. Untouched
// bytes read as zero.
func NewStorage(capacity uint64) *Storage {
	return NewFilledStorage(capacity, 0)
}

// NewFilledStorage creates a storage object whose untouched bytes read as the
// given fill byte.
func NewFilledStorage(capacity uint64, fill byte) *Storage {
	storage := new(Storage)

	storage.unitSize = 4096
	storage.capacity = capacity
	storage.fill = fill
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// createOrGetStorageUnit retrieves a storage unit if the unit has been created
// before. Otherwise it initializes a storage unit in the storage object.
func (s *Storage) createOrGetStorageUnit(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("accessing address beyond the storage capacity")
	}

	baseAddr, _ := s.parseAddress(address)
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		if s.fill != 0 {
			for i := range unit {
				unit[i] = s.fill
			}
		}
		s.data[baseAddr] = unit
	}
	return unit, nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read returns a copy of the n bytes starting at address.
func (s *Storage) Read(address uint64, n uint64) ([]byte, error) {
	if address+n > s.capacity {
		return nil, errors.New("reading beyond the storage capacity")
	}

	currAddr := address
	lenLeft := n
	dataOffset := uint64(0)
	res := make([]byte, n)

	for currAddr < address+n {
		unit, err := s.createOrGetStorageUnit(currAddr)
		if err != nil {
			return nil, err
		}

		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInUnit := baseAddr + s.unitSize - currAddr
		lenToRead := lenLeftInUnit
		if lenLeft < lenLeftInUnit {
			lenToRead = lenLeft
		}

		copy(res[dataOffset:dataOffset+lenToRead],
			unit[inUnitAddr:inUnitAddr+lenToRead])
		lenLeft -= lenToRead
		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write stores the given bytes starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	if address+uint64(len(data)) > s.capacity {
		return errors.New("writing beyond the storage capacity")
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit, err := s.createOrGetStorageUnit(currAddr)
		if err != nil {
			return err
		}

		_, inUnitAddr := s.parseAddress(currAddr)
		lenLeftInData := uint64(len(data)) - dataOffset
		lenLeftInUnit := currAddr/s.unitSize*s.unitSize + s.unitSize - currAddr
		lenToWrite := lenLeftInUnit
		if lenLeftInData < lenLeftInUnit {
			lenToWrite = lenLeftInData
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// ReadByte returns the byte at address.
func (s *Storage) ReadByte(address uint64) (byte, error) {
	data, err := s.Read(address, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// WriteByte stores a byte at address.
func (s *Storage) WriteByte(address uint64, b byte) error {
	return s.Write(address, []byte{b})
}

// ReadWord returns the 32-bit word starting at address. Serial flash
// delivers the lowest-addressed byte first, so words are big-endian.
func (s *Storage) ReadWord(address uint64) (uint32, error) {
	data, err := s.Read(address, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

// WriteWord stores a 32-bit word starting at address.
func (s *Storage) WriteWord(address uint64, v uint32) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, v)
	return s.Write(address, data)
}
