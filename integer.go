package sdbx

import "encoding/binary"

// Keys of IntegerKey databases and values of IntegerDup databases are
// unsigned integers in machine byte order, 4 or 8 bytes wide. These
// helpers produce and read that encoding.

// Uint32Key encodes v for an IntegerKey or IntegerDup database.
func Uint32Key(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}

// Uint64Key encodes v for an IntegerKey or IntegerDup database.
func Uint64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return b
}

// Uint32FromKey reads a 4-byte machine-order key.
func Uint32FromKey(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, argErr("key", "must be 4 bytes")
	}
	return binary.NativeEndian.Uint32(b), nil
}

// Uint64FromKey reads an 8-byte machine-order key.
func Uint64FromKey(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, argErr("key", "must be 8 bytes")
	}
	return binary.NativeEndian.Uint64(b), nil
}
