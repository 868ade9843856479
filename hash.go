// Copyright 2025 The Flathash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flathash

import "unsafe"

// hashFn is the signature of the hash function used by a table: a pointer to
// the key and a per-table seed in, a well distributed digest out. Equal keys
// must produce equal digests for a fixed seed. Hashing never fails.
type hashFn func(key unsafe.Pointer, seed uintptr) uintptr

// getRuntimeHasher extracts the hash function the builtin map[K]struct{}
// would use for keys of type K by reaching into the runtime's type
// descriptor. This might break in a future version of Go, but is likely
// fixable unless the runtime does something drastic.
func getRuntimeHasher[K comparable]() hashFn {
	a := any((map[K]struct{})(nil))
	return (*efaceMapType)(unsafe.Pointer(&a)).typ.Hasher
}

// From runtime/runtime2.go:eface.
type efaceMapType struct {
	typ  *mapType
	data unsafe.Pointer
}

// From internal/abi/type.go:MapType. Only the fields up to and including
// Hasher matter; the tail is kept so the struct has the right shape.
type mapType struct {
	rtype
	Key        *rtype
	Elem       *rtype
	Bucket     *rtype
	Hasher     func(unsafe.Pointer, uintptr) uintptr
	KeySize    uint8
	ValueSize  uint8
	BucketSize uint16
	Flags      uint32
}

// From internal/abi/type.go:Type.
type rtype struct {
	Size_       uintptr
	PtrBytes    uintptr
	Hash        uint32
	TFlag       uint8
	Align_      uint8
	FieldAlign_ uint8
	Kind_       uint8
	Equal       func(unsafe.Pointer, unsafe.Pointer) bool
	GCData      *byte
	Str         int32
	PtrToThis   int32
}

// noescape hides a pointer from escape analysis. noescape is the identity
// function but escape analysis doesn't think the output depends on the
// input. noescape is inlined and currently compiles down to zero
// instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
