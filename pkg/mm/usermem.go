// Copyright 2026 The gVisor Authors.
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

package mm

import (
	"gvisor.dev/gvisor/pkg/hostarch"
)

// Translator resolves user byte ranges to frame-backed chunks.
type Translator interface {
	TranslateRange(token Token, addr hostarch.Addr, length uint64, at hostarch.AccessType) ([][]byte, error)
}

// Marshallable is a fixed-size record with a defined user ABI encoding.
type Marshallable interface {
	// SizeBytes is the encoded size.
	SizeBytes() int

	// MarshalBytes encodes the record into dst, which must be at least
	// SizeBytes long, and returns the remainder of dst.
	MarshalBytes(dst []byte) []byte
}

// CopyOut writes src to user memory at addr. Either all of src is written or,
// on a fault, none of it.
func CopyOut(t Translator, token Token, addr hostarch.Addr, src []byte) (int, error) {
	chunks, err := t.TranslateRange(token, addr, uint64(len(src)), hostarch.Write)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range chunks {
		n += copy(c, src[n:])
	}
	return n, nil
}

// CopyIn reads len(dst) bytes of user memory at addr into dst.
func CopyIn(t Translator, token Token, addr hostarch.Addr, dst []byte) (int, error) {
	chunks, err := t.TranslateRange(token, addr, uint64(len(dst)), hostarch.Read)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range chunks {
		n += copy(dst[n:], c)
	}
	return n, nil
}

// CopyOutObject encodes obj and writes it to user memory at addr.
func CopyOutObject(t Translator, token Token, addr hostarch.Addr, obj Marshallable) error {
	buf := make([]byte, obj.SizeBytes())
	obj.MarshalBytes(buf)
	_, err := CopyOut(t, token, addr, buf)
	return err
}
