// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds sensitive material — in practice the Telegram bot
// token — in memory that cannot leak through swap or core dumps.
//
// A Buffer lives outside the Go heap in an anonymous mmap region that is
// mlock'd into physical RAM and marked MADV_DONTDUMP. The garbage
// collector never sees the region, so it cannot copy the secret around
// the heap. Close zeroes the contents before unmapping.
//
// The token crosses back into ordinary heap memory only at the request
// URL boundary (Telegram puts the token in the path); those copies are
// short-lived and unavoidable.
package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is an mlock'd, dump-excluded byte buffer. It must not be
// copied. Accessing the contents after Close panics.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	length int
	closed bool
}

// NewFromBytes copies source into a protected buffer and zeroes the
// source slice in place, so the caller's copy no longer holds the
// secret. The caller must Close the returned buffer.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: empty source")
	}

	region, err := mapProtected(len(source))
	if err != nil {
		return nil, err
	}
	copy(region, source)
	Zero(source)

	return &Buffer{region: region, length: len(region)}, nil
}

// NewFromString copies a string into a protected buffer. The original
// string remains on the heap until collected; the buffer is the durable
// copy. Intended for tests and for values that arrived as strings from
// APIs outside our control.
func NewFromString(value string) (*Buffer, error) {
	if value == "" {
		return nil, fmt.Errorf("secret: empty source")
	}
	return NewFromBytes([]byte(value))
}

// ReadFromPath reads a secret from a file, or from the first line of
// stdin when path is "-". Surrounding whitespace is trimmed. The caller
// must Close the returned buffer.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("secret: reading stdin: %w", err)
			}
			return nil, fmt.Errorf("secret: stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("secret: %w", err)
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret: %s is empty", path)
	}

	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// Bytes returns the secret contents. The slice aliases the protected
// region — do not retain it past the buffer's lifetime.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.region[:b.length]
}

// String returns the secret as a heap string. Use only at boundaries
// that require a string, such as building a request URL.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.region[:b.length])
}

// Len returns the secret length in bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Close zeroes, unlocks, and unmaps the region. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.region)

	var firstErr error
	if err := unix.Munlock(b.region); err != nil {
		firstErr = fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("secret: munmap: %w", err)
	}
	b.region = nil
	return firstErr
}

// Zero overwrites a byte slice with zeroes. Use on intermediate copies
// of secret material before letting them go out of scope.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// mapProtected allocates an anonymous mapping locked against swap and
// excluded from core dumps. MADV_DONTDUMP failure is fatal rather than
// degraded: a token that can surface in a crash dump is not protected.
func mapProtected(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return region, nil
}
