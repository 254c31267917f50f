// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

package authtest

import "github.com/playgate/playgate/internal/auth"

// FastHasher returns an argon2id hasher with minimal cost parameters.
// Hashes it produces verify with any Argon2idHasher.
func FastHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time:    1,
		Memory:  64,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	})
}

// SequenceReader yields each byte slice in turn and then repeats the last
// one. It stands in for crypto/rand when tests need predictable tokens.
type SequenceReader struct {
	chunks [][]byte
	i      int
}

// NewSequenceReader creates a SequenceReader over chunks.
func NewSequenceReader(chunks ...[]byte) *SequenceReader {
	return &SequenceReader{chunks: chunks}
}

// Read implements io.Reader. Each call returns one whole chunk.
func (r *SequenceReader) Read(p []byte) (int, error) {
	chunk := r.chunks[r.i]
	if r.i < len(r.chunks)-1 {
		r.i++
	}
	return copy(p, chunk), nil
}
