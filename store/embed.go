package store

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// embedText maps text to a fixed-dimension feature-hash vector. Each token
// hashes to a bucket with a hash-derived sign, and the result is
// L2-normalized so vec0 cosine distance behaves. The same text always
// produces the same vector, which keeps similarity search reproducible
// without an external embedding model.
func embedText(text string, dim int) []float32 {
	vec := make([]float32, dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(dim))
		sign := float32(1)
		if (sum>>32)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// tokenize lowercases and splits on non-alphanumeric runes, keeping
// identifier-like tokens (inv-1023) intact as their parts plus the joined
// form so both "INV-1023" and "1023" match.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	var toks []string
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" {
			continue
		}
		toks = append(toks, f)
		if strings.Contains(f, "-") {
			toks = append(toks, strings.Split(f, "-")...)
		}
	}
	return toks
}

// serializeFloat32 encodes a vector in the little-endian layout sqlite-vec
// expects for float[] columns.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
