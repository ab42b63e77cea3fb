// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bloom implements the per-dimension probabilistic membership
// filter used by FilterJoin/LIP (spec §3 "Bloom filter", §4.5), including
// the adaptive miss-rate estimator that drives filter reordering.
//
// Grounded on original_source/src/operators/join/lip.h: a fixed-size bit
// array with k=numHashes independent probes derived from one murmur3 hash
// via double hashing (Kirsch-Mitzenmacher), which is the standard trick
// for turning one hash into k without k independent hash functions.
package bloom

import (
	"math"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

// Filter is a single dimension's Bloom filter plus hit-rate bookkeeping
// used by LIP's adaptive reordering (spec §4.5 step 3).
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes int

	probes int64
	hits   int64
}

// New sizes a filter for n expected keys at false-positive rate fpRate
// (classic m = -n*ln(p)/(ln2)^2, k = m/n*ln2).
func New(n int, fpRate float64) *Filter {
	if n <= 0 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(fpRate) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	words := (m + 63) / 64
	return &Filter{bits: make([]uint64, words), numBits: words * 64, numHashes: k}
}

func (f *Filter) locations(key int64) (h1, h2 uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(key >> (8 * i))
	}
	h1 = murmur3.Sum64(buf[:])
	h2 = murmur3.Sum64WithSeed(buf[:], 0x9e3779b9)
	return h1, h2
}

// Insert adds key to the filter.
func (f *Filter) Insert(key int64) {
	h1, h2 := f.locations(key)
	for i := 0; i < f.numHashes; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		f.bits[bit/64] |= 1 << (bit % 64)
	}
}

// Test reports whether key might be in the filter (false positives
// allowed, false negatives impossible).
func (f *Filter) Test(key int64) bool {
	h1, h2 := f.locations(key)
	for i := 0; i < f.numHashes; i++ {
		bit := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// RecordProbe updates the hit counter used by the miss-rate estimator.
// Safe for concurrent use across LIP probe-phase worker goroutines (spec
// §4.5 step 3: "After every batch, update a per-filter hit counter").
func (f *Filter) RecordProbe(hit bool) {
	atomic.AddInt64(&f.probes, 1)
	if hit {
		atomic.AddInt64(&f.hits, 1)
	}
}

// HitRate returns the fraction of probes that passed the filter so far.
// A filter nobody has probed yet reports a hit rate of 1.0 (least
// selective), so it sorts after every filter with a lower observed hit
// rate rather than first.
func (f *Filter) HitRate() float64 {
	probes := atomic.LoadInt64(&f.probes)
	if probes == 0 {
		return 1.0
	}
	return float64(atomic.LoadInt64(&f.hits)) / float64(probes)
}
