// Package distribution describes synthetic latency as a percentile
// distribution and samples from it.
package distribution

import (
	"fmt"
	"math/rand"
	"sort"
)

// Distribution is a map of percentiles (multiplied by 10) to values.
// e.g. a delay distribution in microseconds might be
// 500  -> 10
// 900  -> 20
// 990  -> 50
// 1000 -> 100
//
// Values between two known percentiles are linearly interpolated.
type Distribution map[int]int64

// MaxKey is the key of the 100th percentile.
const MaxKey = 1000

// FromMap copies m into a Distribution, fills in the 0th and 100th
// percentiles when they are missing and validates the result.
func FromMap(m map[int]int64) (Distribution, error) {
	dist := Distribution{}
	var max int64
	for key, value := range m {
		dist[key] = value
		if value > max {
			max = value
		}
	}
	if _, ok := dist[0]; !ok {
		dist[0] = 0
	}
	if _, ok := dist[MaxKey]; !ok {
		dist[MaxKey] = max
	}

	if err := dist.Validate(); err != nil {
		return nil, err
	}
	return dist, nil
}

// Validate ensures keys are percentiles and values never decrease as the
// percentile grows.
func (dist Distribution) Validate() error {
	var prevKey int
	var prevValue int64
	for i, key := range dist.SortedKeys() {
		value := dist[key]
		if key < 0 || key > MaxKey {
			return fmt.Errorf("percentile key %d is outside [0,%d]", key, MaxKey)
		}
		if value < 0 {
			return fmt.Errorf("value %d at percentile key %d is negative", value, key)
		}
		if i > 0 && value < prevValue {
			return fmt.Errorf("value %d at key %d is smaller than %d at key %d", value, key, prevValue, prevKey)
		}
		prevKey, prevValue = key, value
	}
	return nil
}

// SortedKeys returns the keys in the distribution sorted numerically.
func (dist Distribution) SortedKeys() []int {
	keys := make([]int, 0, len(dist))
	for key := range dist {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}

// bounds returns the known keys directly below and above key.
func (dist Distribution) bounds(key int) (low, high int) {
	keys := dist.SortedKeys()
	low, high = keys[0], keys[len(keys)-1]
	for _, k := range keys {
		if k <= key {
			low = k
		}
		if k >= key {
			high = k
			break
		}
	}
	return low, high
}

// Get returns the value at the given percentile key, clamped to [0,1000].
func (dist Distribution) Get(key int) int64 {
	if len(dist) == 0 {
		return 0
	}
	if key < 0 {
		key = 0
	}
	if key > MaxKey {
		key = MaxKey
	}
	if value, ok := dist[key]; ok {
		return value
	}

	low, high := dist.bounds(key)
	if low == high {
		return dist[low]
	}
	lowValue, highValue := dist[low], dist[high]
	return lowValue + (highValue-lowValue)*int64(key-low)/int64(high-low)
}

// Sample draws a value at a uniformly random percentile.
func (dist Distribution) Sample() int64 {
	return dist.Get(rand.Intn(MaxKey + 1))
}
