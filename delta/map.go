// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package delta

import (
	"cmp"
	"slices"
)

// Map is an ordered map that records additions and removals by key.
// Iteration, Keys and the full encoding follow ascending key order.
type Map[K cmp.Ordered, V any] struct {
	keyed[K, V, ascending[K]]
}

func NewMap[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{keyed: keyed[K, V, ascending[K]]{vals: make(map[K]*V)}}
}

// UMap is an unordered map that records additions and removals by key.
type UMap[K comparable, V any] struct {
	keyed[K, V, unordered[K]]
}

func NewUMap[K comparable, V any]() *UMap[K, V] {
	return &UMap[K, V]{keyed: keyed[K, V, unordered[K]]{vals: make(map[K]*V)}}
}

type ascending[K cmp.Ordered] struct{}

func (ascending[K]) sort(ks []K) { slices.Sort(ks) }

type unordered[K comparable] struct{}

func (unordered[K]) sort([]K) {}
