// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package xbee

import "container/heap"

// freeList is a min-heap of free slot indices so the lowest slot is
// always reused first.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) {
	*f = append(*f, x.(int)) //nolint:forcetypeassert // only ints are pushed
}

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// slotRef names a transaction slot at a given generation. A slot's
// generation increments on every release, so stale refs stop resolving.
type slotRef struct {
	slot int
	gen  uint32
}

// pool owns every transaction slot. Slots are preallocated up to the soft
// limit and reused in place; the pool only allocates when it has to grow.
type pool struct {
	slots     []*Transaction
	free      freeList
	softLimit int
}

func newPool(softLimit int) *pool {
	p := &pool{
		slots:     make([]*Transaction, softLimit),
		free:      make(freeList, 0, softLimit),
		softLimit: softLimit,
	}
	for i := range p.slots {
		p.slots[i] = &Transaction{slot: i}
		p.free = append(p.free, i)
	}
	heap.Init(&p.free)
	return p
}

// acquire reserves the lowest free slot, growing the pool if none is free.
func (p *pool) acquire() *Transaction {
	if p.free.Len() > 0 {
		return p.slots[heap.Pop(&p.free).(int)] //nolint:forcetypeassert // only ints are pushed
	}
	t := &Transaction{slot: len(p.slots)}
	p.slots = append(p.slots, t)
	if len(p.slots) > p.softLimit {
		debugf("transaction pool grew to %d slots (soft limit %d)", len(p.slots), p.softLimit)
	}
	return t
}

func (p *pool) release(t *Transaction) {
	if t.state == StateFree {
		return
	}
	t.state = StateFree
	t.gen++
	t.onComplete = nil
	t.chain = nil
	t.err = nil
	heap.Push(&p.free, t.slot)
}

// get resolves a ref, returning nil once the slot was released.
func (p *pool) get(ref slotRef) *Transaction {
	if ref.slot < 0 || ref.slot >= len(p.slots) {
		return nil
	}
	t := p.slots[ref.slot]
	if t.gen != ref.gen || t.state == StateFree {
		return nil
	}
	return t
}

func (p *pool) ref(t *Transaction) slotRef {
	return slotRef{slot: t.slot, gen: t.gen}
}

// inUse counts slots that are not free.
func (p *pool) inUse() int {
	return len(p.slots) - p.free.Len()
}
