package ixa

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// fingerprint128 digests a property value into two independent 64-bit
// hashes, the same fingerprinting idea the rng package uses to derive
// stream seeds. Two distinct values would need to collide in both
// halves to be mistaken for the same index bucket, which an
// encoding-level collision in a single 64-bit hash cannot produce.
type fingerprint128 struct {
	hi, lo uint64
}

func fingerprintValue(v any) fingerprint128 {
	s := fmt.Sprintf("%#v", v)

	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(s))

	h2 := fnv.New64()
	_, _ = h2.Write([]byte(s))
	_, _ = h2.Write([]byte{0xff})

	return fingerprint128{hi: h1.Sum64(), lo: h2.Sum64()}
}

// propertyIndex maps a property's fingerprinted values to the entity
// ids currently holding them. IndexProperty builds one from a column's
// present state; every later SetProperty/InitializeProperty call on
// that column keeps it current.
type propertyIndex[V any] struct {
	mu   sync.Mutex
	byFP map[fingerprint128][]uint64
}

func newPropertyIndex[V any]() *propertyIndex[V] {
	return &propertyIndex[V]{byFP: make(map[fingerprint128][]uint64)}
}

func (x *propertyIndex[V]) insert(id uint64, v V) {
	fp := fingerprintValue(v)
	x.mu.Lock()
	x.byFP[fp] = append(x.byFP[fp], id)
	x.mu.Unlock()
}

func (x *propertyIndex[V]) remove(id uint64, v V) {
	fp := fingerprintValue(v)
	x.mu.Lock()
	defer x.mu.Unlock()
	ids := x.byFP[fp]
	for i, existing := range ids {
		if existing == id {
			ids[i] = ids[len(ids)-1]
			x.byFP[fp] = ids[:len(ids)-1]
			return
		}
	}
}

func (x *propertyIndex[V]) update(id uint64, prev V, cur V, hadPrev bool) {
	if hadPrev {
		x.remove(id, prev)
	}
	x.insert(id, cur)
}

func (x *propertyIndex[V]) lookup(v V) []uint64 {
	fp := fingerprintValue(v)
	x.mu.Lock()
	defer x.mu.Unlock()
	ids := x.byFP[fp]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// IndexProperty builds (or rebuilds) a fingerprint index over every
// value currently stored for p, letting QueryEntityCount,
// SampleEntity, and SampleEntities satisfy predicates on p in O(matches)
// rather than a full scan of every entity of type E.
//
// Queries with more than one predicate do not get a persistent composite
// index: the query engine intersects candidates from whichever single
// predicate has the smallest matching set, breaking ties by the
// alphabetical order of the predicates' property names so that two
// queries differing only in predicate order pick the same seed.
func IndexProperty[E any, V any](ctx *Context, p *Property[E, V]) {
	ensureDerivedWired(ctx, p)
	col := columnFor(ctx, p)

	if p.derive != nil {
		// A derived property's column is only ever a diffing shadow, so
		// priming it here is what lets the index reflect every existing
		// entity rather than just the ones that have recomputed so far.
		n := EntityCount[E](ctx)
		col.mu.Lock()
		for i := 0; i < n; i++ {
			id := uint64(i)
			if _, ok := col.get(id); !ok {
				col.set(id, p.compute(ctx, EntityID[E]{id: id}))
			}
		}
		col.mu.Unlock()
	}

	col.mu.Lock()
	defer col.mu.Unlock()

	idx := newPropertyIndex[V]()
	for id, slot := range col.values {
		if slot != nil {
			idx.insert(uint64(id), *slot)
		}
	}
	col.index = idx
}
