package ixa

import (
	"iter"
	"sort"
	"time"

	"github.com/CDCgov/ixa-core/pkg/ixa/rng"
)

// Predicate is one (property, value) filter in a Query, type-erased so
// a single Query can mix predicates over properties with different
// value types.
type Predicate[E any] interface {
	matches(ctx *Context, id EntityID[E]) bool
	propertyName() string
	indexed(ctx *Context) ([]uint64, bool)
}

type equalsPredicate[E any, V any] struct {
	p     *Property[E, V]
	value V
}

// Where declares a predicate matching entities whose value for p equals
// value.
func Where[E any, V any](p *Property[E, V], value V) Predicate[E] {
	return equalsPredicate[E, V]{p: p, value: value}
}

func (pr equalsPredicate[E, V]) matches(ctx *Context, id EntityID[E]) bool {
	return deepEqual(GetProperty(ctx, pr.p, id), pr.value)
}

func (pr equalsPredicate[E, V]) propertyName() string { return pr.p.meta.name }

func (pr equalsPredicate[E, V]) indexed(ctx *Context) ([]uint64, bool) {
	col := columnFor(ctx, pr.p)
	col.mu.RLock()
	idx := col.index
	col.mu.RUnlock()
	if idx == nil {
		return nil, false
	}
	return idx.lookup(pr.value), true
}

// Query is a conjunction of predicates over entities of type E. A nil
// or empty Query matches every entity of type E.
type Query[E any] []Predicate[E]

// canonicalOrder returns predicate indexes sorted by property name, so
// two Querys built from the same predicates in different orders probe
// candidate indexes identically.
func canonicalOrder[E any](q Query[E]) []int {
	order := make([]int, len(q))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return q[order[i]].propertyName() < q[order[j]].propertyName()
	})
	return order
}

// candidateIDs seeds from the indexed predicate with the fewest matches
// (the smallest set to filter down from), ties broken by
// canonicalOrder, then filters those candidates against every other
// predicate. The second return is false if no predicate in q is
// indexed, meaning the caller must fall back to a full scan.
func candidateIDs[E any](ctx *Context, q Query[E]) ([]uint64, bool) {
	order := canonicalOrder(q)

	seedAt := -1
	var seed []uint64
	for _, i := range order {
		ids, ok := q[i].indexed(ctx)
		if !ok {
			continue
		}
		if seedAt == -1 || len(ids) < len(seed) {
			seedAt, seed = i, ids
		}
	}
	if seedAt == -1 {
		return nil, false
	}

	out := make([]uint64, 0, len(seed))
	for _, id := range seed {
		eid := EntityID[E]{id: id}
		matched := true
		for j, pred := range q {
			if j == seedAt {
				continue
			}
			if !pred.matches(ctx, eid) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, id)
		}
	}
	return out, true
}

func matchingIDs[E any](ctx *Context, q Query[E]) []uint64 {
	if len(q) == 0 {
		n := EntityCount[E](ctx)
		ids := make([]uint64, n)
		for i := range ids {
			ids[i] = uint64(i)
		}
		return ids
	}
	if ids, ok := candidateIDs(ctx, q); ok {
		return ids
	}

	n := EntityCount[E](ctx)
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		eid := EntityID[E]{id: uint64(i)}
		matched := true
		for _, pred := range q {
			if !pred.matches(ctx, eid) {
				matched = false
				break
			}
		}
		if matched {
			ids = append(ids, uint64(i))
		}
	}
	return ids
}

// QueryEntityCount returns how many entities of type E satisfy every
// predicate in q.
func QueryEntityCount[E any](ctx *Context, q Query[E]) int {
	start := time.Now()
	n := len(matchingIDs(ctx, q))
	ctx.metrics.RecordQuery(ctx, entityTypeName[E](), time.Since(start))
	return n
}

// IterQuery returns a single-pass iterator over every entity of type E
// satisfying q, in ascending id order. It always scans rather than
// using an index, since range-over-func callers may stop partway
// through (break) and never look at the rest; call QueryEntityCount or
// SampleEntities first if a predicate's index should be exploited.
func IterQuery[E any](ctx *Context, q Query[E]) iter.Seq[EntityID[E]] {
	return func(yield func(EntityID[E]) bool) {
		n := EntityCount[E](ctx)
		for i := 0; i < n; i++ {
			id := EntityID[E]{id: uint64(i)}
			matched := true
			for _, pred := range q {
				if !pred.matches(ctx, id) {
					matched = false
					break
				}
			}
			if matched && !yield(id) {
				return
			}
		}
	}
}

// SampleEntity draws one entity of type E satisfying q, uniformly at
// random, using the named rng stream. The second return is false if no
// entity matches.
func SampleEntity[E any](ctx *Context, rngID string, q Query[E]) (EntityID[E], bool) {
	start := time.Now()
	ids := matchingIDs(ctx, q)
	ctx.metrics.RecordQuery(ctx, entityTypeName[E](), time.Since(start))
	if len(ids) == 0 {
		var zero EntityID[E]
		return zero, false
	}
	r := ctx.RNG(rngID)
	return EntityID[E]{id: ids[r.IntN(len(ids))]}, true
}

// SampleEntities draws up to k distinct entities of type E satisfying
// q, uniformly at random without replacement, using the named rng
// stream. When q has at least one indexed predicate, candidates come
// straight from the index and sampleIndexed shuffles among them;
// otherwise every matching id is visited once and sampleReservoir
// selects k of them in that single pass.
func SampleEntities[E any](ctx *Context, rngID string, q Query[E], k int) []EntityID[E] {
	r := ctx.RNG(rngID)

	var ids []uint64
	if candidates, ok := candidateIDs(ctx, q); ok {
		ids = sampleIndexed(r, candidates, k)
	} else {
		ids = sampleReservoir(r, iterMatchingIDs(ctx, q), k)
	}

	out := make([]EntityID[E], len(ids))
	for i, id := range ids {
		out[i] = EntityID[E]{id: id}
	}
	return out
}

func iterMatchingIDs[E any](ctx *Context, q Query[E]) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for id := range IterQuery(ctx, q) {
			if !yield(id.id) {
				return
			}
		}
	}
}

// sampleIndexed picks up to k distinct values from ids uniformly at
// random by shuffling a copy and truncating; if k >= len(ids), the
// whole set is returned in shuffled order.
func sampleIndexed(r *rng.Stream, ids []uint64, k int) []uint64 {
	pool := make([]uint64, len(ids))
	copy(pool, ids)
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if k < len(pool) {
		return pool[:k]
	}
	return pool
}

// sampleReservoir implements reservoir-sampling algorithm R over seq,
// selecting up to k items uniformly at random in one pass without
// knowing seq's length ahead of time.
func sampleReservoir(r *rng.Stream, seq iter.Seq[uint64], k int) []uint64 {
	if k <= 0 {
		return nil
	}
	reservoir := make([]uint64, 0, k)
	i := 0
	for v := range seq {
		if i < k {
			reservoir = append(reservoir, v)
		} else if j := r.IntN(i + 1); j < k {
			reservoir[j] = v
		}
		i++
	}
	return reservoir
}
