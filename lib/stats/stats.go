// Package stats collects per-index query telemetry: found-row counts and
// query latencies. Samples are folded into 100 ms buckets kept for a
// fifteen-minute sliding window, while a pair of t-digests plus running
// min/max/sum totals answer all-time percentile queries in bounded memory.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Reporting intervals
const (
	Interval1Min = iota
	Interval5Min
	Interval15Min
	IntervalAllTime

	IntervalTotal
)

// Metrics reported per interval
const (
	TypeAvg = iota
	TypeMin
	TypeMax
	Type95
	Type99

	TypeTotal
)

const (
	// samples within this distance of the newest bucket are merged into it
	bucketTimeDelta = 100_000 // µs

	// buckets older than this (relative to the newest sample) are evicted
	maxTimeDelta = 15 * 60 * 1_000_000 // µs
)

var intervals = [...]uint64{
	1 * 60 * 1_000_000,
	5 * 60 * 1_000_000,
	15 * 60 * 1_000_000,
}

// Element carries the computed metrics for one interval
type Element struct {
	Data    [TypeTotal]uint64
	Queries uint64
}

// Snapshot carries one Element per reporting interval
type Snapshot struct {
	Stats [IntervalTotal]Element
}

// Record is one bucket of merged samples
type Record struct {
	QueryTimeMin uint64
	QueryTimeMax uint64
	QueryTimeSum uint64

	FoundRowsMin uint64
	FoundRowsMax uint64
	FoundRowsSum uint64

	Timestamp uint64 // µs since epoch
	Count     int
}

// --------------------------------------------------------------------------
// Bucket containers
// --------------------------------------------------------------------------

// container is the shared shape of the bucketed and the exact stores
type container interface {
	add(foundRows, queryTime, timestamp uint64)
	record(i int) Record
	length() int
}

// ring is a grow-on-demand circular buffer of records; pushes go to the
// newest end, eviction pops from the oldest end
type ring struct {
	buf   []Record
	head  int // index of the oldest record
	count int
}

const initialRingSize = 64

func newRing() *ring {
	return &ring{buf: make([]Record, initialRingSize)}
}

func (r *ring) length() int { return r.count }

func (r *ring) at(i int) *Record {
	return &r.buf[(r.head+i)%len(r.buf)]
}

func (r *ring) last() *Record {
	return r.at(r.count - 1)
}

// push appends a zeroed record at the newest end and returns it
func (r *ring) push() *Record {
	if len(r.buf) == 0 {
		r.buf = make([]Record, initialRingSize)
	}
	if r.count == len(r.buf) {
		grown := make([]Record, 2*len(r.buf))
		for i := 0; i < r.count; i++ {
			grown[i] = *r.at(i)
		}
		r.buf = grown
		r.head = 0
	}

	idx := (r.head + r.count) % len(r.buf)
	r.count++
	r.buf[idx] = Record{}
	return &r.buf[idx]
}

// popFront evicts the oldest record
func (r *ring) popFront() {
	r.head = (r.head + 1) % len(r.buf)
	r.count--
}

// bucketed merges samples arriving within bucketTimeDelta of the newest
// bucket; older samples start a fresh bucket after evicting the expired tail
type bucketed struct {
	ring
}

func (b *bucketed) add(foundRows, queryTime, timestamp uint64) {
	if b.count > 0 {
		last := b.last()
		if timestamp-last.Timestamp <= bucketTimeDelta {
			last.FoundRowsMin = min(foundRows, last.FoundRowsMin)
			last.FoundRowsMax = max(foundRows, last.FoundRowsMax)
			last.FoundRowsSum += foundRows

			last.QueryTimeMin = min(queryTime, last.QueryTimeMin)
			last.QueryTimeMax = max(queryTime, last.QueryTimeMax)
			last.QueryTimeSum += queryTime

			last.Count++
			return
		}
	}

	for b.count > 0 && timestamp-b.at(0).Timestamp > maxTimeDelta {
		b.popFront()
	}

	rec := b.push()
	rec.FoundRowsMin = foundRows
	rec.FoundRowsMax = foundRows
	rec.FoundRowsSum = foundRows

	rec.QueryTimeMin = queryTime
	rec.QueryTimeMax = queryTime
	rec.QueryTimeSum = queryTime

	rec.Timestamp = timestamp
	rec.Count = 1
}

func (b *bucketed) record(i int) Record { return *b.at(i) }

// exact keeps one record per sample with the same retention; it backs the
// debug verification path only
type exact struct {
	ring
}

func (e *exact) add(foundRows, queryTime, timestamp uint64) {
	for e.count > 0 && timestamp-e.at(0).Timestamp > maxTimeDelta {
		e.popFront()
	}

	rec := e.push()
	rec.FoundRowsMin = foundRows
	rec.FoundRowsMax = foundRows
	rec.FoundRowsSum = foundRows
	rec.QueryTimeMin = queryTime
	rec.QueryTimeMax = queryTime
	rec.QueryTimeSum = queryTime
	rec.Timestamp = timestamp
	rec.Count = 1
}

func (e *exact) record(i int) Record { return *e.at(i) }

// --------------------------------------------------------------------------
// ServedStats
// --------------------------------------------------------------------------

// ServedStats is the per-index statistics aggregate. Add holds the write
// lock; all reporting runs under the read lock.
type ServedStats struct {
	mu sync.RWMutex

	records bucketed

	// per-sample verification container, nil unless CollectExact was set
	// when the aggregate was created
	exact *exact

	queryTimeDigest *tdigest.TDigest
	foundRowsDigest *tdigest.TDigest

	totalFoundRowsMin uint64
	totalFoundRowsMax uint64
	totalFoundRowsSum uint64

	totalQueryTimeMin uint64
	totalQueryTimeMax uint64
	totalQueryTimeSum uint64

	totalQueries uint64

	// µs clock, swappable in tests
	now func() uint64
}

// CollectExact enables the per-sample verification container on aggregates
// created afterwards. It keeps one record per query over the whole retention
// window, so it stays off outside debugging; the merged buckets are the
// production store.
var CollectExact = false

// NewServedStats creates an empty aggregate
func NewServedStats() *ServedStats {
	s := &ServedStats{
		records:           bucketed{ring: *newRing()},
		queryTimeDigest:   tdigest.New(),
		foundRowsDigest:   tdigest.New(),
		totalFoundRowsMin: math.MaxUint64,
		totalQueryTimeMin: math.MaxUint64,
		now:               func() uint64 { return uint64(time.Now().UnixMicro()) },
	}
	if CollectExact {
		s.exact = &exact{ring: *newRing()}
	}
	return s
}

// AddQueryStat records one executed query
func (s *ServedStats) AddQueryStat(foundRows, queryTime uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.foundRowsDigest.Add(float64(foundRows), 1)
	s.queryTimeDigest.Add(float64(queryTime), 1)

	ts := s.now()
	s.records.add(foundRows, queryTime, ts)
	if s.exact != nil {
		s.exact.add(foundRows, queryTime, ts)
	}

	s.totalFoundRowsMin = min(foundRows, s.totalFoundRowsMin)
	s.totalFoundRowsMax = max(foundRows, s.totalFoundRowsMax)
	s.totalFoundRowsSum += foundRows

	s.totalQueryTimeMin = min(queryTime, s.totalQueryTimeMin)
	s.totalQueryTimeMax = max(queryTime, s.totalQueryTimeMax)
	s.totalQueryTimeSum += queryTime

	s.totalQueries++
}

// Calculate builds found-rows and query-time snapshots from the bucketed
// window plus the all-time totals and digests
func (s *ServedStats) Calculate() (foundRows, queryTime Snapshot) {
	return s.calculate(&s.records)
}

// CalculateExact is the debug variant computing the bounded intervals from
// the per-sample container instead of the merged buckets. Without
// CollectExact it falls back to the bucketed store.
func (s *ServedStats) CalculateExact() (foundRows, queryTime Snapshot) {
	if s.exact == nil {
		return s.calculate(&s.records)
	}
	return s.calculate(s.exact)
}

func (s *ServedStats) calculate(c container) (foundRows, queryTime Snapshot) {
	ts := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := Interval1Min; i <= Interval15Min; i++ {
		calcInterval(c, &foundRows.Stats[i], &queryTime.Stats[i], ts, intervals[i])
	}

	rowsAll := &foundRows.Stats[IntervalAllTime]
	rowsAll.Data[TypeAvg] = safeDiv(s.totalFoundRowsSum, s.totalQueries)
	rowsAll.Data[TypeMin] = s.totalFoundRowsMin
	rowsAll.Data[TypeMax] = s.totalFoundRowsMax
	rowsAll.Data[Type95] = uint64(s.foundRowsDigest.Quantile(0.95))
	rowsAll.Data[Type99] = uint64(s.foundRowsDigest.Quantile(0.99))
	rowsAll.Queries = s.totalQueries

	timeAll := &queryTime.Stats[IntervalAllTime]
	timeAll.Data[TypeAvg] = safeDiv(s.totalQueryTimeSum, s.totalQueries)
	timeAll.Data[TypeMin] = s.totalQueryTimeMin
	timeAll.Data[TypeMax] = s.totalQueryTimeMax
	timeAll.Data[Type95] = uint64(s.queryTimeDigest.Quantile(0.95))
	timeAll.Data[Type99] = uint64(s.queryTimeDigest.Quantile(0.99))
	timeAll.Queries = s.totalQueries

	return foundRows, queryTime
}

// calcInterval aggregates the buckets falling inside one bounded interval.
// Percentiles over a bounded interval index into the sorted list of
// per-bucket averages.
func calcInterval(c container, rows, times *Element, timestamp, interval uint64) {
	rows.Data[TypeMin] = math.MaxUint64
	times.Data[TypeMin] = math.MaxUint64

	var found, elapsed []uint64
	var queries uint64

	for i := 0; i < c.length(); i++ {
		rec := c.record(i)
		if timestamp-rec.Timestamp > interval {
			continue
		}

		rows.Data[TypeMin] = min(rec.FoundRowsMin, rows.Data[TypeMin])
		rows.Data[TypeMax] = max(rec.FoundRowsMax, rows.Data[TypeMax])

		times.Data[TypeMin] = min(rec.QueryTimeMin, times.Data[TypeMin])
		times.Data[TypeMax] = max(rec.QueryTimeMax, times.Data[TypeMax])

		found = append(found, rec.FoundRowsSum/uint64(rec.Count))
		elapsed = append(elapsed, rec.QueryTimeSum/uint64(rec.Count))

		rows.Data[TypeAvg] += rec.FoundRowsSum
		times.Data[TypeAvg] += rec.QueryTimeSum
		queries += uint64(rec.Count)
	}

	rows.Queries = queries
	times.Queries = queries

	if len(found) == 0 {
		return
	}

	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i] < elapsed[j] })

	rows.Data[TypeAvg] /= queries
	times.Data[TypeAvg] /= queries

	i95 := percentileIndex(len(found), 0.95)
	i99 := percentileIndex(len(found), 0.99)

	rows.Data[Type95] = found[i95]
	rows.Data[Type99] = found[i99]

	times.Data[Type95] = elapsed[i95]
	times.Data[Type99] = elapsed[i99]
}

// percentileIndex maps ⌈p·N⌉−1 into [0, N−1]
func percentileIndex(n int, p float64) int {
	idx := int(math.Ceil(float64(n)*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

func safeDiv(sum, count uint64) uint64 {
	if count == 0 {
		return 0
	}
	return sum / count
}
