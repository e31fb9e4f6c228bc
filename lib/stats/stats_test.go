package stats

import (
	"testing"
)

// fixedClock installs a controllable µs clock on the aggregate
func fixedClock(s *ServedStats) *uint64 {
	ts := uint64(1_000_000_000_000)
	s.now = func() uint64 { return ts }
	return &ts
}

// TestFirstSample verifies that a fresh aggregate absorbs its first query
// and reports it through every surface
func TestFirstSample(t *testing.T) {
	s := NewServedStats()
	fixedClock(s)

	s.AddQueryStat(7, 700)

	if got := s.records.length(); got != 1 {
		t.Fatalf("expected one bucket after the first sample, got %d", got)
	}

	rows, times := s.Calculate()
	all := rows.Stats[IntervalAllTime]
	if all.Queries != 1 || all.Data[TypeMin] != 7 || all.Data[TypeMax] != 7 {
		t.Errorf("all-time rows element after one sample: %+v", all)
	}
	if got := times.Stats[IntervalAllTime].Data[TypeAvg]; got != 700 {
		t.Errorf("all-time query-time avg = %d, want 700", got)
	}
}

// TestExactDisabledByDefault verifies that the per-sample container only
// exists when opted into, and that the exact surface degrades to the
// bucketed one without it
func TestExactDisabledByDefault(t *testing.T) {
	s := NewServedStats()
	fixedClock(s)

	if s.exact != nil {
		t.Fatal("exact container allocated without CollectExact")
	}

	s.AddQueryStat(3, 30)
	rows, _ := s.Calculate()
	rowsExact, _ := s.CalculateExact()
	if rows != rowsExact {
		t.Errorf("fallback exact snapshot differs from bucketed one")
	}
}

// TestBucketMerge verifies that samples within 100 ms share one bucket
func TestBucketMerge(t *testing.T) {
	s := NewServedStats()
	ts := fixedClock(s)

	const n = 10
	for i := 0; i < n; i++ {
		s.AddQueryStat(uint64(i+1), uint64(100*(i+1)))
		*ts += 5_000 // 5 ms apart
	}

	if got := s.records.length(); got != 1 {
		t.Fatalf("expected a single bucket, got %d", got)
	}

	rec := s.records.record(0)
	if rec.Count != n {
		t.Errorf("bucket count = %d, want %d", rec.Count, n)
	}
	if rec.FoundRowsSum != n*(n+1)/2 {
		t.Errorf("found-rows sum = %d, want %d", rec.FoundRowsSum, n*(n+1)/2)
	}
	if rec.FoundRowsMin != 1 || rec.FoundRowsMax != n {
		t.Errorf("found-rows min/max = %d/%d", rec.FoundRowsMin, rec.FoundRowsMax)
	}
}

// TestBucketSplit verifies that a gap over 100 ms starts a new bucket
func TestBucketSplit(t *testing.T) {
	s := NewServedStats()
	ts := fixedClock(s)

	s.AddQueryStat(1, 10)
	*ts += 100_000 // exactly at the boundary still merges
	s.AddQueryStat(2, 20)
	if got := s.records.length(); got != 1 {
		t.Fatalf("boundary sample split the bucket: %d buckets", got)
	}

	*ts += 100_001 // past the boundary
	s.AddQueryStat(3, 30)
	if got := s.records.length(); got != 2 {
		t.Fatalf("expected a second bucket, got %d", got)
	}
}

// TestEviction verifies the fifteen-minute window
func TestEviction(t *testing.T) {
	s := NewServedStats()
	ts := fixedClock(s)

	s.AddQueryStat(1, 10)
	*ts += 16 * 60 * 1_000_000 // 16 minutes later
	s.AddQueryStat(2, 20)

	if got := s.records.length(); got != 1 {
		t.Fatalf("stale bucket not evicted: %d buckets", got)
	}
	if rec := s.records.record(0); rec.FoundRowsMin != 2 {
		t.Errorf("surviving bucket holds the wrong sample: %+v", rec)
	}
}

// TestIdenticalSamples verifies that uniform input collapses every metric
func TestIdenticalSamples(t *testing.T) {
	const rowsVal, timeVal = 42, 1234

	s := NewServedStats()
	ts := fixedClock(s)

	for i := 0; i < 100; i++ {
		s.AddQueryStat(rowsVal, timeVal)
		*ts += 200_000 // spread across many buckets
	}

	rows, times := s.Calculate()

	for iv := Interval1Min; iv < IntervalTotal; iv++ {
		for _, metric := range []int{TypeAvg, TypeMin, TypeMax, Type95, Type99} {
			if got := rows.Stats[iv].Data[metric]; got != rowsVal {
				t.Errorf("interval %d rows metric %d = %d, want %d", iv, metric, got, rowsVal)
			}
			if got := times.Stats[iv].Data[metric]; got != timeVal {
				t.Errorf("interval %d time metric %d = %d, want %d", iv, metric, got, timeVal)
			}
		}
	}

	if rows.Stats[IntervalAllTime].Queries != 100 {
		t.Errorf("all-time query count = %d", rows.Stats[IntervalAllTime].Queries)
	}
}

// TestExactMatchesBucketed verifies that the debug container reports the same
// aggregate numbers for single-sample buckets
func TestExactMatchesBucketed(t *testing.T) {
	CollectExact = true
	defer func() { CollectExact = false }()

	s := NewServedStats()
	ts := fixedClock(s)

	if s.exact == nil {
		t.Fatal("CollectExact did not allocate the exact container")
	}

	for i := 1; i <= 5; i++ {
		s.AddQueryStat(uint64(10*i), uint64(100*i))
		*ts += 200_000 // each sample gets its own bucket
	}

	rows, _ := s.Calculate()
	rowsExact, _ := s.CalculateExact()

	for iv := Interval1Min; iv <= Interval15Min; iv++ {
		if rows.Stats[iv] != rowsExact.Stats[iv] {
			t.Errorf("interval %d mismatch:\nbucketed: %+v\nexact:    %+v",
				iv, rows.Stats[iv], rowsExact.Stats[iv])
		}
	}
}

// TestPercentileIndex checks the ⌈p·N⌉−1 clamp
func TestPercentileIndex(t *testing.T) {
	cases := []struct {
		n    int
		p    float64
		want int
	}{
		{1, 0.95, 0},
		{2, 0.95, 1},
		{20, 0.95, 18},
		{100, 0.95, 94},
		{100, 0.99, 98},
		{1, 0.99, 0},
	}
	for _, c := range cases {
		if got := percentileIndex(c.n, c.p); got != c.want {
			t.Errorf("percentileIndex(%d, %v) = %d, want %d", c.n, c.p, got, c.want)
		}
	}
}

// TestRingGrow exercises the circular buffer across a grow boundary
func TestRingGrow(t *testing.T) {
	r := newRing()

	for i := 0; i < 200; i++ {
		rec := r.push()
		rec.Timestamp = uint64(i)
		if i%3 == 0 && r.length() > 1 {
			r.popFront()
		}
	}

	// records must remain in push order, oldest first
	prev := uint64(0)
	for i := 0; i < r.length(); i++ {
		ts := r.at(i).Timestamp
		if i > 0 && ts <= prev {
			t.Fatalf("ring order broken at %d: %d after %d", i, ts, prev)
		}
		prev = ts
	}
}
