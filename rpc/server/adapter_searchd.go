package server

import (
	"fmt"
	"sync/atomic"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/ValentinKolb/ftsd/lib/index"
	"github.com/ValentinKolb/ftsd/lib/like"
	"github.com/ValentinKolb/ftsd/lib/platform"
	"github.com/ValentinKolb/ftsd/lib/stats"
	"github.com/ValentinKolb/ftsd/lib/wirebuf"
	"github.com/ValentinKolb/ftsd/rpc/api"
)

// --------------------------------------------------------------------------
// Adapter
// --------------------------------------------------------------------------

// SearchdAdapter adapts the served-index registry to the ICommandHandler
// interface: it serves the daemon-level commands (status, flushattrs) itself
// and reports everything engine-bound as unsupported until an engine handler
// is layered on top.
type SearchdAdapter struct {
	registry *index.GuardedHash
	version  string
	mac      string
	started  time.Time

	flushTag atomic.Uint64
}

// NewSearchdAdapter creates the daemon command handler
func NewSearchdAdapter(registry *index.GuardedHash, version string) *SearchdAdapter {
	return &SearchdAdapter{
		registry: registry,
		version:  version,
		mac:      platform.MACAddress(),
		started:  time.Now(),
	}
}

// HandleCommand implements ICommandHandler
func (a *SearchdAdapter) HandleCommand(client *ClientConn, cmd api.Command, ver uint16,
	in *wirebuf.NetInputBuffer, out *wirebuf.NetOutputBuffer) {

	switch cmd {
	case api.CommandStatus:
		a.handleStatus(in, out)
	case api.CommandFlushAttrs:
		a.handleFlushAttrs(out)
	default:
		api.SendErrorReply(&out.CachedOutputBuffer, "command %s is not supported", cmd)
	}
}

// --------------------------------------------------------------------------
// status
// --------------------------------------------------------------------------

// handleStatus builds the (name, value) status table. The request body
// carries one dword selecting daemon-wide or per-index rows.
func (a *SearchdAdapter) handleStatus(in *wirebuf.NetInputBuffer, out *wirebuf.NetOutputBuffer) {
	globalOnly := in.GetDword() != 0

	rows := a.buildStatus(globalOnly, "")

	out.SendWord(uint16(api.StatusOK))
	out.SendWord(api.VerCommandStatus)
	token := out.StartMeasureLength()

	out.SendDword(uint32(len(rows) / 2))
	out.SendDword(2)
	for _, s := range rows {
		out.SendString(s)
	}
	out.CommitMeasuredLength(token)
}

// buildStatus collects status rows as a flat (name, value, name, value, ...)
// list, optionally filtered by a LIKE pattern (the SQL surface passes one)
func (a *SearchdAdapter) buildStatus(globalOnly bool, pattern string) []string {
	matcher := like.NewMatcher(pattern)
	var rows []string

	add := func(name, format string, args ...interface{}) {
		if matcher.Match(name) {
			rows = append(rows, name, fmt.Sprintf(format, args...))
		}
	}

	add("version", "%s", a.version)
	add("mac", "%s", a.mac)
	add("uptime", "%d", int64(time.Since(a.started).Seconds()))
	add("connections", "%d", gometrics.GetOrRegisterMeter("ftsd.connections", nil).Count())
	add("commands", "%d", commandCounterTotal())
	add("indexes", "%d", a.registry.Len())

	if globalOnly {
		return rows
	}

	it := a.registry.RIter()
	defer it.Close()

	for it.Next() {
		served, ok := it.Value().(*index.ServedIndex)
		if !ok || served == nil {
			continue
		}

		foundRows, queryTimes := served.Calculate()
		all := foundRows.Stats[stats.IntervalAllTime]
		times := queryTimes.Stats[stats.IntervalAllTime]

		prefix := "index_" + it.Key()
		add(prefix+"_queries", "%d", all.Queries)
		add(prefix+"_found_rows_avg", "%d", all.Data[stats.TypeAvg])
		add(prefix+"_query_time_avg_us", "%d", times.Data[stats.TypeAvg])
		add(prefix+"_query_time_max_us", "%d", times.Data[stats.TypeMax])
	}

	return rows
}

// commandCounterTotal sums the per-command counters the connection plane
// increments
func commandCounterTotal() uint64 {
	var total uint64
	for cmd := api.Command(0); cmd < api.CommandTotal; cmd++ {
		total += vmetrics.GetOrCreateCounter(
			fmt.Sprintf(`ftsd_api_commands_total{command=%q}`, cmd.String())).Get()
	}
	return total
}

// --------------------------------------------------------------------------
// flushattrs
// --------------------------------------------------------------------------

// handleFlushAttrs acknowledges an attribute flush with a monotonically
// increasing tag so clients can poll for completion
func (a *SearchdAdapter) handleFlushAttrs(out *wirebuf.NetOutputBuffer) {
	tag := a.flushTag.Add(1)

	out.SendWord(uint16(api.StatusOK))
	out.SendWord(api.VerCommandFlushAttrs)
	token := out.StartMeasureLength()
	out.SendDword(uint32(tag))
	out.CommitMeasuredLength(token)
}
