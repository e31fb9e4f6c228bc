package server

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/ftsd/lib/index"
)

// TestBuildStatus checks the status table with and without index rows
func TestBuildStatus(t *testing.T) {
	registry := index.NewGuardedHash()
	defer registry.ReleaseAndClear()

	posts := index.NewServedIndex(index.ServedDesc{Type: index.TypeRT, IndexPath: "/data/posts"})
	posts.AddQueryStat(10, 1500)
	posts.AddQueryStat(20, 2500)
	registry.AddUniq(posts, "posts")
	posts.Release()

	a := NewSearchdAdapter(registry, "1.0.0")

	rows := a.buildStatus(false, "")
	table := map[string]string{}
	for i := 0; i+1 < len(rows); i += 2 {
		table[rows[i]] = rows[i+1]
	}

	if table["version"] != "1.0.0" {
		t.Errorf("version = %q", table["version"])
	}
	if table["indexes"] != "1" {
		t.Errorf("indexes = %q", table["indexes"])
	}
	if _, ok := table["mac"]; !ok {
		t.Error("mac row missing from status table")
	}
	if table["index_posts_queries"] != "2" {
		t.Errorf("index_posts_queries = %q", table["index_posts_queries"])
	}
	if table["index_posts_query_time_avg_us"] != "2000" {
		t.Errorf("index_posts_query_time_avg_us = %q", table["index_posts_query_time_avg_us"])
	}

	// global-only view drops the per-index rows
	for i, s := range a.buildStatus(true, "") {
		if i%2 == 0 && s == "index_posts_queries" {
			t.Error("global-only status leaked index rows")
		}
	}

	// the LIKE filter narrows the table ('_' itself is a wildcard)
	filtered := a.buildStatus(false, "index%")
	for i := 0; i < len(filtered); i += 2 {
		if !strings.HasPrefix(filtered[i], "index") {
			t.Errorf("filter leaked row %q", filtered[i])
		}
	}
	if len(filtered) == 0 {
		t.Error("filter dropped everything")
	}
}
