package metrics_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mickamy/tptmap/internal/metrics"
)

func TestVerb(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"SELECT 1", "SELECT"},
		{"  insert INTO t VALUES (?)", "INSERT"},
		{"\nUPDATE t SET x = ?", "UPDATE"},
		{"", "OTHER"},
	}
	for _, tt := range tests {
		if got := metrics.Verb(tt.query); got != tt.want {
			t.Errorf("Verb(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestStatementCounter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	c, err := metrics.NewStatementCounter(reg)
	if err != nil {
		t.Fatalf("NewStatementCounter: %v", err)
	}

	ctx := context.Background()
	c.Log(ctx, "SELECT * FROM animals")
	c.Log(ctx, "select 1")
	c.Log(ctx, "INSERT INTO plants (name) VALUES (?)", "grass")

	if got := c.Total("SELECT"); got != 2 {
		t.Errorf("Total(SELECT) = %v, want 2", got)
	}
	if got := c.Total("DELETE"); got != 0 {
		t.Errorf("Total(DELETE) = %v, want 0", got)
	}

	want := `
# HELP tptmap_statements_total Statements executed, by SQL verb.
# TYPE tptmap_statements_total counter
tptmap_statements_total{verb="DELETE"} 0
tptmap_statements_total{verb="INSERT"} 1
tptmap_statements_total{verb="SELECT"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "tptmap_statements_total"); err != nil {
		t.Errorf("GatherAndCompare: %v", err)
	}
}

func TestStatementCounterDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := metrics.NewStatementCounter(reg); err != nil {
		t.Fatalf("first NewStatementCounter: %v", err)
	}
	if _, err := metrics.NewStatementCounter(reg); err == nil {
		t.Error("expected error registering twice, got nil")
	}
}
