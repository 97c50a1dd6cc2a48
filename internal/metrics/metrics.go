// Package metrics counts executed statements by SQL verb.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// StatementCounter is an orm.Logger that increments
// tptmap_statements_total{verb} for every statement it sees.
type StatementCounter struct {
	total *prometheus.CounterVec
}

// NewStatementCounter creates the counter vector and registers it on reg.
func NewStatementCounter(reg prometheus.Registerer) (*StatementCounter, error) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tptmap",
		Name:      "statements_total",
		Help:      "Statements executed, by SQL verb.",
	}, []string{"verb"})
	if err := reg.Register(total); err != nil {
		return nil, fmt.Errorf("metrics: register: %w", err)
	}
	return &StatementCounter{total: total}, nil
}

func (c *StatementCounter) Log(_ context.Context, query string, _ ...any) {
	c.total.WithLabelValues(Verb(query)).Inc()
}

// Total returns the number of statements counted for verb.
func (c *StatementCounter) Total(verb string) float64 {
	var m dto.Metric
	if err := c.total.WithLabelValues(verb).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Verb returns the upper-cased first word of query, or "OTHER" for an
// empty statement.
func Verb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OTHER"
	}
	return strings.ToUpper(fields[0])
}
