// Package metric computes derived field values over occurrence snapshots
// and transaction history. Values are computed on read and never stored.
package metric

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/domain"
	"github.com/alexanderramin/gridboard/internal/repository"
)

// Value is the result of evaluating a derived field. Defined is false
// when the aggregation has nothing to say — an average of zero entries is
// undefined, never 0. Target, when present, is returned raw; comparison
// against it is the caller's concern.
type Value struct {
	Defined bool                 `json:"defined"`
	Number  float64              `json:"number"`
	Value   any                  `json:"value,omitempty"`
	Count   int                  `json:"count"`
	Target  *domain.MetricTarget `json:"target,omitempty"`
}

// Engine evaluates metrics against a workspace. The transaction
// repository backs source=transactions metrics; occurrence-sourced ones
// read the cache alone.
type Engine struct {
	txs    repository.TransactionRepo
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(txs repository.TransactionRepo, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{txs: txs, logger: logger}
}

// Evaluate computes the field's derived value for the given period key.
// The caller must hold the workspace lock.
func (e *Engine) Evaluate(ctx context.Context, ws *cache.Workspace, f *domain.Field, period string) (Value, error) {
	if f.Mode != domain.FieldDerived || f.Metric == nil {
		return Value{}, fmt.Errorf("field %s is not derived: %w", f.ID, domain.ErrValidation)
	}
	m := f.Metric

	var samples []sample
	switch m.Source {
	case domain.SourceOccurrences:
		samples = occurrenceSamples(ws, m, period)
	case domain.SourceTransactions:
		var err error
		samples, err = e.transactionSamples(ctx, ws, f.GridID, m, period)
		if err != nil {
			return Value{}, err
		}
	default:
		return Value{}, fmt.Errorf("unhandled metric source %q: %w", m.Source, domain.ErrValidation)
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	v := aggregate(samples, m.Aggregation)
	v.Target = m.Target
	return v, nil
}

// sample is one contributing field value, already flow-signed.
type sample struct {
	num     float64
	numeric bool
	val     any
	truthy  bool
	at      time.Time
}

func occurrenceSamples(ws *cache.Workspace, m *domain.Metric, period string) []sample {
	var out []sample
	for _, o := range ws.Occurrences {
		if !inScope(ws, o, m) || !inWindow(o, m.TimeFilter, period) {
			continue
		}
		for fieldID, fv := range o.Fields {
			filter, allowed := effectiveFilter(m, fieldID)
			if !allowed {
				continue
			}
			if s, ok := makeSample(fv, filter, o.CreatedAt); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// transactionSamples reads measure operations out of the applied
// transaction history — point-in-time, flow-tagged values rather than
// current snapshots. Undone transactions contribute nothing.
func (e *Engine) transactionSamples(ctx context.Context, ws *cache.Workspace, gridID string,
	m *domain.Metric, period string) ([]sample, error) {

	txs, err := e.txs.ListByGrid(ctx, gridID, false)
	if err != nil {
		return nil, fmt.Errorf("loading transaction history: %w", err)
	}

	var out []sample
	for _, tx := range txs {
		for _, op := range tx.Operations {
			measure, ok := op.(*domain.MeasureOp)
			if !ok || measure.Value == nil {
				continue
			}
			filter, allowed := effectiveFilter(m, measure.FieldID)
			if !allowed {
				continue
			}
			o, ok := ws.Occurrences[measure.OccurrenceID]
			if !ok {
				// Occurrence since deleted; its history no longer has a
				// scope to attribute to.
				continue
			}
			if !inScope(ws, o, m) || !inWindow(o, m.TimeFilter, period) {
				continue
			}
			fv := *measure.Value
			if fv.Flow == "" {
				fv.Flow = measure.Flow
			}
			if s, ok := makeSample(fv, filter, tx.CreatedAt); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// makeSample applies the flow filter and signs the numeric value. Under
// "any" an out-flow value subtracts; under a strict filter only matching
// flows contribute, positively.
func makeSample(fv domain.FieldValue, filter domain.FlowFilter, at time.Time) (sample, bool) {
	switch filter {
	case domain.FlowFilterIn:
		if fv.Flow == domain.FlowOut {
			return sample{}, false
		}
	case domain.FlowFilterOut:
		if fv.Flow != domain.FlowOut {
			return sample{}, false
		}
	}

	s := sample{val: fv.Value, truthy: fv.Bool(), at: at}
	if n, ok := fv.Number(); ok {
		s.num, s.numeric = n, true
		if (filter == "" || filter == domain.FlowFilterAny) && fv.Flow == domain.FlowOut {
			s.num = -s.num
		}
	}
	return s, true
}

// effectiveFilter resolves the flow filter for one contributing field: a
// per-field override on AllowedFields wins over the metric-level filter.
// An empty AllowedFields list admits every field.
func effectiveFilter(m *domain.Metric, fieldID string) (domain.FlowFilter, bool) {
	if len(m.AllowedFields) == 0 {
		return m.FlowFilter, true
	}
	for _, af := range m.AllowedFields {
		if af.FieldID == fieldID {
			if af.FlowFilter != "" {
				return af.FlowFilter, true
			}
			return m.FlowFilter, true
		}
	}
	return "", false
}

// inScope walks the occurrence's ancestor chain upward until it hits the
// metric's scope entity or the grid root.
func inScope(ws *cache.Workspace, o *domain.Occurrence, m *domain.Metric) bool {
	if m.Scope == domain.ScopeGrid {
		gid, err := ws.GridOf(o.Parent.Kind, o.Parent.ID)
		return err == nil && gid == m.ScopeID
	}

	want := domain.ParentRef{Kind: domain.EntityKind(m.Scope), ID: m.ScopeID}
	ref := o.Parent
	seen := make(map[domain.ParentRef]bool)
	for {
		if ref == want {
			return true
		}
		if ref.Kind == domain.KindGrid || seen[ref] {
			return false
		}
		seen[ref] = true
		parent, ok := placementOf(ws, ref)
		if !ok {
			return false
		}
		ref = parent
	}
}

// placementOf finds where the entity itself is placed, via any occurrence
// targeting it.
func placementOf(ws *cache.Workspace, ref domain.ParentRef) (domain.ParentRef, bool) {
	for _, o := range ws.Occurrences {
		if o.TargetType == ref.Kind && o.TargetID == ref.ID {
			return o.Parent, true
		}
	}
	return domain.ParentRef{}, false
}

// inWindow reports whether the occurrence contributes for the period key.
// Keys are compared, never parsed: the caller supplies the same
// representation stored on iteration.timeValue.
func inWindow(o *domain.Occurrence, filter domain.TimeFilter, period string) bool {
	if filter == domain.FilterAll || filter == "" {
		return true
	}
	switch o.Iteration.Mode {
	case domain.IterSpecific:
		return o.Iteration.TimeValue == period
	default:
		// Persistent and untilDone occurrences exist on every period.
		return true
	}
}

func aggregate(samples []sample, agg domain.Aggregation) Value {
	switch agg {
	case domain.AggSum:
		v := Value{Defined: true}
		for _, s := range samples {
			if s.numeric {
				v.Number += s.num
				v.Count++
			}
		}
		return v

	case domain.AggCount:
		return Value{Defined: true, Number: float64(len(samples)), Count: len(samples)}

	case domain.AggCountTrue:
		v := Value{Defined: true}
		for _, s := range samples {
			if s.truthy {
				v.Count++
			}
		}
		v.Number = float64(v.Count)
		return v

	case domain.AggAvg:
		var sum float64
		var n int
		for _, s := range samples {
			if s.numeric {
				sum += s.num
				n++
			}
		}
		if n == 0 {
			return Value{}
		}
		return Value{Defined: true, Number: sum / float64(n), Count: n}

	case domain.AggFirst:
		if len(samples) == 0 {
			return Value{}
		}
		s := samples[0]
		return Value{Defined: true, Number: s.num, Value: s.val, Count: len(samples)}

	case domain.AggLast:
		if len(samples) == 0 {
			return Value{}
		}
		s := samples[len(samples)-1]
		return Value{Defined: true, Number: s.num, Value: s.val, Count: len(samples)}

	default:
		return Value{}
	}
}
