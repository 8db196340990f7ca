package metrics

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// MethodTracer traces a single method call. All methods are safe to call on a
// nil tracer.
type MethodTracer struct {
	txn *newrelic.Transaction
	seg *newrelic.Segment

	// ownsTxn is set when the tracer started txn itself, and must end it.
	ownsTxn bool
}

// TraceMethodCall traces a method call as a segment of the New Relic
// transaction in ctx. Without a transaction, but with an application attached
// by WithApplication, the call is traced as a transaction of its own. It
// returns nil when ctx carries neither.
func TraceMethodCall(ctx context.Context, structOrPackageName, methodName string) *MethodTracer {
	name := structOrPackageName + " " + methodName

	if txn := newrelic.FromContext(ctx); txn != nil {
		return &MethodTracer{txn: txn, seg: txn.StartSegment(name)}
	}
	if app, ok := applicationFromContext(ctx); ok {
		if txn := app.StartTransaction(name); txn != nil {
			return &MethodTracer{txn: txn, ownsTxn: true}
		}
	}
	return nil
}

// AddAttribute adds a key-value pair to the trace.
func (t *MethodTracer) AddAttribute(key string, value interface{}) {
	switch {
	case t == nil:
	case t.seg != nil:
		t.seg.AddAttribute(key, value)
	default:
		t.txn.AddAttribute(key, value)
	}
}

func (t *MethodTracer) AddAttributes(attributes map[string]interface{}) {
	for key, value := range attributes {
		t.AddAttribute(key, value)
	}
}

// OnError notices err on the transaction.
func (t *MethodTracer) OnError(err error) {
	if t == nil || err == nil {
		return
	}
	t.txn.NoticeError(err)
}

// End completes the trace.
func (t *MethodTracer) End() {
	if t == nil {
		return
	}
	if t.seg != nil {
		t.seg.End()
	}
	if t.ownsTxn {
		t.txn.End()
	}
}
