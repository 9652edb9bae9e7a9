package trace

import "context"

// Span is an open begin/end pair. Methods on a nil Span do nothing, so
// callers never check whether the scope was recorded.
type Span struct {
	tracer Tracer
	id     uint64
	parent uint64
	scope  Scope
	name   string
	extra  map[string]string
}

// Start opens a span below the innermost recorded span of ctx. The returned
// context carries the new span; when scope is filtered out by the tracer's
// level it is ctx itself, so nested spans attach to the nearest recorded
// ancestor.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return ctx, nil
	}
	s := &Span{
		tracer: t,
		id:     spanCounter.Add(1),
		parent: parentID(ctx),
		scope:  scope,
		name:   name,
	}
	t.Emit(stamp(&Event{Kind: KindSpanBegin, Scope: scope, SpanID: s.id, ParentID: s.parent, Name: name}))
	return context.WithValue(ctx, spanKey{}, s), s
}

// Annotate attaches key=value to the end event.
func (s *Span) Annotate(key, value string) *Span {
	if s == nil {
		return nil
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// End closes the span with an optional detail such as "ok" or "cancelled".
func (s *Span) End(detail string) {
	if s == nil {
		return
	}
	s.tracer.Emit(stamp(&Event{
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	}))
}

// Point records an instant event inside the current span of ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(stamp(&Event{Kind: KindPoint, Scope: scope, ParentID: parentID(ctx), Name: name, Detail: detail}))
}
