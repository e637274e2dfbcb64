// mcpfn - Serverless MCP JSON-RPC engine
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package session

import "context"

// scope is the active session of one invocation. It only ever lives inside
// a request's context.Context, so it is gone once the invocation returns and
// a reused process cannot observe a previous caller's session.
type scope struct {
	id    string
	store Store
}

type scopeKey struct{}

// WithScope returns a child context in which id is the active session,
// backed by store. An empty id leaves no active session.
func WithScope(ctx context.Context, id string, store Store) context.Context {
	if id == "" || store == nil {
		return context.WithValue(ctx, scopeKey{}, (*scope)(nil))
	}
	return context.WithValue(ctx, scopeKey{}, &scope{id: id, store: store})
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	return sc
}

// IDFromContext returns the active session identifier.
func IDFromContext(ctx context.Context) (string, bool) {
	sc := scopeFrom(ctx)
	if sc == nil {
		return "", false
	}
	return sc.id, true
}

// Get returns the active session's data. It reports false when there is no
// active session or the store no longer has it.
func Get(ctx context.Context) (*Data, bool) {
	sc := scopeFrom(ctx)
	if sc == nil {
		return nil, false
	}
	return sc.store.Get(ctx, sc.id)
}

// Set replaces the active session's data with values.
func Set(ctx context.Context, values map[string]any) bool {
	return Update(ctx, func(d *Data) { d.Replace(values) })
}

// Update applies mutate to the active session's data.
func Update(ctx context.Context, mutate func(*Data)) bool {
	sc := scopeFrom(ctx)
	if sc == nil {
		return false
	}
	return sc.store.Update(ctx, sc.id, mutate)
}
