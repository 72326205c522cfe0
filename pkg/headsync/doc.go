// Package headsync keeps a shared document head in step with the tags
// declared by many independent components.
//
// A Manager owns a contribution registry, a rule table and a surface.
// Components register their declarations, update them as they re-render
// and unregister on unmount; every mutation leads to a reconciliation and
// an Apply on the surface.
//
//	m, err := headsync.New(headsync.WithDefer(false))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	id, err := m.Register(registry.Tags{
//	    headtag.TypeLink: {headtag.Link(headtag.A{"rel": headtag.S("canonical"), "href": headtag.S("/")})},
//	})
//
// # Scheduling
//
// In synchronous mode each mutation applies inline and returns the surface
// error. In deferred mode, the default, a mutation only schedules a flush on
// a Dispatcher; mutations arriving before it runs are coalesced into that one
// flush, which reads the registry state at run time. Without an explicit
// Dispatcher the Manager runs its own EventLoop.
package headsync
