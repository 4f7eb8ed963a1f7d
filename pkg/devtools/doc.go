// Package devtools serves a live view of a reactive runtime over HTTP.
//
// An Inspector is a reactive.Observer. It keeps the most recent events in a
// ring buffer and fans every new event out to connected websocket clients.
// A client that falls behind, or exceeds its WithClientRate limit, loses
// events rather than slowing the runtime down.
//
// Routes:
//
//	GET /ws              websocket stream of events as JSON, starting with the buffered backlog
//	GET /events          buffered events, optionally ?limit=N
//	GET /events/{type}   buffered events of one type, e.g. /events/effect_run
//	GET /stats           arena occupancy of the attached runtime
//
// Example:
//
//	insp := devtools.New(devtools.WithBufferSize(512))
//	rt := reactive.NewRuntime(reactive.WithObserver(insp))
//	insp.Attach(rt)
//
//	r := chi.NewRouter()
//	r.Mount("/_reactive", insp.Handler())
package devtools
