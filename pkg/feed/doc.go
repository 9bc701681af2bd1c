// Package feed manages realtime websocket connections to the futures feed.
//
// A Manager turns a topic request into a connection token, a websocket,
// a subscribe frame and a heartbeat, and tears all of it down when the
// socket closes. One connection is kept per topic; several channels can
// share one connection through tunnels.
//
//	m, _ := feed.New(core.DefaultConfig(core.EnvironmentLive))
//	m.Open(ctx, feed.Request{Topic: "ticker", Symbols: []string{"XBTUSDM"}},
//		func() { log.Println("closed") },
//		func(data []byte) { log.Println(string(data)) })
//
// Entry points never return lifecycle failures to the caller; they are
// logged. The unexported variants return typed core.FeedError values.
package feed
