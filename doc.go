// Package statedb is a client for the statedb key-value server.
//
// A Connection owns one transport to the server. It sends requests from any
// goroutine and runs a single receive loop that reads responses and hands
// them to the handlers registered for their kind. Storage builds a local
// mirror of the server state on top of those handlers.
//
// # Eventual Consistency
//
// The mirror changes only when the server confirms a write:
//
//	client, _ := statedb.NewClient(statedb.Config{Addr: "localhost:7070"})
//	_ = client.Connect(ctx)
//
//	st := client.Storage()
//	_ = st.Set("answer", 42, wire.AutoSuggest)
//	st.Get("answer") // not there yet
//
//	// later, once the Value response has been dispatched:
//	st.Get("answer") // 42, true
//
// Set skips the request when the mirror already holds an equal value. Assign
// always sends. Delete leaves the key in place until the Deleted response
// arrives.
//
// # Handlers
//
// Handlers run on the receive goroutine, synchronously and in registration
// order. A slow handler delays every later response.
//
//	unregister := conn.Register(wire.ResponseForceLogout, func(*wire.Response) {
//	    log.Println("kicked")
//	})
//	defer unregister()
//
// Responses of unknown kind are drained from the stream and dispatched with
// only Kind and Size set.
//
// # Errors
//
// Error responses carry no key and no request id: they cannot be matched to
// the request that caused them. The default handler logs them.
//
// A transport or decode failure ends the receive loop. It is returned by
// Listen and Wait, and the connection is closed. Nothing reconnects.
//
// # Transports
//
// Config.Dial opens the byte stream. The default dials TCP; WebSocketDialer
// tunnels the same stream over binary WebSocket messages.
package statedb
