// Package inspector is a client for the WebKit/Chrome remote debugging protocol.
//
// A Session owns one WebSocket connection to a page target. It correlates
// RPC calls with their replies, keeps a registry of the scripts the page has
// parsed, and formats console notifications with locations translated through
// source maps found under the local project root.
//
// # Architecture
//
//	inbound frame ─▶ cdp.Router ─┬─▶ scripts.Registry      (Debugger.scriptParsed)
//	                             ├─▶ console.Formatter     (Console.messageAdded)
//	                             └─▶ cdp.Correlator        (replies)
//
//	Session.Call ─▶ cdp.Correlator ─▶ cdp.Transport
//
// Frames are handled one at a time, in arrival order, on the session's receive
// goroutine. Callbacks passed to Call run on that goroutine.
//
// # Usage
//
//	s := inspector.NewSession(inspector.Config{
//	    Host:        "127.0.0.1",
//	    Port:        9222,
//	    ProjectRoot: "./public",
//	})
//	s.SetHandlers(inspector.Handlers{
//	    OnConsole: func(l console.Line) { fmt.Println(l.Text) },
//	})
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	s.Evaluate(ctx, "document.title", func(r cdp.EvaluateResult, err error) { ... })
//
// # Subpackages
//
//   - cdp: wire envelopes, correlator, router, WebSocket transport
//   - discovery: /json target listing
//   - scripts: parsed script registry
//   - sourcemap: lazy source-map resolution and position queries
//   - console: console line formatting
package inspector
