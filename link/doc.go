// Package link implements the host end of the framed command/response
// protocol.
//
// A [Client] issues one request at a time and returns the correlated reply:
//
//	cfg, err := link.NewClientConfig(transport.SerialDialer{Port: "/dev/ttyUSB0", Baud: 9600})
//	client, err := link.NewClient(cfg)
//	err = client.Open(ctx)
//	reply, err := client.Call(ctx, "R", "-90")
//
// Each call is driven by a [PendingRequest], a value-typed state machine
// (BUILD, SEND, WAIT, MATCH, HANDLE, RETRY, DONE, FAIL) that owns the
// per-attempt deadline and its exponential backoff. A NACK with reason
// BAD_CS is resent at once with the same sequence and without consuming a
// retry. Any other NACK fails the call with a [*SemanticError]; running
// out of attempts fails it with a [*TimeoutError].
//
// Around the calls, the client tracks [LinkState]. An exhausted call
// degrades the link, which reopens the transport and probes the device with
// a PING. When the reopen procedure keeps failing the link goes DOWN and
// every call fails with [ErrLinkDown] until [Client.Reconnect].
package link
