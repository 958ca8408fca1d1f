// Package wire defines the request/reply types that flow through the
// scheduler and partition workers, plus the binary codec for the
// ClientMessage/ReplyMessage wire shapes.
//
// ClientMessage is the in-process unit of work admitted by the scheduler;
// it doubles as the internal SYNC control message, which is never produced
// by clients — it carries a *sync2.Barrier handle instead of wire bytes,
// and is never encoded. The fixed-width header plus size-prefixed args
// body uses a binary framing rather than JSON, since the wire protocol
// specifies a fixed-width header.
package wire
