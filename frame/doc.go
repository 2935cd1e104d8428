// Package frame implements the wire framing used between a host and a remote
// device over a byte-oriented, half-duplex serial channel.
//
// # Wire Format
//
// Every message, in either direction, is a single ASCII frame:
//
//	^<SEQ>|<CMD>|<PAYLOAD>*<CS>$
//
// The fields are:
//
//   - SEQ is the 8-bit sequence number rendered as two uppercase hex digits.
//   - CMD is a short command token (PING, V, ACK, NACK, ...).
//   - PAYLOAD is free ASCII text and may be empty.
//   - CS is the 8-bit XOR of every byte strictly between '^' and '*',
//     rendered as two uppercase hex digits.
//
// For example, sequence 1 carrying PING with an empty payload is encoded as
// "^01|PING|*11$".
//
// # Components
//
// The package provides three building blocks shared by both ends of a link:
//
//   - [Encode] and [Decode], the pure frame codec.
//   - [SeqAllocator], the wrapping sequence number source.
//   - [Reassembler], a restartable fold turning an arbitrary byte stream into
//     candidate frame spans.
//
// Decode reports failures as a [*DecodeError] whose kind is either [ErrFormat]
// or [ErrChecksum]. The sequence number is recovered best-effort so that a
// corrupted reply can still be correlated with its request.
package frame
