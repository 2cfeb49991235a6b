// Package ecu provides the diagnostic link to the engine control unit.
package ecu

// The link is layered:
//
//   Transport  raw bytes over the point-to-point serial line.
//   Connector  K-line framing: wake-up/init handshake, length and
//              checksum, echo suppression, connection state.
//   HondaECU   session node polled by the executor: connects when
//              needed, reads engine data tables and relays them.
//
// A frame on the wire is [type, length, body..., checksum] where length
// counts every byte of the frame and checksum makes the byte sum of the
// whole frame zero (mod 256).
//
// Any I/O failure on a connected link resets the connector to
// Disconnected; the session node reconnects on its next Process call.
