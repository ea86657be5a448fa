// Package switchcore implements the Switch (spec §4.4): the single entry
// point for dialing and listening, the upgrade pipeline glue between a raw
// transport and the negotiation/security/muxer stack, per-peer connection
// bookkeeping, and the Connected/Disconnected/Joined/Left lifecycle events.
package switchcore
