// Package upgrader runs the Switch's upgrade pipeline (spec §4.4): a raw
// net.Conn is negotiated into a Noise SecureConn and then into a Mplex
// Session, in that order, on both dialed and accepted sockets.
package upgrader
