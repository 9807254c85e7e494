// Package connection owns a single physical WebSocket to the broker feed.
//
// A Client maps one-to-one onto one socket: dial, serialized send, buffered
// receive, close. It applies keep-alive pings and a large read buffer but has
// no retry or subscription knowledge; failures surface on the Errors channel
// for the feed service to decide policy.
package connection
