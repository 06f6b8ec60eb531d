// Package beacon is the outbound-request layer of an event-tracking SDK.
//
// A Client turns event payloads into beacon URLs, persists each one to a
// backup log before any send is attempted, and hands it to a Transport.
// Entries that never reached the transport (sending was blocked, the queue
// was full, the process died) are replayed the next time a Client is created
// on the same store. Delivery is at-least-once; the collection endpoint is
// expected to deduplicate on the request number.
package beacon

// The version of the SDK.
const SDKVersion = "0.4.0"

// SDKName is the identifier sent in the User-Agent header.
const SDKName = "beacon.go"

// SDKUserAgent is the User-Agent header value of the HTTP transports.
const SDKUserAgent = SDKName + "/" + SDKVersion
