// Package crabpotv1 is the crabpot.v1 wire contract: request and response
// messages, the JSON codec they travel in, the service descriptor, and the
// typed client.
//
// Messages are plain structs encoded as JSON under the gRPC content-subtype
// "json" (content-type application/grpc+json). Sequence numbers and amounts
// are uint64 values encoded as decimal strings so JSON readers without 64-bit
// integers keep full precision. Timestamps are RFC 3339.
package crabpotv1
