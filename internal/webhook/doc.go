// Package webhook exposes a locally-bound HTTP endpoint to the public
// internet through a tunneling relay and dispatches inbound webhook POSTs to
// registered service feeds.
//
// # Lifecycle
//
// The Server owns both the HTTP listener and the tunnel. Start launches a
// background goroutine that binds the listener, opens the tunnel and then
// blocks in the serve loop; the caller waits on a one-shot readiness signal
// bounded by a 3 second timeout, so an inherently asynchronous startup reads
// as a synchronous success/failure. The listener is bound in the same
// goroutine that runs its serve loop. Stop tears the tunnel session down
// wholesale and closes the listener; it is idempotent.
//
// # Request Flow
//
//  1. POST arrives at /webhook/<feed> (any other method: 400)
//  2. Feed looked up in the registry (unknown: 500, logged as a warning)
//  3. Body read (cap 1 MB, oversized: 413)
//  4. Feed authenticator invoked with the raw body
//  5. Authorized: handler invoked synchronously, then 200 empty
//     Unauthorized: handler skipped, logged at debug, still 200 empty
//
// The 200-on-rejection is deliberate: remote callers cannot probe which feeds
// exist or which tokens they require. GET / is a bare liveness probe.
//
// Delivery outcomes are journaled through a DeliveryRecorder when one is
// wired; journal failures are logged and never change a response.
package webhook
