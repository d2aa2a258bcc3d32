// Package worker hosts one service behind the broker: it registers the service
// name (retrying forever on a fixed backoff), binds a stream receiver at the
// allocated address and a control server beside it, and hands traffic to a
// Worker implementation.
package worker
