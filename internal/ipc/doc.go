// Package ipc is the communication node shared by the broker and every worker.
//
// A Node combines up to four independent capabilities:
// - a control server answering framed request/reply exchanges (StartControlServer, RegisterHandler)
// - a stateless control client (Call)
// - a one-way stream receiver with a single ingestion loop (StartStreamReceiver)
// - a fire-and-forget stream sender (PushStream, Push)
//
// Endpoints are "ipc://<path>" (unix socket) or "tcp://host:port".
package ipc
