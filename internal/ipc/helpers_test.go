package ipc

import "testing"

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n := NewNode(DefaultConfig())
	t.Cleanup(func() { _ = n.Close() })
	return n
}
