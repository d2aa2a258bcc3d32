package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SchemeIPC = "ipc://"
	SchemeTCP = "tcp://"
)

var (
	ErrInvalidEndpoint = errors.New("ipc: invalid endpoint")
	ErrBindFailed      = errors.New("ipc: bind failed")
	ErrNoIdentity      = errors.New("ipc: address has no identity suffix")
	ErrInvalidPrefix   = errors.New("ipc: invalid allocation prefix")
)

// Endpoint is a parsed endpoint string.
type Endpoint struct {
	Raw     string
	Network string
	Address string
}

func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, SchemeIPC):
		path := strings.TrimPrefix(raw, SchemeIPC)
		if path == "" {
			return Endpoint{}, fmt.Errorf("%w: empty ipc path in %q", ErrInvalidEndpoint, raw)
		}
		return Endpoint{Raw: raw, Network: "unix", Address: path}, nil
	case strings.HasPrefix(raw, SchemeTCP):
		hostport := strings.TrimPrefix(raw, SchemeTCP)
		_, port, err := net.SplitHostPort(hostport)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, raw, err)
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return Endpoint{}, fmt.Errorf("%w: %q: port %q is not numeric", ErrInvalidEndpoint, raw, port)
		}
		return Endpoint{Raw: raw, Network: "tcp", Address: hostport}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidEndpoint, raw)
	}
}

func (e Endpoint) String() string {
	return e.Raw
}

// ValidatePrefix reports whether prefix can derive per-identity addresses with
// AllocatedAddress. Only ipc:// prefixes qualify: appending ".<identity>" to a
// tcp:// endpoint corrupts its port.
func ValidatePrefix(prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(prefix, SchemeIPC) {
		return fmt.Errorf("%w: %q must use %s", ErrInvalidPrefix, prefix, SchemeIPC)
	}
	if strings.TrimPrefix(prefix, SchemeIPC) == "" {
		return fmt.Errorf("%w: empty ipc path", ErrInvalidPrefix)
	}
	return nil
}

// AllocatedAddress derives "<prefix>.<identity>".
func AllocatedAddress(prefix string, identity int64) string {
	return prefix + "." + strconv.FormatInt(identity, 10)
}

// IdentityFromAddress parses the decimal identity suffix written by AllocatedAddress.
func IdentityFromAddress(addr string) (int64, error) {
	idx := strings.LastIndexByte(addr, '.')
	if idx < 0 || idx == len(addr)-1 {
		return 0, fmt.Errorf("%w: %q", ErrNoIdentity, addr)
	}
	id, err := strconv.ParseInt(addr[idx+1:], 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoIdentity, addr)
	}
	return id, nil
}

func listen(ep Endpoint) (net.Listener, error) {
	if ep.Network == "unix" {
		removeStaleSocket(ep.Address)
	}
	ln, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBindFailed, ep.Raw, err)
	}
	return ln, nil
}

// boundAddress reports the endpoint string actually bound, resolving tcp port 0.
func boundAddress(ep Endpoint, ln net.Listener) string {
	if ep.Network == "tcp" {
		return SchemeTCP + ln.Addr().String()
	}
	return ep.Raw
}

// removeStaleSocket unlinks a socket file left behind by a previous process.
func removeStaleSocket(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.Mode()&os.ModeSocket != 0 {
		_ = os.Remove(path)
	}
}

func dial(ctx context.Context, ep Endpoint, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, ep.Network, ep.Address)
}
