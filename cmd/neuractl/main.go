package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/neuraflow/internal/broker"
	"github.com/danmuck/neuraflow/internal/ipc"
	logs "github.com/danmuck/neuraflow/internal/logging"
)

const usage = `usage: neuractl [-broker addr] [-timeout d] <command> [args]

commands:
  push <addr> <payload>             send one stream message
  call <addr> <action> [payload]    send one control request and print the reply
  lookup <service>                  resolve a service's stream address via the broker
  services                          list broker registrations (JSON)
  prompt <service> <payload>        look up service and push payload to it
`

var errUsage = errors.New("invalid usage")

type options struct {
	brokerAddr string
	timeout    time.Duration
}

func main() {
	logs.ConfigureRuntime()
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("neuractl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.brokerAddr, "broker", broker.DefaultControlAddr, "broker control address")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "reply timeout per request (0 waits forever)")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	err := dispatch(opts, fs.Args(), stdout)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "neuractl: %v\n", err)
		return 1
	}
}

func dispatch(opts options, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg := ipc.DefaultConfig()
	cfg.ReplyTimeout = opts.timeout
	ctx := context.Background()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "push":
		if len(rest) != 2 {
			return errUsage
		}
		if err := ipc.PushWithConfig(ctx, cfg, rest[0], []byte(rest[1])); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sent %d bytes to %s\n", len(rest[1]), rest[0])
		return nil
	case "call":
		if len(rest) < 2 || len(rest) > 3 {
			return errUsage
		}
		var payload []byte
		if len(rest) == 3 {
			payload = []byte(rest[2])
		}
		return printReply(stdout, ipc.CallWithConfig(ctx, cfg, rest[0], rest[1], payload))
	case "lookup":
		if len(rest) != 1 {
			return errUsage
		}
		return printReply(stdout, ipc.CallWithConfig(ctx, cfg, opts.brokerAddr, broker.ActionLookup, []byte(rest[0])))
	case "services":
		if len(rest) != 0 {
			return errUsage
		}
		return printReply(stdout, ipc.CallWithConfig(ctx, cfg, opts.brokerAddr, broker.ActionServices, nil))
	case "prompt":
		if len(rest) != 2 {
			return errUsage
		}
		reply := ipc.CallWithConfig(ctx, cfg, opts.brokerAddr, broker.ActionLookup, []byte(rest[0]))
		if reply.Failed() {
			return fmt.Errorf("lookup %q: %s", rest[0], reply.String())
		}
		addr := reply.String()
		if err := ipc.PushWithConfig(ctx, cfg, addr, []byte(rest[1])); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "prompt sent to %s at %s; results go to the broker sink\n", rest[0], addr)
		return nil
	default:
		return errUsage
	}
}

func printReply(w io.Writer, reply ipc.Reply) error {
	if reply.Failed() {
		return fmt.Errorf("%s (status=%s)", reply.String(), reply.Status)
	}
	fmt.Fprintln(w, reply.String())
	return nil
}
