package config

import (
	"fmt"
	"os"
)

func Template(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindBroker:
		return brokerTemplate, nil
	case KindWorker:
		return workerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const brokerTemplate = `control_addr = "ipc:///tmp/neura.rpc.broker"
sink_addr = "ipc:///tmp/neura.stream.broker"
stream_prefix = "ipc:///tmp/neura.stream"
first_identity = 100

# empty disables the HTTP admin surface
admin_listen_addr = "127.0.0.1:7110"
admin_allow_origins = ["http://localhost:3000"]
admin_token = ""

max_message_bytes = 4194304
dial_timeout = "5s"
# 0s waits for replies indefinitely
reply_timeout = "0s"
`

const workerTemplate = `service_name = "llm_service"
broker_addr = "ipc:///tmp/neura.rpc.broker"
output_addr = "ipc:///tmp/neura.stream.broker"
# empty disables the worker control server
control_prefix = "ipc:///tmp/neura.rpc"
retry_interval = "2s"
dial_timeout = "5s"
reply_timeout = "0s"

response = "DeepSeek is a powerful AI model running on Edge."
token_delay = "200ms"
load_step_delay = "400ms"
`
