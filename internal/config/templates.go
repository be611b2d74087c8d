package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter config for the given input kind.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case InputFile:
		return fileTemplate, nil
	case InputTCP:
		return tcpTemplate, nil
	case InputStdin:
		return stdinTemplate, nil
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

const fileTemplate = `sender = 0x42

[input]
kind = "file"
path = "capture.sbp"
read_size = 4096

[output]
format = "json"
unknown = "emit"

[capture]
dir = ""
sync = false

[metrics]
addr = ""
`

const tcpTemplate = `sender = 0x42

[input]
kind = "tcp"
addr = "192.168.0.222:55555"
read_size = 4096
reconnect = true

[output]
format = "text"
unknown = "emit"

[capture]
dir = "sbp-capture"
sync = false

[metrics]
addr = "127.0.0.1:9464"
`

const stdinTemplate = `sender = 0x42

[input]
kind = "stdin"
read_size = 512

[output]
format = "json"
unknown = "drop"
`
