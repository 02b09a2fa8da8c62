// Package edit implements the xpref edit command.
package edit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const defaultConfigTemplate = `[discovery]
  group             = "239.255.1.1"
  port              = 49707
  interface         = ""
  network_range     = ""
  timeout           = "3s"
  retry             = false
  max_retry_elapsed = "5m"

[stream]
  default_frequency = 10

[[dataref]]
  channel   = "sim/flightmodel/forces/g_nrml"
  index     = 0
  frequency = 10

[store]
  path = "~/.local/state/xpref/hosts.db"

[metrics]
  listen = ""
  path   = "/metrics"

[log]
  level = "info"

[announce]
  port        = 49000
  raknet_port = 49001
  sim_version = 115502
  interval    = "1s"
`

// WriteDefault creates path with the default config unless it already exists.
// It reports whether the file was created.
func WriteDefault(path string) (bool, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("writing default config: %w", err)
	}
	return true, nil
}

// Run opens the configuration file in the system editor.
// If the file does not exist, it creates it with default values.
func Run(path string) error {
	created, err := WriteDefault(path)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created new config file at %s\n", path)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		for _, e := range []string{"vi", "nano", "vim"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}

	if editor == "" {
		return fmt.Errorf("no editor found ($EDITOR environment variable not set, and vi/nano/vim not in PATH)")
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
