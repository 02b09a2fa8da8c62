// xpref: X-Plane beacon discovery and dataref streaming.
//
// Usage:
//
//	xpref discover  discover a simulator on the local network
//	xpref stream    subscribe to the configured datarefs and log samples
//	xpref hosts     list simulators seen before
package main

import (
	"fmt"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"xpref/cmd/announce"
	"xpref/cmd/discover"
	"xpref/cmd/edit"
	"xpref/cmd/hosts"
	"xpref/cmd/stream"
)

const (
	defaultSystemPath = "/etc/xpref/config.toml"
	defaultLocalPath  = "config.toml"
	version           = "0.3.0"
)

var (
	app        = kingpin.New("xpref", "X-Plane beacon discovery and dataref streaming.")
	configPath = app.Flag("config", "Path to config file (default: ./config.toml, then "+defaultSystemPath+").").Short('c').String()

	discoverCmd = app.Command("discover", "Listen for a simulator beacon and print the host.")
	streamCmd   = app.Command("stream", "Discover the simulator and stream the configured datarefs.")
	hostsCmd    = app.Command("hosts", "List simulators discovered before.")
	hostsPrune  = hostsCmd.Flag("prune", "Remove hosts not seen within this duration first.").Duration()
	announceCmd = app.Command("announce", "Multicast a simulator beacon (for testing clients).")
	editCmd     = app.Command("edit", "Edit the configuration file in your system editor.")
	versionCmd  = app.Command("version", "Print version information.")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	path := resolveConfigPath(*configPath)

	var err error
	switch command {
	case discoverCmd.FullCommand():
		err = discover.Run(path)
	case streamCmd.FullCommand():
		err = stream.Run(path)
	case hostsCmd.FullCommand():
		err = hosts.Run(path, *hostsPrune)
	case announceCmd.FullCommand():
		err = announce.Run(path)
	case editCmd.FullCommand():
		err = edit.Run(path)
	case versionCmd.FullCommand():
		fmt.Printf("xpref v%s\n", version)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath prefers an explicit path, then ./config.toml, then the system path.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(defaultLocalPath); err == nil {
		return defaultLocalPath
	}
	return defaultSystemPath
}
