// Package hosts implements the xpref hosts command.
package hosts

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"xpref/internal/store"
	"xpref/pkg/config"
	"xpref/pkg/logger"
)

// Run prints the cached simulator hosts. A positive prune threshold first
// removes hosts not seen within it.
func Run(configPath string, prune time.Duration) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Init(cfg.Log.Level)

	db, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	if prune > 0 {
		n, err := db.Prune(prune)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d host(s) not seen in %s\n", n, prune)
	}

	records, err := db.GetAll()
	if err != nil {
		return fmt.Errorf("listing hosts: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No simulators cached yet. Run 'xpref discover' first.")
		return nil
	}

	fmt.Printf("\n  Simulators (%d cached)\n\n", len(records))
	displayHostTable(os.Stdout, records)
	return nil
}

func displayHostTable(w io.Writer, records []store.HostRecord) {
	fmt.Fprintf(w, "  %-4s %-20s %-22s %-8s %-14s %-8s %-19s %-5s\n",
		"#", "Hostname", "Address", "Version", "Role", "RakNet", "Last Seen", "Seen")
	fmt.Fprintf(w, "  %s %s %s %s %s %s %s %s\n",
		strings.Repeat("─", 4),
		strings.Repeat("─", 20),
		strings.Repeat("─", 22),
		strings.Repeat("─", 8),
		strings.Repeat("─", 14),
		strings.Repeat("─", 8),
		strings.Repeat("─", 19),
		strings.Repeat("─", 5))

	for i, r := range records {
		fmt.Fprintf(w, "  %-4d %-20s %-22s %-8d %-14s %-8d %-19s %-5d\n",
			i+1,
			truncate(r.Host.Hostname, 20),
			r.Host.Addr(),
			r.Host.SimVersion,
			r.Host.Role,
			r.Host.RaknetPort,
			r.LastSeen.Local().Format("2006-01-02 15:04:05"),
			r.SeenCount,
		)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
