// Command nyx-ctl is a host-side introspection tool: it reads the JSON
// snapshot a running kernel exports at kernel/debug/snapshot.json and
// renders it the way a /proc reader would, without needing a live
// syscall connection to the kernel it's inspecting.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyx-os/nyx/internal/kdebug"
)

var snapshotPath string

var rootCmd = &cobra.Command{
	Use:           "nyx-ctl",
	Short:         "inspect a nyx kernel's exported debug snapshot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "snapshot.json",
		"path to a kernel/debug/snapshot.json export")
	rootCmd.AddCommand(psCmd, meminfoCmd, uptimeCmd, catCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSnapshot() (kdebug.Snapshot, error) {
	var snap kdebug.Snapshot
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "list tasks from the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("%-8s %-8s %-8s %s\n", "PID", "RSS(KB)", "VSS(KB)", "NAME")
		for _, t := range snap.Tasks {
			fmt.Printf("%-8d %-8d %-8d %s\n", t.PID, t.RSSKB, t.VSSKB, t.Name)
		}
		return nil
	},
}

var meminfoCmd = &cobra.Command{
	Use:   "meminfo",
	Short: "print memory totals from the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		fmt.Printf("MemTotal: %d kB\nMemFree:  %d kB\n", snap.MemTotalKB, snap.MemFreeKB)
		return nil
	},
}

var uptimeCmd = &cobra.Command{
	Use:   "uptime",
	Short: "print kernel uptime from the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		fmt.Println(time.Duration(snap.UptimeNanos))
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat",
	Short: "pretty-print the raw snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
