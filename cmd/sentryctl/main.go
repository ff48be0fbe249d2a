// Command sentryctl is the remote-control CLI for a running sentryd
// daemon's Control API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loykin/sentryd/pkg/client"
)

var (
	daemonAddr string
	token      string
)

func fail(format string, args ...any) {
	_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "[-] "+format+"\n", args...)
	os.Exit(1)
}

func resolveToken() string {
	if token != "" {
		return token
	}
	return getCachedToken(daemonAddr)
}

func newClient() *client.Client {
	return client.New(daemonAddr, resolveToken())
}

func main() {
	root := &cobra.Command{
		Use:   "sentryctl",
		Short: "Control a running sentryd daemon",
	}
	root.PersistentFlags().StringVarP(&daemonAddr, "host", "d", "http://localhost:3401", "daemon base URL")
	root.PersistentFlags().StringVarP(&token, "token", "t", "", "auth token (global tokens are cached per-daemon after a successful ping)")

	root.AddCommand(
		pingCmd(),
		statusCmd(),
		infoCmd(),
		actionCmd("Start"),
		actionCmd("Stop"),
		actionCmd("Update"),
		actionCmd("Reload"),
		logsCmd(),
	)

	if err := root.Execute(); err != nil {
		fail("%v", err)
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable",
		Run: func(cmd *cobra.Command, args []string) {
			res, err := newClient().Ping(context.Background())
			if err != nil {
				fail("%v", err)
			}
			// Only a global token is safe to cache: a scoped one would
			// silently lose access to every other app on this daemon.
			if token != "" && res.Token == "global" {
				_ = saveToken(daemonAddr, token)
			}
			color.Green("pong (version %s, token: %s)", res.Version, res.Token)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon-wide health and app states",
		Run: func(cmd *cobra.Command, args []string) {
			st, err := newClient().Status(context.Background())
			if err != nil {
				fail("%v", err)
			}
			healthColor := color.New(color.FgGreen)
			switch st.Health {
			case "degraded":
				healthColor = color.New(color.FgYellow)
			case "yikes":
				healthColor = color.New(color.FgRed)
			}
			healthColor.Printf("daemon: %s (uptime %ds, version %s)\n", st.Health, st.Uptime, st.Version)
			for _, app := range st.Apps {
				fmt.Printf("  %-20s %s\n", app.Name, app.Status)
			}
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <app>",
		Short: "Show one app's detail",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			info, err := newClient().AppInfo(context.Background(), args[0])
			if err != nil {
				fail("%v", err)
			}
			fmt.Printf("name:   %s\n", info.Name)
			fmt.Printf("status: %s\n", info.Status)
			if info.Info != nil {
				fmt.Printf("pid:     %d\n", info.Info.PID)
				fmt.Printf("memory:  %d bytes\n", info.Info.Memory)
				fmt.Printf("threads: %d\n", info.Info.Threads)
				fmt.Printf("uptime:  %ds\n", info.Info.Uptime)
			}
			if info.Output.Stdout != "" {
				fmt.Printf("--- stdout ---\n%s\n", info.Output.Stdout)
			}
			if info.Output.Stderr != "" {
				fmt.Printf("--- stderr ---\n%s\n", info.Output.Stderr)
			}
		},
	}
}

func actionCmd(action string) *cobra.Command {
	var opts client.ActionOptions
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <app>", action),
		Short: fmt.Sprintf("Send a %s action to an app", action),
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := newClient().Action(context.Background(), args[0], action, opts); err != nil {
				fail("%v", err)
			}
			color.Green("%s: %s ok", args[0], action)
		},
	}
	switch action {
	case "Stop":
		cmd.Flags().StringVar(&opts.Signal, "signal", "", "signal to send (default SIGINT)")
	case "Update":
		cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch to fetch and merge (required for repo-mode updates)")
		cmd.Flags().StringVar(&opts.Checkout, "checkout", "", "ref to check out after fetching")
		cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote name (default origin)")
		cmd.Flags().BoolVar(&opts.Force, "force", false, "force checkout after clone")
		cmd.Flags().StringVar(&opts.Data, "data", "", "base64 gzip-compressed binary blob")
	}
	return cmd
}

func logsCmd() *cobra.Command {
	var page, lines int
	var endTime int64
	var rev bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Page through the daemon's operational log",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entries, end, err := newClient().Logs(context.Background(), page, lines, endTime, rev)
			if err != nil {
				fail("%v", err)
			}
			for _, e := range entries {
				fmt.Printf("[%d] [%s] %s\n", e.Timestamp, e.Kind, e.Text)
			}
			if end {
				fmt.Println("(end of log)")
			}
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "page number, newest first")
	cmd.Flags().IntVarP(&lines, "lines", "l", 50, "max entries per page")
	cmd.Flags().Int64Var(&endTime, "end-time", 0, "clamp to entries at or before this unix timestamp")
	cmd.Flags().BoolVar(&rev, "rev", false, "reverse the page to oldest-first")
	return cmd
}
