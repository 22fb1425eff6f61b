package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/ferremas/internal/server"
	"github.com/shashiranjanraj/ferremas/pkg/app"
)

var (
	serveWorkers int
	serveNoSched bool
	serveNoGRPC  bool
)

// ferremas serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP and gRPC servers with queue workers and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := server.DefaultOptions()
		if cmd.Flags().Changed("workers") {
			opts.Workers = serveWorkers
		}
		opts.Scheduler = !serveNoSched
		opts.GRPC = !serveNoGRPC
		return server.Run(ctx, a, opts)
	},
}

// ferremas route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := app.Offline().Router().Routes()
		if len(infos) == 0 {
			fmt.Println("No routes registered.")
			return nil
		}
		sort.Slice(infos, func(i, j int) bool {
			if infos[i].Path != infos[j].Path {
				return infos[i].Path < infos[j].Path
			}
			return infos[i].Method < infos[j].Method
		})

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 4, "Number of queue workers (0 disables)")
	serveCmd.Flags().BoolVar(&serveNoSched, "no-scheduler", false, "Do not run scheduled tasks in this process")
	serveCmd.Flags().BoolVar(&serveNoGRPC, "no-grpc", false, "Do not start the gRPC health server")
}
