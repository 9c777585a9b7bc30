package main

import (
	"context"
	"fmt"
	"net"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/internal/app"
	"github.com/shashiranjanraj/catalog/internal/kernel"
	"github.com/shashiranjanraj/catalog/internal/server"
	"github.com/shashiranjanraj/catalog/pkg/router"
)

// catalog serve: start the HTTP server (and gRPC health when GRPC_PORT is set).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background()) //nolint:errcheck

		opts := server.Options{
			Addr:    net.JoinHostPort("", config.AppPort()),
			Handler: kernel.Handler(a),
			Health:  a.Ping,
			Tasks:   a.Scheduler(),
		}
		if port := config.GRPCPort(); port != "" {
			opts.GRPCAddr = net.JoinHostPort("", port)
		}
		return server.Run(ctx, opts)
	},
}

// catalog route:list: print all registered routes.
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := router.New()
		kernel.Routes(r, &app.App{})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range r.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}
