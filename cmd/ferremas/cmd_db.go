package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/database/seeders"
	"github.com/shashiranjanraj/ferremas/pkg/database"
	"github.com/shashiranjanraj/ferremas/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	return database.Connect()
}

// ferremas migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		n, err := migration.New(database.DB).Run()
		if err != nil {
			return err
		}
		fmt.Printf("Ran %d migration(s).\n", n)
		return nil
	},
}

// ferremas migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		n, err := migration.New(database.DB).Rollback()
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back %d migration(s).\n", n)
		return nil
	},
}

// ferremas migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		rows, err := migration.New(database.DB).Status()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
		for _, r := range rows {
			ran, batch := "no", "-"
			if r.Ran {
				ran, batch = "yes", fmt.Sprint(r.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, ran, batch)
		}
		return w.Flush()
	},
}

// ferremas seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo branches, users and catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close()

		fmt.Println("Running seeders…")
		return seeders.RunAll(database.DB, os.Stdout)
	},
}
