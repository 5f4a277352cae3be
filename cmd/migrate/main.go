package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
)

func main() {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the database schema",
		SilenceUsage: true,
	}

	root.AddCommand(upCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect() (database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply the schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.ApplySchema(db); err != nil {
				return err
			}

			fmt.Println("Schema applied")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which core tables exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := database.SchemaStatus(db)
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(status))
			for table := range status {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			missing := 0
			for _, table := range tables {
				mark := "ok"
				if !status[table] {
					mark = "MISSING"
					missing++
				}
				fmt.Printf("%-24s %s\n", table, mark)
			}

			if missing > 0 {
				return fmt.Errorf("%d table(s) missing; run `migrate up`", missing)
			}
			return nil
		},
	}
}
