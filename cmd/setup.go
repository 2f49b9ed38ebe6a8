package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/shared"
)

// Setup writes a config file when none exists, then migrates the configured database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	db := r.db
	if db == nil {
		r.logger.Info("initializing database", "path", config.Database.Path)

		var err error
		if db, err = shared.NewDatabase(config.Database.Path); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	}

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return r.writeMigrations(db, config.Database.Path)
}

func (r *Runner) writeMigrations(db *sql.DB, path string) error {
	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	r.writeHeader("Database: " + path)
	for _, s := range statuses {
		name := fmt.Sprintf("%03d %s", s.Version, s.Name)
		if s.Applied {
			r.writeLine(r.styles.OK("%s", name))
		} else {
			r.writeLine(r.styles.Warn("  %s (pending)", name))
		}
	}
	return nil
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and migrate the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the latest migration instead of applying pending ones",
			},
		},
		Action: r.Setup,
	}
}
