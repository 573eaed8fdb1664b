package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/database"
	"github.com/Akash1430/POCPortal/internal/infrastructure/logging"
	"github.com/Akash1430/POCPortal/internal/permission"
	"github.com/Akash1430/POCPortal/migrations"
)

// catalogActor is recorded as created_by for catalog entries added from the CLI.
const catalogActor = "cli"

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Grow the module and permission catalog",
		Commands: []*cli.Command{
			{
				Name:  "add-module",
				Usage: "Add a navigation module",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "display name"},
					&cli.StringFlag{Name: "ref-code", Required: true, Usage: "reference code, stored upper-case"},
					&cli.Int64Flag{Name: "parent", Usage: "parent module id (0 for a root module)"},
					&cli.IntFlag{Name: "sort-order", Usage: "position among siblings"},
					&cli.StringFlag{Name: "logo", Usage: "logo name"},
					&cli.StringFlag{Name: "redirect", Usage: "redirect page"},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "visible", Value: true, Usage: "show the module in navigation"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCatalog(ctx, cmd, func(e *permission.Evaluator) error {
						m, err := e.CreateModule(ctx, catalogActor, permission.Module{
							Name:         cmd.String("name"),
							RefCode:      cmd.String("ref-code"),
							ParentID:     optionalID(cmd.Int64("parent")),
							SortOrder:    cmd.Int("sort-order"),
							LogoName:     cmd.String("logo"),
							RedirectPage: cmd.String("redirect"),
							Description:  cmd.String("description"),
							IsVisible:    cmd.Bool("visible"),
						})
						if err != nil {
							return fmt.Errorf("adding module: %w", err)
						}
						fmt.Fprintf(output(cmd), "added module %d %s\n", m.ID, m.RefCode)
						return nil
					})
				},
			},
			{
				Name:  "add-capability",
				Usage: "Add a permission to a module",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "module", Required: true, Usage: "owning module id"},
					&cli.StringFlag{Name: "name", Required: true, Usage: "display name"},
					&cli.StringFlag{Name: "ref-code", Required: true, Usage: "reference code, stored upper-case"},
					&cli.Int64Flag{Name: "parent", Usage: "parent permission id in the same module (0 for a root)"},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "visible", Value: true, Usage: "show the permission in trees"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withCatalog(ctx, cmd, func(e *permission.Evaluator) error {
						c, err := e.CreateCapability(ctx, catalogActor, permission.Capability{
							ModuleID:    cmd.Int64("module"),
							Name:        cmd.String("name"),
							RefCode:     cmd.String("ref-code"),
							ParentID:    optionalID(cmd.Int64("parent")),
							Description: cmd.String("description"),
							IsVisible:   cmd.Bool("visible"),
						})
						if err != nil {
							return fmt.Errorf("adding permission: %w", err)
						}
						fmt.Fprintf(output(cmd), "added permission %d %s\n", c.ID, c.RefCode)
						return nil
					})
				},
			},
		},
	}
}

// withCatalog opens the migrated database and hands fn an evaluator over it.
func withCatalog(ctx context.Context, cmd *cli.Command, fn func(*permission.Evaluator) error) error {
	return withDatabase(ctx, cmd, func(db *database.DB, _ *config.Config, log *logging.Logger) error {
		if err := db.Migrate(ctx, migrations.FS()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		e := permission.NewEvaluator(permission.NewCatalogRepository(db.DB), auth.NewRoleRepository(db.DB),
			permission.WithLogger(log.Logger))
		return fn(e)
	})
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
