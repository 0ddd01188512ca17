package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/project"
	"github.com/aman-cerp/kbcore/internal/ratelimit"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, list, update, and delete knowledge base projects",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectGetCmd())
	cmd.AddCommand(newProjectUpdateCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var description, embeddingModel string
	var dimensions int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := currentApp
			if err := app.limiter.Allow(ratelimit.OpCreateProject, ""); err != nil {
				return err
			}

			model := embeddingModel
			if model == "" {
				model = app.cfg.Defaults.EmbeddingModel
			}
			dims := dimensions
			if dims <= 0 {
				dims = app.cfg.Defaults.Dimensions
			}

			proj, err := app.manager.CreateProject(cmd.Context(), args[0], description, model, dims, nil)
			if err != nil {
				app.registry.RecordError("", "create_project")
				return err
			}
			app.registry.RecordProjectCreated()
			return printJSON(cmd, proj)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&embeddingModel, "embedding-model", "", "Embedding model name (default from config)")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "Embedding dimensionality (default from config)")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := currentApp
			if err := app.limiter.Allow(ratelimit.OpListProjects, ""); err != nil {
				return err
			}
			return printJSON(cmd, app.manager.ListProjects())
		},
	}
}

func newProjectGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show a single project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, ok := currentApp.manager.GetProject(args[0])
			if !ok {
				return fmt.Errorf("project %q not found", args[0])
			}
			return printJSON(cmd, proj)
		},
	}
}

func newProjectUpdateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update <project-id>",
		Short: "Update a project's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := project.Patch{}
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			proj, err := currentApp.manager.UpdateProject(args[0], patch)
			if err != nil {
				return err
			}
			currentApp.registry.RecordProjectUpdated()
			return printJSON(cmd, proj)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New project name")
	cmd.Flags().StringVar(&description, "description", "", "New project description")
	return cmd
}

func newProjectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and release its resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := currentApp.manager.DeleteProject(args[0]); err != nil {
				return err
			}
			currentApp.registry.RecordProjectDeleted()
			currentApp.registry.ForgetProject(args[0])
			currentApp.limiter.Forget(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", args[0])
			return nil
		},
	}
}

// printJSON writes v to the command's output stream as indented JSON.
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
