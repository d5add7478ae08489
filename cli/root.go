// Package cli is the command line surface of the classifier: thin cobra
// commands that parse flags and call into the services.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/camden-git/petclassifier/services"
	"github.com/camden-git/petclassifier/workers"
)

// App carries the wired services the commands run against.
type App struct {
	Users          *services.UserService
	Classification *services.ClassificationService
	Queue          *workers.TrainingQueue
	NumWorkers     int
}

// RootCommand creates the root command with every sub-command attached.
func RootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "petclassifier",
		Short:         "Cats vs dogs image classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		userCommand(app),
		classifyCommand(app),
		trainCommand(app),
		modelsCommand(app),
		jobsCommand(app),
		workerCommand(app),
	)
	return rootCmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
