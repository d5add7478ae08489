package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func modelsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect your trained models",
	}
	cmd.AddCommand(modelsListCommand(app), modelsShowCommand(app))
	return cmd
}

func modelsListCommand(app *App) *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trained models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := app.Classification.ListModels(cmd.Context(), userID)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILTERS\tDENSE\tEPOCHS\tACCURACY\tVAL_ACCURACY\tCREATED")
			for _, m := range summaries {
				acc, valAcc := "-", "-"
				if m.FinalAccuracy != nil {
					acc = fmt.Sprintf("%.4f", *m.FinalAccuracy)
				}
				if m.FinalValAccuracy != nil {
					valAcc = fmt.Sprintf("%.4f", *m.FinalValAccuracy)
				}
				fmt.Fprintf(tw, "%d\t%d/%d/%d\t%d\t%d\t%s\t%s\t%s\n",
					m.ID, m.HyperParams.Filters1Layer, m.HyperParams.Filters2Layer, m.HyperParams.Filters3Layer,
					m.HyperParams.DenseNeurons, m.EpochCount, acc, valAcc, m.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "Owner user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func modelsShowCommand(app *App) *cobra.Command {
	var userID, modelID uint
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a model with its training history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Classification.GetModel(cmd.Context(), userID, modelID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "Owner user id")
	cmd.Flags().UintVar(&modelID, "id", 0, "Model id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
