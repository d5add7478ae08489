package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camden-git/petclassifier/dto"
)

func trainCommand(app *App) *cobra.Command {
	var (
		userID uint
		hp     dto.HyperParams
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a CNN with your own hyper parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if async {
				job, err := app.Queue.Enqueue(cmd.Context(), userID, hp)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "training job %s queued; run 'worker' to process it\n", job.ID)
				return nil
			}

			model, err := app.Classification.Train(cmd.Context(), userID, hp, func(epoch int, m dto.EpochMetrics) {
				fmt.Fprintf(out, "epoch %d/%d: accuracy=%.4f val_accuracy=%.4f loss=%.4f val_loss=%.4f\n",
					epoch, hp.Epochs, m.Accuracy, m.ValAccuracy, m.Loss, m.ValLoss)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "model %d saved to %s\n", model.ID, model.WeightsPath)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "Owner user id")
	cmd.Flags().IntVar(&hp.Filters1Layer, "f1", 32, "Filters of the first convolution")
	cmd.Flags().IntVar(&hp.Filters2Layer, "f2", 64, "Filters of the second convolution")
	cmd.Flags().IntVar(&hp.Filters3Layer, "f3", 128, "Filters of the third and fourth convolution")
	cmd.Flags().IntVar(&hp.DenseNeurons, "dense", 512, "Neurons of the hidden dense layer")
	cmd.Flags().IntVar(&hp.Epochs, "epochs", 1, "Number of epochs")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the training as a background job")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
