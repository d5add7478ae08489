package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/dto"
)

func classifyCommand(app *App) *cobra.Command {
	var (
		userID     uint
		title      string
		variantKey string
		modelID    uint
	)
	cmd := &cobra.Command{
		Use:   "classify [image]",
		Short: "Tell whether a picture shows a cat or a dog",
		Long: "Classify a picture with one of the models: " +
			classifier.ConvModel.String() + ", " +
			classifier.TransferModel.String() + " or " +
			classifier.UserModel.String() + " (requires --model).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := classifier.ParseVariant(variantKey)
			if err != nil {
				return err
			}
			var model *uint
			if modelID != 0 {
				model = &modelID
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			in := dto.CreateImageDTO{
				UserID: userID,
				Title:  title,
				Image:  dto.Upload{Filename: filepath.Base(args[0]), Content: f},
			}
			img, pred, err := app.Classification.Classify(cmd.Context(), in, variant, model)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pred.Message)
			fmt.Fprintf(out, "score=%.4f label=%s image=%s id=%d\n", pred.Score, pred.Label, img.Image, img.ID)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "Owner user id")
	cmd.Flags().StringVar(&title, "title", "", "Title of the picture (max 50 characters)")
	cmd.Flags().StringVar(&variantKey, "variant", classifier.ConvModel.String(), "Model variant")
	cmd.Flags().UintVar(&modelID, "model", 0, "Id of your trained model, for user_model")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
