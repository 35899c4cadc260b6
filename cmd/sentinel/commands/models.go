package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sentinel/store"
)

var (
	modelsMachine string
	exportOut     string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage trained reference states",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a machine's trained states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		models, err := st.Models(cmd.Context(), modelsMachine)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(models)
		}
		if len(models) == 0 {
			fmt.Printf("No models trained for %s\n", modelsMachine)
			return nil
		}

		tw := newTable()
		fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tBINS\tSELF-SIM\tTRAINED")
		for _, m := range models {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\n",
				m.ID, m.Label, m.Type, m.FeatureDimension,
				m.Meta.MeanCosineSimilarity, m.TrainedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model-id>",
	Short: "Delete one trained state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteModel(cmd.Context(), modelsMachine, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted model %s from machine %s\n", args[0], modelsMachine)
		return nil
	},
}

var modelsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a machine and its trained states to YAML",
	Long: `Export writes the machine record and every trained state to a YAML
file that 'models import' can restore on another device. Reference
sessions and room calibrations describe the recording setup, not the
machine, and are not exported; recapture them on the importing device.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if err := store.Export(cmd.Context(), st, modelsMachine, out); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Exported machine %s to %s\n", modelsMachine, exportOut)
		}
		return nil
	},
}

var modelsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a machine and its trained states from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		m, err := store.Import(cmd.Context(), st, f)
		if err != nil {
			return err
		}
		fmt.Printf("Imported machine %s\n", m.ID)
		return nil
	},
}

func init() {
	modelsListCmd.Flags().StringVar(&modelsMachine, "machine", "", "machine whose models to list (required)")
	modelsListCmd.MarkFlagRequired("machine")

	modelsDeleteCmd.Flags().StringVar(&modelsMachine, "machine", "", "machine the model belongs to (required)")
	modelsDeleteCmd.MarkFlagRequired("machine")

	modelsExportCmd.Flags().StringVar(&modelsMachine, "machine", "", "machine to export (required)")
	modelsExportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	modelsExportCmd.MarkFlagRequired("machine")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsCmd.AddCommand(modelsExportCmd)
	modelsCmd.AddCommand(modelsImportCmd)
	rootCmd.AddCommand(modelsCmd)
}
