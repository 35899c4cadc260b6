package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sentinel/store"
)

var (
	machineName  string
	machineNotes string
)

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Manage monitored machines",
}

var machinesCreateCmd = &cobra.Command{
	Use:   "create <machine-id>",
	Short: "Register a machine",
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

		m := &store.Machine{
			ID:    args[0],
			Name:  machineName,
			Notes: machineNotes,
		}
		if err := st.CreateMachine(cmd.Context(), m); err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(m)
		}
		fmt.Printf("Created machine %s\n", m.ID)
		return nil
	},
}

var machinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered machines",
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

		machines, err := st.Machines(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(machines)
		}
		if len(machines) == 0 {
			fmt.Println("No machines registered")
			return nil
		}

		tw := newTable()
		fmt.Fprintln(tw, "ID\tNAME\tCREATED\tNOTES")
		for _, m := range machines {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				m.ID, m.Name, m.CreatedAt.Format("2006-01-02 15:04"), m.Notes)
		}
		return tw.Flush()
	},
}

var machinesDeleteCmd = &cobra.Command{
	Use:   "delete <machine-id>",
	Short: "Delete a machine and everything trained for it",
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

		if err := st.DeleteMachine(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted machine %s\n", args[0])
		return nil
	},
}

func init() {
	machinesCreateCmd.Flags().StringVar(&machineName, "name", "", "human-readable machine name")
	machinesCreateCmd.Flags().StringVar(&machineNotes, "notes", "", "free-form notes")

	machinesCmd.AddCommand(machinesCreateCmd)
	machinesCmd.AddCommand(machinesListCmd)
	machinesCmd.AddCommand(machinesDeleteCmd)
	rootCmd.AddCommand(machinesCmd)
}
