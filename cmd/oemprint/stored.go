package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmp/oem/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored ephemerides",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored ephemeris",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete stored ephemerides",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

func init() {
	showCmd.Flags().BoolVar(&csvOutput, "csv", false, "print the state vector table as CSV instead of the full dump")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rmCmd)
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("no store configured; set store.path or pass --store")
	}
	return store.Open(cfg.Store.Path)
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%d vectors\t%s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.ObjectName, e.Vectors, e.Source)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	eph, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if csvOutput {
		return eph.Table().WriteCSV(os.Stdout)
	}
	eph.Write(os.Stdout)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range args {
		if err := st.Delete(cmd.Context(), id); err != nil {
			return err
		}
	}
	return nil
}
