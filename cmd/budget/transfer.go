package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"budget/internal/core"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the whole budget as JSON (default stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the whole budget with an export file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 || args[0] == "-" {
		return a.svc.Export(os.Stdout)
	}

	path := args[0]
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := a.svc.Export(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported to %s on %s\n", path, time.Now().Format("2006-01-02 15:04"))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	var payload []byte
	if args[0] == "-" {
		payload, err = io.ReadAll(os.Stdin)
	} else {
		payload, err = os.ReadFile(args[0])
	}
	if err != nil {
		return &core.ImportError{Err: err}
	}

	snap, err := a.svc.Import(cmd.Context(), payload)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d categories, %d incomes, %d fixed and %d variable expenses\n",
		len(snap.Categories), len(snap.Incomes), len(snap.FixedExpenses), len(snap.VariableExpenses))
	return nil
}
