package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"botline/pkg/model"
)

var (
	parseStrict  bool
	parseNoColor bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a raw update and print the typed result",
	Long:  "Reads one update JSON object from a file or stdin, parses it and pretty-prints the model or the validation error.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		update, err := model.Parser{Strict: parseStrict}.ParseUpdateJSON(payload)
		if err != nil {
			if category := model.CategoryFromError(err); category != "" {
				return fmt.Errorf("%s: %w", category, err)
			}
			return err
		}

		pp.ColoringEnabled = !parseNoColor
		_, err = pp.Fprintln(cmd.OutOrStdout(), update)
		return err
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseStrict, "strict", false, "reject unknown fields and ambiguous content")
	parseCmd.Flags().BoolVar(&parseNoColor, "no-color", false, "disable colored output")
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read update file: %w", err)
	}
	return data, nil
}
