package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"tlwatch/internal/trustlist/parser"
)

func runPointersCommand(cmd *cobra.Command, args []string) error {
	pointers, err := parser.ParseLOTL(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("countries") {
		pointers = parser.FilterCountries(pointers, cfg.Countries)
	}
	return writeJSON(cmd, pointers)
}

func runParseCommand(cmd *cobra.Command, args []string) error {
	tl, err := parser.ParseTrustedList(args[0], strings.ToUpper(strings.TrimSpace(args[1])))
	if err != nil {
		return err
	}
	return writeJSON(cmd, tl)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
