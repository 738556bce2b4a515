package main

import (
	"fmt"

	npversion "github.com/nupi-ai/notespointer/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the build version",
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	v := npversion.String()
	if out.jsonMode {
		return out.Print(map[string]any{"version": v})
	}
	return out.Print(fmt.Sprintf("notespointer %s", npversion.FormatVersion(v)))
}
