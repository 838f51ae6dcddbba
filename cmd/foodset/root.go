package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for foodset.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foodset",
		Short: "Build a VOC training set from the food images of a COCO dataset",
		Long: `foodset selects the COCO images annotated with a category of one supercategory, food by
default, and writes them in Pascal VOC layout: JPEGImages, Annotations, one folder per
category and a manifest file listing every image with its class index.

Settings are read from .foodset.yaml or the XDG config directory; flags override them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
