package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vk/bootrt/internal/bootcfg"
)

// newFingerprintCmd resolves configuration without fetching any assets and
// prints the snapshot cache key it would boot under. Useful for checking
// whether a deployment change invalidates cached snapshots.
func newFingerprintCmd() *cobra.Command {
	var flags profileFlags

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the snapshot fingerprint of the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			overlay, err := flags.overlay(cmd)
			if err != nil {
				return err
			}

			resolver := &bootcfg.Resolver{}
			cfg, err := resolver.Resolve(cmd.Context(), flags.manifestURL, overlay)
			if err != nil {
				return err
			}
			fingerprint, err := cfg.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fingerprint)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
