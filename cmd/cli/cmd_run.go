package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vk/bootrt/internal/bootcfg"
	"github.com/vk/bootrt/internal/hclcfg"
	"github.com/vk/bootrt/internal/runtime"
	"github.com/vk/bootrt/internal/snapshot"
)

// profileFlags are the configuration inputs shared by the run and
// fingerprint commands.
type profileFlags struct {
	profile      string
	manifestURL  string
	baseURL      string
	mainAssembly string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "Boot profile: an .hcl file or a directory of profiles.")
	cmd.Flags().StringVar(&f.manifestURL, "manifest", "", "Boot manifest document: an HTTP(S) URL or a local JSON file.")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Application base URL, overriding the profile and manifest.")
	cmd.Flags().StringVar(&f.mainAssembly, "main", "", "Main assembly name, overriding the profile and manifest.")
}

// overlay folds the profile and the per-flag overrides into one inline
// overlay for the resolver.
func (f *profileFlags) overlay(cmd *cobra.Command) (*bootcfg.Overlay, error) {
	overlay := &bootcfg.Overlay{}
	if f.profile != "" {
		info, err := os.Stat(f.profile)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", f.profile, err)
		}
		if info.IsDir() {
			overlay, err = hclcfg.LoadDir(cmd.Context(), f.profile)
		} else {
			overlay, err = hclcfg.LoadFile(cmd.Context(), f.profile)
		}
		if err != nil {
			return nil, err
		}
	}
	if f.baseURL != "" {
		overlay.BaseURL = &f.baseURL
	}
	if f.mainAssembly != "" {
		overlay.MainAssembly = &f.mainAssembly
	}
	return overlay, nil
}

func newRunCmd() *cobra.Command {
	var flags profileFlags
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "run [args...]",
		Short: "Boot the runtime and invoke its managed entry point",
		RunE: func(cmd *cobra.Command, args []string) error {
			overlay, err := flags.overlay(cmd)
			if err != nil {
				return err
			}

			opts := runtime.Options{
				Config:    overlay,
				ConfigURL: flags.manifestURL,
				Logger:    slog.Default(),
				OnProgress: func(completed, total int) {
					slog.Default().Info("Fetch progress.", "completed", completed, "total", total)
				},
			}
			if cacheDir != "" {
				opts.Storage = &snapshot.FileStorage{Dir: cacheDir}
			}

			rt, err := runtime.Boot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			code, err := rt.RunMain(cmd.Context(), args)
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Directory for boot snapshots. Empty disables persistence.")
	return cmd
}

// exitCodeError carries a nonzero managed exit code to main without
// treating it as a boot failure.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("application exited with code %d", e.code)
}
