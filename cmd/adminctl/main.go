package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// adminctl drives the operator endpoints of a running reconciler instance.
// It is what on-call uses for exam lockdowns and manual cleanup sweeps.

type rootOptions struct {
	APIBase string
	Token   string
}

func main() {
	_ = godotenv.Load()

	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Operator CLI for the submission reconciler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				opts.Token = os.Getenv("ADMIN_JWT")
			}
			if opts.Token == "" {
				return fmt.Errorf("no operator token: pass --token or set ADMIN_JWT")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.APIBase, "api", "http://localhost:8080", "base URL of the reconciler API")
	root.PersistentFlags().StringVar(&opts.Token, "token", "", "operator JWT (defaults to ADMIN_JWT)")

	root.AddCommand(newLockCommand(opts, "lock-all", "Lock every student repository of an exercise"))
	root.AddCommand(newLockCommand(opts, "unlock-all", "Restore write access for every student repository of an exercise"))
	root.AddCommand(newCheckCommand(opts))
	root.AddCommand(newTriggerBuildCommand(opts))
	root.AddCommand(newSweepCommand(opts, "sweep-plans", "/admin/cleanup/build-plans", "Run the build plan retention sweep now"))
	root.AddCommand(newSweepCommand(opts, "sweep-git", "/admin/cleanup/git-cache", "Run the local git cache sweep now"))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLockCommand(opts *rootOptions, use string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <exercise-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/exercises/%s/%s", args[0], use)
			return post(cmd.OutOrStdout(), opts, path, nil)
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	var descFile string
	cmd := &cobra.Command{
		Use:   "check-consistency <exercise-id>",
		Short: "Verify VCS and CI artifacts of an exercise exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(descFile)
			if err != nil {
				return fmt.Errorf("read exercise description: %w", err)
			}
			path := fmt.Sprintf("/exercises/%s/check-consistency", args[0])
			return post(cmd.OutOrStdout(), opts, path, body)
		},
	}
	cmd.Flags().StringVarP(&descFile, "file", "f", "", "JSON file describing the exercise artifacts (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTriggerBuildCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-build <participation-id>",
		Short: "Rebuild the head commit of a participation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/participations/%s/trigger-build", args[0])
			return post(cmd.OutOrStdout(), opts, path, nil)
		},
	}
}

func newSweepCommand(opts *rootOptions, use string, path string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return post(cmd.OutOrStdout(), opts, path, nil)
		},
	}
}

func post(out io.Writer, opts *rootOptions, path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, opts.APIBase+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+opts.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, string(payload))
	}
	fmt.Fprintln(out, string(payload))
	return nil
}
