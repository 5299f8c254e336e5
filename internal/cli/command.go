package cli

import (
	"fmt"
	"io"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Streams are the process output streams a command writes to.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

// NewRootCommand returns the sigstage command tree. Running the root command
// without a subcommand behaves like "sigstage stage". result receives the
// exit code of whatever ran.
func NewRootCommand(streams Streams, result *CLIResult) *cobra.Command {
	var opts stageOptions

	stageRun := func(cmd *cobra.Command, args []string) error {
		inv, err := opts.canonicalize(args)
		if err != nil {
			result.ExitCode = ExitCode(err)
			return err
		}
		if err := configureLogging(inv.LogLevel, streams.Err); err != nil {
			result.ExitCode = ExitInvalidInvocation
			return err
		}
		res, err := Execute(cmd.Context(), inv)
		*result = res
		if err != nil {
			return err
		}
		fmt.Fprintln(streams.Out, res.Result.OutputDir)
		return nil
	}

	root := &cobra.Command{
		Use:           "sigstage [OPTIONS]",
		Short:         "Stage release artifacts next to the Sigstore bundles that attest them",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          stageRun,
	}
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)
	addStageFlags(root.Flags(), &opts)

	stageCmd := &cobra.Command{
		Use:   "stage [OPTIONS]",
		Short: "Copy artifacts into the output directory and pair them with their attestations",
		Args:  cobra.ArbitraryArgs,
		RunE:  stageRun,
	}
	addStageFlags(stageCmd.Flags(), &opts)

	root.AddCommand(stageCmd, newDigestsCommand(streams, result))

	// Flag errors are invocation errors, not internal ones.
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		result.ExitCode = ExitInvalidInvocation
		return invalidInvocationf("%v", err)
	})
	return root
}

func newDigestsCommand(streams Streams, result *CLIResult) *cobra.Command {
	return &cobra.Command{
		Use:   "digests FILE",
		Short: "List the artifact digests every attestation record in FILE refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ListDigests(cmd.Context(), args[0], streams.Out)
			result.ExitCode = ExitCode(err)
			return err
		},
	}
}

func configureLogging(level string, w io.Writer) error {
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log.SetLevel(level)
}
