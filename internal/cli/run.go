package cli

import (
	"context"
	"io"
)

// Run is a high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (CLIResult, error) {
	// Anything that fails before a command body runs is an argument problem.
	res := CLIResult{ExitCode: ExitInvalidInvocation}
	cmd := NewRootCommand(Streams{Out: stdout, Err: stderr}, &res)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return res, err
	}
	res.ExitCode = ExitSuccess
	return res, nil
}
