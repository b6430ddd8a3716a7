package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/auth"
)

// OperatorOptions holds flags for the operator commands.
type OperatorOptions struct {
	*RootOptions
	DB string
}

// NewOperatorCommand creates the operator command group.
func NewOperatorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OperatorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage dashboard operator credentials",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (overrides store settings)")

	cmd.AddCommand(&cobra.Command{
		Use:   "set-password <username>",
		Short: "Create an operator or replace its password",
		Long: `Read a password from the first line of standard input and store its
bcrypt hash for <username>.

Example:
  printf '%s\n' "$TALLY_OPERATOR_PASSWORD" | tally operator set-password admin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPassword(opts, args[0], cmd)
		},
	})

	return cmd
}

func runSetPassword(opts *OperatorOptions, username string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	ctx := cmd.Context()

	password, err := readPassword(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read password", err)
	}

	cfg, err := loadConfig(opts.RootOptions, opts.DB)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := auth.NewService(st, nil, logger)
	if err := svc.SetPassword(ctx, username, password); err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			_ = formatter.Error(ErrCodeInput, err.Error(), nil)
			return WrapExitError(ExitCommandError, "password rejected", err)
		}
		return WrapExitError(ExitCommandError, "failed to store credential", err)
	}

	if formatter.JSON() {
		return formatter.Success(map[string]string{"operator": username})
	}
	fmt.Fprintf(formatter.Writer, "✓ Password set for %s\n", username)
	return nil
}

// readPassword reads the first line of stdin without its line ending.
func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password on standard input")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
