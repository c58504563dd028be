package users

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pixelforge/forge/cmd/forgeapi/cmd/cmdutil"
	"github.com/pixelforge/forge/internal/services/iam"
)

var (
	emailFlag    string
	nameFlag     string
	passwordFlag string
	roleFlag     string
	stdinFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with any role",
	Long: `Creates an account directly in the database. Registration over HTTP requires an
Admin session, so this is how the first Admin is created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if nameFlag == "" {
			return fmt.Errorf("--name flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		bundle, err := cmdutil.LoadBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		user, err := bundle.IAM.Register(context.Background(), iam.RegisterInput{
			Name:     nameFlag,
			Email:    emailFlag,
			Password: password,
			Role:     roleFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "User created successfully!")
		fmt.Fprintln(out, "----------------------------------------")
		fmt.Fprintf(out, "User ID: %s\n", user.ID)
		fmt.Fprintf(out, "Email: %s\n", user.Email)
		fmt.Fprintf(out, "Name: %s\n", user.Name)
		fmt.Fprintf(out, "Role: %s\n", user.Role)
		fmt.Fprintln(out, "----------------------------------------")
		return nil
	},
}
