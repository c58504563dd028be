package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for account management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
	Long:  `Commands for managing accounts directly against the database, such as bootstrapping the first Admin.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the account")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the account")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the account (use --stdin to avoid shell history)")
	createCmd.Flags().StringVar(&roleFlag, "role", "Developer", "Role: Admin, ProjectLead or Developer")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	UsersCmd.AddCommand(createCmd)
}
