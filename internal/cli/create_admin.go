package cli

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/openshelf/librarian/internal/auth"
	"github.com/openshelf/librarian/internal/config"
	"github.com/openshelf/librarian/internal/database"
)

// CreateAdminCommand creates the admin account from the command line.
// Useful for headless provisioning and for recovery when the web setup
// flow is unreachable.
type CreateAdminCommand struct {
	Username     string
	Email        string
	Phone        string
	DatabasePath string
}

func NewCreateAdminCommand() *CreateAdminCommand {
	return &CreateAdminCommand{}
}

func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)

	fs.StringVar(&cmd.Username, "username", "", "Admin username (required)")
	fs.StringVar(&cmd.Email, "email", "", "Admin email address (required)")
	fs.StringVar(&cmd.Phone, "phone", "", "Admin phone number")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-admin -username <name> -email <address> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create the administrator account. The password is read from the\n")
		fmt.Fprintf(os.Stderr, "terminal, or from the ADMIN_PASSWORD environment variable when set.\n\n")
		fmt.Fprintf(os.Stderr, "Creation is refused while an active admin exists; deactivate the\n")
		fmt.Fprintf(os.Stderr, "current admin first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Username == "" {
		fs.Usage()
		return fmt.Errorf("-username is required")
	}
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("-email is required")
	}

	return nil
}

func (cmd *CreateAdminCommand) Run() error {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	service := auth.NewService(db.DB, cfg.Auth)

	admin, err := service.RegisterAdmin(cmd.Username, cmd.Email, cmd.Phone, password)
	if err != nil {
		return err
	}

	fmt.Printf("Created admin %q (id %d)\n", admin.Username, admin.ID)
	return nil
}
