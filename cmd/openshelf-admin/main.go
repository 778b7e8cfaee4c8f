// Package main is the entry point for the OpenShelf admin CLI.
// It talks to the database directly, so it works without a running
// server and without an API credential. Guard access to it the way
// you guard access to the database.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/database"
	"github.com/openshelf/openshelf/internal/pkg/secret"
	"github.com/openshelf/openshelf/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "openshelf-admin",
		Short:         "Administrative commands for OpenShelf",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(versionCmd(), userCmd(), bookCmd(), secretCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openServices loads config and wires the service layer.
func openServices(ctx context.Context) (*database.Database, *service.UserService, *service.BookService, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	// The CLI stays quiet unless something goes wrong.
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Migrator.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	users := service.NewUserService(db.Repos.Users, logger)
	books := service.NewBookService(db.Repos.Books, db.Repos.Loans, logger)
	return db, users, books, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("OpenShelf Admin CLI\n")
			fmt.Printf("Version: %s\n", Version)
			fmt.Printf("Build Time: %s\n", BuildTime)
			fmt.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userCreateCmd(), userPromoteCmd(), userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		isAdmin  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword()
			if err != nil {
				return err
			}

			db, users, _, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := users.Register(cmd.Context(), service.RegisterInput{
				Username: username,
				Email:    email,
				Password: password,
				IsAdmin:  isAdmin,
			})
			if err != nil {
				return err
			}

			fmt.Printf("created user %d (%s)", user.ID, user.Username)
			if user.IsAdmin {
				fmt.Print(" [admin]")
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin privileges")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func userPromoteCmd() *cobra.Command {
	var demote bool

	cmd := &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant or revoke admin privileges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, users, _, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := users.SetAdmin(cmd.Context(), user.ID, !demote); err != nil {
				return err
			}

			if demote {
				fmt.Printf("revoked admin from %s\n", user.Username)
			} else {
				fmt.Printf("granted admin to %s\n", user.Username)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&demote, "demote", false, "revoke instead of grant")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, users, _, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			out, err := users.List(cmd.Context(), service.ListUsersInput{Limit: 100})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tCREATED")
			for _, u := range out.Users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%s\n",
					u.ID, u.Username, u.Email, u.IsAdmin, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(bookAddCmd())
	return cmd
}

func bookAddCmd() *cobra.Command {
	var (
		title  string
		author string
		isbn   string
		pages  int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, books, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			book, err := books.Create(cmd.Context(), service.CreateBookInput{
				Title:     title,
				Author:    author,
				ISBN:      isbn,
				PageCount: pages,
			})
			if err != nil {
				return err
			}

			fmt.Printf("created book %d (%s)\n", book.ID, book.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "book title (required)")
	cmd.Flags().StringVar(&author, "author", "", "book author (required)")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN, 10 or 13 characters (required)")
	cmd.Flags().IntVar(&pages, "pages", 0, "page count (required)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	_ = cmd.MarkFlagRequired("isbn")
	_ = cmd.MarkFlagRequired("pages")

	return cmd
}

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a token signing secret",
		Long:  "Generate a random signing secret suitable for OPENSHELF_AUTH_JWT_SECRET.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := secret.Generate()
			if err != nil {
				return err
			}
			fmt.Println(s)
			return nil
		},
	}
}

// promptPassword reads the password twice without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}
