// Package admin implements blogifyctl, the operator CLI. Registration only
// ever creates Readers, so privileged accounts are bootstrapped here.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/auth"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/go-playground/validator/v10"
)

const usage = `usage: blogifyctl [config flags] <command> [args]

commands:
  migrate                           apply database migrations
  create-admin -email E [-name N]   create an Admin user (password is prompted)
  set-role -email E -role R         change a user's role (Reader, Editor, Admin)`

// ErrUsage is returned when the command line could not be understood. The
// usage text has already been printed.
var ErrUsage = errors.New("invalid usage")

// UserStore is the part of services.UserService the CLI needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, password, name string, role models.Role) (*models.User, error)
	SetRoleByEmail(ctx context.Context, email string, role models.Role) (*models.User, error)
}

type App struct {
	users    UserStore
	migrate  func(ctx context.Context) error
	in       *bufio.Reader
	out      io.Writer
	logger   logging.Logger
	validate *validator.Validate
}

func NewApp(users UserStore, migrate func(ctx context.Context) error, in io.Reader, out io.Writer, l logging.Logger) *App {
	return &App{
		users:    users,
		migrate:  migrate,
		in:       bufio.NewReader(in),
		out:      out,
		logger:   l.With("module", "admin"),
		validate: validator.New(),
	}
}

// Run executes the subcommand in args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "migrate":
		return a.runMigrate(ctx)
	case "create-admin":
		return a.createAdmin(ctx, args[1:])
	case "set-role":
		return a.setRole(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s\n", args[0], usage)
		return ErrUsage
	}
}

func (a *App) runMigrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info(ctx, "migrations applied")
	fmt.Fprintln(a.out, "Migrations applied")
	return nil
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	fs := a.newFlagSet("create-admin")
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "display name (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	if err := a.validate.Var(*email, "required,email"); err != nil {
		return errors.New("a valid -email is required")
	}

	if *name == "" {
		n, err := GetSimpleText(a.in, "Display name", a.out)
		if err != nil {
			return fmt.Errorf("read name: %w", err)
		}
		*name = n
	}
	if *name == "" {
		return errors.New("name is required")
	}

	password, err := a.readNewPassword()
	if err != nil {
		return err
	}

	user, err := a.users.CreateUser(ctx, *email, password, *name, models.RoleAdmin)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("user %s already exists; use set-role to promote it", *email)
		}
		return fmt.Errorf("create admin: %w", err)
	}

	a.logger.Info(ctx, "admin created", "user_id", user.ID)
	fmt.Fprintf(a.out, "Created admin %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) readNewPassword() (string, error) {
	pw, err := GetPassword(a.in, "Password: ", a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len([]rune(pw)) < 6 {
		return "", errors.New("password must be at least 6 characters long")
	}
	if len(pw) > auth.MaxPasswordBytes {
		return "", fmt.Errorf("password must be at most %d bytes long", auth.MaxPasswordBytes)
	}

	again, err := GetPassword(a.in, "Repeat password: ", a.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if again != pw {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

func (a *App) setRole(ctx context.Context, args []string) error {
	fs := a.newFlagSet("set-role")
	email := fs.String("email", "", "user email")
	roleName := fs.String("role", "", "Reader, Editor or Admin")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	if *email == "" {
		return errors.New("-email is required")
	}
	role, err := models.ParseRole(*roleName)
	if err != nil {
		return fmt.Errorf("-role: %w", err)
	}

	user, err := a.users.SetRoleByEmail(ctx, *email, role)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("no user with email %s", *email)
		}
		return fmt.Errorf("set role: %w", err)
	}

	fmt.Fprintf(a.out, "%s is now %s\n", user.Email, user.Role)
	return nil
}
