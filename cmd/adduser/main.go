// Command adduser creates a user directly in the database. It is the only
// way to create an administrator.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Bahdan321/Study-Practice-3-course/internal/config"
	"github.com/Bahdan321/Study-Practice-3-course/internal/database"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
)

const minPasswordLength = 8

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "adduser: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	username := flag.String("user", "", "username (required)")
	email := flag.String("email", "", "email address (required)")
	password := flag.String("password", "", "password; prompted for when empty")
	admin := flag.Bool("admin", false, "grant the admin role")
	flag.Parse()

	if *username == "" || *email == "" {
		flag.Usage()
		return fmt.Errorf("-user and -email are required")
	}

	if *password == "" {
		p, err := readPassword()
		if err != nil {
			return err
		}
		*password = p
	}
	if len(*password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.Migrate(); err != nil {
		return err
	}

	role := models.UserRoleUser
	if *admin {
		role = models.UserRoleAdmin
	}

	user, err := services.NewUserService(dbManager.DB()).CreateUser(*username, *email, *password, role)
	if err != nil {
		return err
	}

	logger.Get().Infow("User created", "id", user.ID, "username", user.Username, "role", user.Role)
	return nil
}

// readPassword prompts twice without echo on a terminal and reads one line
// from stdin otherwise.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
