package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"expensetracker/internal/auth"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/db"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/handler"
	"expensetracker/internal/model"
	"expensetracker/internal/repository"
	"expensetracker/internal/service"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	expensesPath := fs.String("expenses", "", "JSON file with an array of expenses to import (optional)")
	dbPath := fs.String("db", "", "SQLite database file (overrides DB_DRIVER and SQLITE_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: seed -username <username> -email <email> [-password <password>] [-expenses <file.json>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: username, email")
	}

	var expenses []handler.CreateExpenseRequest
	if *expensesPath != "" {
		var err error
		expenses, err = readExpenses(*expensesPath)
		if err != nil {
			return err
		}
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	cfg := config.Load()
	if *dbPath != "" {
		cfg.DBDriver = config.DriverSQLite
		cfg.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	gormDB, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	userRepo := repository.NewUserRepository(gormDB)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	authService := service.NewAuthService(userRepo, jwtService, cfg.BcryptCost, logger)
	expenseService := service.NewExpenseService(repository.NewExpenseRepository(gormDB), userRepo, cache.Disabled(), logger)

	ctx := context.Background()
	result, err := authService.Register(ctx, *username, *email, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateIdentity) {
			return fmt.Errorf("user %s or email %s already exists", *username, *email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", result.User.Username, result.User.ID)

	for i, req := range expenses {
		input := model.ExpenseInput{
			Description: req.Description,
			Amount:      req.Amount,
			Category:    model.Category(strings.TrimSpace(req.Category)),
		}
		if req.Date != nil && !req.Date.IsZero() {
			input.Date = &req.Date.Time
		}
		if _, err := expenseService.Create(ctx, result.User.ID, input); err != nil {
			return fmt.Errorf("expense %d: %w", i+1, err)
		}
	}
	if len(expenses) > 0 {
		fmt.Fprintf(stdout, "Imported %d expenses\n", len(expenses))
	}

	return nil
}

func readExpenses(path string) ([]handler.CreateExpenseRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expenses file: %w", err)
	}
	var expenses []handler.CreateExpenseRequest
	if err := json.Unmarshal(data, &expenses); err != nil {
		return nil, fmt.Errorf("failed to parse expenses file: %w", err)
	}
	return expenses, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
