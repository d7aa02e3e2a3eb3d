// Command add-operator provisions a customer or team login for the
// insights endpoints. The password is read from the first line of stdin
// when -password is not given.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/fanspend/internal/adapters/repository"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/config"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		os.Stderr.WriteString("add-operator: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("add-operator", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		role     = fs.String("role", string(model.RoleCustomer), "customer or team")
		login    = fs.String("login", "", "customer email or team name")
		password = fs.String("password", "", "password; read from stdin when empty")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	pw := *password
	if pw == "" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	store, err := repository.New(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	o, err := service.New(store, opts...).CreateOperator(ctx, model.Role(*role), *login, pw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "created %s %q id=%s\n", o.Role, o.Login, o.ID)
	return err
}
