package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mickamy/rowmap/internal/config"
	"github.com/mickamy/rowmap/internal/migrations"
	"github.com/mickamy/rowmap/orm"
	"github.com/mickamy/rowmap/scenario"
)

var version = "dev"

const usage = `usage: rowmap [flags] <command>

commands:
  migrate up      apply pending schema migrations
  migrate down    roll back schema migrations (-limit, default 1)
  demo            run every scenario against the connection
  version         print version and exit

flags:
`

func main() {
	conn := flag.String("conn", config.DefaultName, "named connection (read from ROWMAP_<NAME>_* variables)")
	envFile := flag.String("env", "", "additional .env file to load")
	debug := flag.Bool("debug", false, "log every statement")
	limit := flag.Int("limit", 1, "maximum number of migrations to roll back; 0 for all")
	users := flag.Int("users", 1000, "number of users the demo inserts")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Println("rowmap", version)
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	c, err := config.Load(*conn, envFiles...)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := c.Open(ctx)
	if err != nil {
		log.Fatalf("open %s: %v", c.Name, err)
	}
	if *debug {
		db = db.Debug(orm.NewSlogLogger(logger))
	}

	err = run(ctx, db, args, *limit, *users, logger)
	_ = db.Close()
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, db *orm.DB, args []string, limit, users int, logger *slog.Logger) error {
	switch args[0] {
	case "migrate":
		if len(args) < 2 {
			return errors.New("migrate: missing direction (up or down)")
		}
		var (
			n   int
			err error
		)
		switch args[1] {
		case "up":
			n, err = migrations.Up(db)
		case "down":
			n, err = migrations.Down(db, limit)
		default:
			return fmt.Errorf("migrate: unknown direction %q", args[1])
		}
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "migrations applied", slog.String("direction", args[1]), slog.Int("count", n))
		return nil
	case "demo":
		return scenario.RunAll(ctx, db, users, logger)
	}
	return fmt.Errorf("unknown command %q", args[0])
}
