package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"propertyhub.org/internal/migrate"
	"propertyhub.org/ops/migrations"
)

func main() {
	log.SetFlags(0)
	var (
		dsn = flag.String("dsn", os.Getenv("PROPHUB_PG_DSN"), "PostgreSQL DSN")
		dir = flag.String("dir", "", "Read sql/ and seeds/ from this directory instead of the embedded set")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or PROPHUB_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var fsys fs.FS = migrations.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}
	mgr := migrate.NewManager(db, fsys, migrations.SQLDir, migrations.SeedsDir)

	var applied []string
	switch flag.Arg(0) {
	case "up":
		applied, err = mgr.Up(ctx)
	case "seed":
		applied, err = mgr.Seed(ctx)
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			fmt.Println("nothing to roll back")
			return
		}
		if name != "" {
			applied = []string{name}
		}
	case "status":
		applied, err = mgr.Status(ctx)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
	for _, item := range applied {
		fmt.Println(item)
	}
}
