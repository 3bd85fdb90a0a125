// Command prism-migrate applies the ledger's PostgreSQL schema,
// grounded on the teacher's cmd/warren-migrate (flag-based, no cobra,
// log.Fatalf-on-error) but driving github.com/pressly/goose/v3 against
// embedded SQL files instead of hand-rolled BoltDB bucket surgery,
// since the ledger's migrations are schema changes, not a one-off data
// reshape.
package main

import (
	"database/sql"
	"embed"
	"flag"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/prismlabs/prism/pkg/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	command = flag.String("command", "up", "Migration command: up, down, status")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Prism Ledger Migration Tool")
	log.Println("===========================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("setting dialect: %v", err)
	}

	switch *command {
	case "up":
		if err := goose.Up(db, "migrations"); err != nil {
			log.Fatalf("applying migrations: %v", err)
		}
		log.Println("✓ Migrations applied successfully")
	case "down":
		if err := goose.Down(db, "migrations"); err != nil {
			log.Fatalf("reverting migration: %v", err)
		}
		log.Println("✓ Last migration reverted")
	case "status":
		if err := goose.Status(db, "migrations"); err != nil {
			log.Fatalf("reading migration status: %v", err)
		}
	default:
		log.Fatalf("unknown command %q (expected up, down, or status)", *command)
	}
}
