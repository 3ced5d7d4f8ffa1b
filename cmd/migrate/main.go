package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	user := env.GetEnv("DB_USER", "root")
	password := env.GetEnv("DB_PASSWORD", "")
	host := env.GetEnv("DB_HOST", "localhost")
	port := env.GetEnv("DB_PORT", "3306")
	name := env.GetEnv("DB_NAME", "ledgerlink")

	dsn := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true", user, password, host, port, name)

	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		fmt.Printf("Failed to initialize migrations: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if len(os.Args) < 3 {
			fmt.Println("force requires a version argument")
			os.Exit(1)
		}
		version, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			fmt.Printf("Invalid version: %v\n", convErr)
			os.Exit(1)
		}
		err = m.Force(version)
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			fmt.Printf("Failed to read version: %v\n", verErr)
			os.Exit(1)
		}
		fmt.Printf("Version: %d, dirty: %v\n", version, dirty)
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil && err != migrate.ErrNoChange {
		fmt.Printf("Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration finished")
}

func usage() {
	fmt.Println("Usage: migrate <up|down|force <version>|version>")
}
