package main

import (
	"flag"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/entrenia/entrenia-core/pkg/config"
	"github.com/entrenia/entrenia-core/pkg/logger"
)

// Aplica las migraciones del esquema. El DSN sale de la configuración de la
// app (DATABASE_URL o DB_*); el comando de los flags.
func main() {
	var (
		command = flag.String("command", "up", "Comando de migración (up, down, force)")
		version = flag.Int("version", 1, "Versión para force")
		dir     = flag.String("dir", "migrations", "Directorio de migraciones")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})

	pgxCfg, err := pgx.ParseConfig(cfg.DB.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("parsear DSN")
	}
	db := stdlib.OpenDB(*pgxCfg)
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("crear driver de migración")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, "postgres", driver)
	if err != nil {
		log.Fatal().Err(err).Msg("crear migrador")
	}

	switch *command {
	case "up":
		log.Info().Msg("aplicando migraciones...")
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatal().Err(err).Msg("aplicar migraciones")
		}
		log.Info().Msg("migraciones aplicadas")
	case "down":
		log.Info().Msg("revirtiendo migraciones...")
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatal().Err(err).Msg("revertir migraciones")
		}
		log.Info().Msg("migraciones revertidas")
	case "force":
		if err := m.Force(*version); err != nil {
			log.Fatal().Err(err).Msg("forzar versión")
		}
		log.Info().Int("version", *version).Msg("versión forzada")
	default:
		log.Fatal().Str("command", *command).Msg("comando desconocido")
	}
}
