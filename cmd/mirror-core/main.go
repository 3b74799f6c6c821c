package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/xKoRx/mirror/etcd"
	"github.com/xKoRx/mirror/internal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	usage := `mirror-core - servicio de coordinación de Mirror

Uso:
  mirror-core serve
  mirror-core migrate [--down]
  mirror-core reconcile run --account <id> [--timeout 30s] [--json]
  mirror-core config get|set|del <clave> [<valor>] [--env production]

Comandos:
  serve       Levanta el servicio HTTP del core.
  migrate     Aplica (o revierte con --down) las migraciones de esquema.
  reconcile   Ejecuta una reconciliación puntual para una cuenta.
  config      Lee o modifica variables del namespace en etcd.
`
	fmt.Fprintln(os.Stderr, usage)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error parseando flags: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := internal.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error cargando configuración: %v\n", err)
		os.Exit(1)
	}

	core, err := internal.NewCore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error inicializando core: %v\n", err)
		os.Exit(1)
	}

	// Shutdown ordenado ante SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := core.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "core terminó con error: %v\n", err)
		_ = core.Stop()
		os.Exit(1)
	}

	if err := core.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error cerrando core: %v\n", err)
		os.Exit(1)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	down := fs.Bool("down", false, "Revertir la última migración en lugar de aplicar")
	source := fs.String("source", "file://db/migrations", "Origen de las migraciones")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error parseando flags: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := internal.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error cargando configuración: %v\n", err)
		os.Exit(1)
	}

	m, err := migrate.New(*source, cfg.PostgresConnStr())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error inicializando migrador: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stderr, "error ejecutando migraciones: %v\n", err)
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		fmt.Fprintf(os.Stderr, "error consultando versión de esquema: %v\n", verr)
		os.Exit(1)
	}
	fmt.Printf("Esquema en versión %d (dirty=%v)\n", version, dirty)
}

func runReconcile(args []string) {
	if len(args) == 0 || args[0] != "run" {
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("reconcile run", flag.ExitOnError)
	accountID := fs.String("account", "", "Cuenta (account_id) a reconciliar")
	timeout := fs.Duration("timeout", 30*time.Second, "Timeout de la corrida")
	jsonOutput := fs.Bool("json", false, "Imprimir el resultado en formato JSON")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parseando flags: %v\n", err)
		os.Exit(1)
	}

	if *accountID == "" {
		fmt.Fprintln(os.Stderr, "--account es requerido")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := internal.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error cargando configuración: %v\n", err)
		os.Exit(1)
	}

	core, err := internal.NewCore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error inicializando core: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if stopErr := core.Stop(); stopErr != nil {
			fmt.Fprintf(os.Stderr, "error cerrando core: %v\n", stopErr)
		}
	}()

	result, err := core.Reconcile(ctx, *accountID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reconciliando cuenta: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error serializando resultado: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Cuenta: %s\n", *accountID)
	fmt.Printf("Balance inicial derivado: %.2f\n", result.DerivedStartBalance)
	fmt.Printf("PnL total: %.2f\n", result.TotalPnL)
	fmt.Printf("Trades actualizados: %d\n", result.TradesUpdated)
	fmt.Printf("Errores: %d\n", result.Errors)
}

func runConfig(args []string) {
	if len(args) < 2 {
		printUsage()
		os.Exit(1)
	}

	action := args[0]
	key := args[1]
	rest := args[2:]

	var value string
	if action == "set" {
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "config set requiere un valor")
			os.Exit(1)
		}
		value = rest[0]
		rest = rest[1:]
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	env := fs.String("env", "", "Entorno del namespace (default: variable ENV)")
	endpoints := fs.String("endpoints", "", "Endpoints de etcd separados por coma (default: ETCD_ENDPOINTS)")
	timeout := fs.Duration("timeout", 5*time.Second, "Timeout de la operación")
	prefix := fs.String("prefix", "", "Prefijo de namespace explícito (anula app/env)")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "error parseando flags: %v\n", err)
		os.Exit(1)
	}

	opts := []etcd.Option{
		etcd.WithApp("mirror"),
		etcd.WithTimeout(*timeout),
	}
	if *env != "" {
		opts = append(opts, etcd.WithEnv(*env))
	}
	if *endpoints != "" {
		opts = append(opts, etcd.WithEndpoints(strings.Split(*endpoints, ",")...))
	}
	if *prefix != "" {
		opts = append(opts, etcd.WithPrefix(*prefix))
	}

	client, err := etcd.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creando cliente etcd: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch action {
	case "get":
		val, err := client.GetVar(ctx, key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error leyendo %s%s: %v\n", client.NamespacePrefix(), key, err)
			os.Exit(1)
		}
		fmt.Println(val)
	case "set":
		if err := client.SetVar(ctx, key, value); err != nil {
			fmt.Fprintf(os.Stderr, "error escribiendo %s%s: %v\n", client.NamespacePrefix(), key, err)
			os.Exit(1)
		}
		fmt.Printf("%s%s = %s\n", client.NamespacePrefix(), key, value)
	case "del":
		if err := client.DeleteVar(ctx, key); err != nil {
			fmt.Fprintf(os.Stderr, "error eliminando %s%s: %v\n", client.NamespacePrefix(), key, err)
			os.Exit(1)
		}
		fmt.Printf("%s%s eliminado\n", client.NamespacePrefix(), key)
	default:
		fmt.Fprintf(os.Stderr, "acción desconocida: %s\n", action)
		printUsage()
		os.Exit(1)
	}
}
