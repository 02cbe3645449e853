// victorkv is the key-value table server : a binary-safe store served on a
// local unix stream endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/victor-base/victordb/pkg/config"
	"github.com/victor-base/victordb/pkg/server"
	"github.com/victor-base/victordb/pkg/storage"
	"github.com/victor-base/victordb/pkg/table"
	"github.com/victor-base/victordb/pkg/wal"
)

func main() {
	name := flag.String("n", "", "database name (required)")
	socketPath := flag.String("u", "", "unix socket path (default : socket.unix in the database directory)")
	confPath := flag.String("c", "", "configuration file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: victorkv -n <name> [-u <socket>] [-c <config>] [-v]")
		os.Exit(2)
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	setupLogging(cfg.LogLevel, *verbose)

	layout, err := storage.NewLayout(cfg.Root, *name)
	if err != nil {
		log.WithError(err).Fatal("resolving database layout")
	}
	if err := layout.EnsureDir(); err != nil {
		log.WithError(err).Fatal("preparing database directory")
	}
	lock, err := layout.Acquire()
	if err != nil {
		log.WithError(err).Fatal("locking database")
	}
	defer lock.Release()

	tbl, err := openTable(layout, *name)
	if err != nil {
		log.WithError(err).Fatal("opening table")
	}
	log.WithFields(log.Fields{
		"database": *name,
		"records":  tbl.Size(),
	}).Info("table ready")

	socket := *socketPath
	if socket == "" {
		socket = layout.Socket()
	}

	logger := log.NewEntry(log.StandardLogger())
	machine := server.NewTableMachine(tbl, layout.TableSnapshot(), logger)
	walWriter := wal.NewWriter(layout.TableWAL(), cfg.SyncOnAppend, logger)
	srv := server.New(machine, walWriter, server.Options{
		Socket:          socket,
		MaxConnections:  cfg.MaxConnections,
		ExportThreshold: cfg.ExportThreshold,
		Logger:          logger,
	})
	if err := srv.Recover(); err != nil {
		log.WithError(err).Fatal("recovering from wal")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	if err := srv.Serve(ctx); err != nil {
		log.WithError(err).Fatal("serving")
	}
}

func openTable(layout storage.Layout, name string) (*table.Table, error) {
	if _, err := os.Stat(layout.TableSnapshot()); err == nil {
		return table.Load(name, layout.TableSnapshot())
	}
	return table.New(name)
}

func setupLogging(level string, verbose bool) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	if verbose {
		parsed = log.DebugLevel
	}
	log.SetLevel(parsed)
}
