// victord is the vector index server : approximate nearest-neighbor search
// over fixed-dimension vectors, served on a local unix stream endpoint.
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
	"github.com/victor-base/victordb/pkg/index"
	"github.com/victor-base/victordb/pkg/server"
	"github.com/victor-base/victordb/pkg/storage"
	"github.com/victor-base/victordb/pkg/wal"
)

func main() {
	name := flag.String("n", "", "database name (required)")
	dims := flag.Int("d", 0, "vector dimensionality (required)")
	typeName := flag.String("t", "hnsw", "index type : flat|hnsw")
	methodName := flag.String("m", "cosine", "similarity method : cosine|dotp|l2norm")
	socketPath := flag.String("u", "", "unix socket path (default : socket.unix in the database directory)")
	confPath := flag.String("c", "", "configuration file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *name == "" || *dims <= 0 {
		fmt.Fprintln(os.Stderr, "usage: victord -n <name> -d <dims> [-t flat|hnsw] [-m cosine|dotp|l2norm] [-u <socket>] [-c <config>] [-v]")
		os.Exit(2)
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	setupLogging(cfg.LogLevel, *verbose)

	typ, err := index.ParseType(*typeName)
	if err != nil {
		log.WithError(err).Fatal("parsing index type")
	}
	method, err := index.ParseMethod(*methodName)
	if err != nil {
		log.WithError(err).Fatal("parsing similarity method")
	}

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

	idx, err := openIndex(layout, typ, method, *dims)
	if err != nil {
		log.WithError(err).Fatal("opening index")
	}
	log.WithFields(log.Fields{
		"database": *name,
		"type":     idx.Type().String(),
		"method":   idx.Method().String(),
		"dims":     idx.Dims(),
		"records":  idx.Size(),
	}).Info("index ready")

	socket := *socketPath
	if socket == "" {
		socket = layout.Socket()
	}

	logger := log.NewEntry(log.StandardLogger())
	machine := server.NewIndexMachine(idx, layout.IndexSnapshot(), logger)
	walWriter := wal.NewWriter(layout.IndexWAL(), cfg.SyncOnAppend, logger)
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

// openIndex imports the snapshot when one exists, otherwise allocates a
// fresh index with the requested parameters. A snapshot wins over flags :
// type, method and dimensionality are immutable per database.
func openIndex(layout storage.Layout, typ index.Type, method index.Method, dims int) (index.Index, error) {
	if _, err := os.Stat(layout.IndexSnapshot()); err == nil {
		idx, err := index.Import(layout.IndexSnapshot())
		if err != nil {
			return nil, err
		}
		if idx.Dims() != dims {
			log.WithFields(log.Fields{"snapshot": idx.Dims(), "requested": dims}).
				Warn("ignoring -d, dimensionality is fixed by the existing database")
		}
		return idx, nil
	}
	return index.New(typ, method, dims)
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
