package main

import (
	"log"
	"os"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	logsvc "github.com/somaplus/darasa/services/logger"
	"github.com/somaplus/darasa/storage/document"
	pgdocs "github.com/somaplus/darasa/storage/document/postgres"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags))

	dbConf := document.Config(conf.Database)
	db, err := document.Open(dbConf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	defer func() { _ = db.Close() }()

	cli := &commandLine{
		conf:   conf,
		db:     db,
		svc:    account.NewService(pgdocs.NewProfileRepository(db), logger),
		logger: logger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Fatal(err.Error(), err)
		}
		os.Exit(2)
	}
}
