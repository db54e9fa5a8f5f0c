package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/finadmin/apps/api/echo"
	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
	emailsvc "github.com/trezcool/finadmin/services/email"
	logsvc "github.com/trezcool/finadmin/services/logger"
	"github.com/trezcool/finadmin/storage/database"
	inmemdb "github.com/trezcool/finadmin/storage/database/inmem"
	sqlxrepos "github.com/trezcool/finadmin/storage/database/sqlx"
)

type repositories struct {
	user      user.Repository
	mfo       mfo.Repository
	satellite satellite.Repository
	close     func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrSvc := user.NewService(repos.user)
	mfoSvc := mfo.NewService(repos.mfo)
	satelliteSvc := satellite.NewService(satellite.Deps{
		Repo:       repos.satellite,
		MFOSvc:     mfoSvc,
		MailSvc:    mailSvc,
		Recipients: core.ParseAddresses(conf.Notify.Recipients),
		Logger:     logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		MFOSvc:       mfoSvc,
		SatelliteSvc: satelliteSvc,
		Validate:     validate,
		Translator:   translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories uses postgres, or the in-memory database when the engine is "inmem".
func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		return repositories{
			user:      inmemdb.NewUserRepository(db),
			mfo:       inmemdb.NewMFORepository(db),
			satellite: inmemdb.NewSatelliteRepository(db),
			close:     func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		user:      sqlxrepos.NewUserRepository(db),
		mfo:       sqlxrepos.NewMFORepository(db),
		satellite: sqlxrepos.NewSatelliteRepository(db),
		close:     db.Close,
	}, nil
}
