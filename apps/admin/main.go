package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/mfo"
	"github.com/trezcool/finadmin/core/satellite"
	"github.com/trezcool/finadmin/core/user"
	logsvc "github.com/trezcool/finadmin/services/logger"
	"github.com/trezcool/finadmin/storage/database"
	sqlxrepos "github.com/trezcool/finadmin/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	ctx := context.Background()
	errAndDie(logger, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(ctx, conf)
	errAndDie(logger, err)

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	mfoSvc := mfo.NewService(sqlxrepos.NewMFORepository(db))

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db)),
		mfoSvc: mfoSvc,
		// seeding does not notify
		satelliteSvc: satellite.NewService(satellite.Deps{
			Repo:   sqlxrepos.NewSatelliteRepository(db),
			MFOSvc: mfoSvc,
			Logger: logger,
		}),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", cli.describe(err))
		}
		os.Exit(1)
	}
}

// describe renders validation errors field by field.
func (cli *commandLine) describe(err error) string {
	fldErrs := make(map[string]string)
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs = core.TranslateErrors(origErr, cli.translator)
	case *core.ValidationError:
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
	}
	if len(fldErrs) == 0 {
		return err.Error()
	}

	flds := make([]string, 0, len(fldErrs))
	for fld := range fldErrs {
		flds = append(flds, fld)
	}
	sort.Strings(flds)
	msg := "invalid input"
	for _, fld := range flds {
		msg += fmt.Sprintf("\n  %s: %s", fld, fldErrs[fld])
	}
	return msg
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
