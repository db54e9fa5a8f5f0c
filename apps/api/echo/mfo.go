package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core/mfo"
)

type mfoApi struct {
	svc      mfo.Service
	validate *validator.Validate
}

func registerMFOAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc mfo.Service, validate *validator.Validate) {
	api := mfoApi{
		svc:      svc,
		validate: validate,
	}

	mg := g.Group("/mfos", jwt)
	mg.GET("", api.query)
	mg.POST("", api.create, adminMiddleware)
	mg.GET("/:id", api.retrieve)
}

func (api *mfoApi) query(ctx echo.Context) error {
	filter := new(mfo.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []mfo.MFO{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	mfos, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying mfos")
	}
	return ctx.JSON(http.StatusOK, mfos)
}

func (api *mfoApi) create(ctx echo.Context) error {
	var data mfo.NewMFO
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMFO")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating mfo")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *mfoApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding mfo by ID")
	}
	return ctx.JSON(http.StatusOK, m)
}
