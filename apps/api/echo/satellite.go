package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core/relation"
	"github.com/trezcool/finadmin/core/satellite"
)

type satelliteApi struct {
	svc      satellite.Service
	validate *validator.Validate
}

func registerSatelliteAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc satellite.Service, validate *validator.Validate) {
	api := satelliteApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/satellite-keys", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware)
	sg.GET("/:id", api.retrieve)
	sg.PATCH("/:id/mfos", api.updateMFOs, editorMiddleware)
}

func (api *satelliteApi) query(ctx echo.Context) error {
	filter := new(satellite.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []satellite.Key{})
	}
	filter.Clean()

	keys, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying satellite keys")
	}
	return ctx.JSON(http.StatusOK, keys)
}

func (api *satelliteApi) create(ctx echo.Context) error {
	var data satellite.NewKey
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewKey")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	key, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating satellite key")
	}
	return ctx.JSON(http.StatusCreated, key)
}

func (api *satelliteApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	key, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding satellite key by ID")
	}
	return ctx.JSON(http.StatusOK, key)
}

// updateMFOs applies a {"added": [...], "removed": [...]} change-set to the key's MFOs.
func (api *satelliteApi) updateMFOs(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var cs relation.ChangeSet
	if err = ctx.Bind(&cs); err != nil {
		return errors.Wrap(err, "binding to ChangeSet")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	key, err := api.svc.ApplyMFOChanges(ctx.Request().Context(), id, cs, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "applying mfo changes")
	}
	return ctx.JSON(http.StatusOK, key)
}
