package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/photoshare/middleware"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/transform"
	"github.com/cppla/photoshare/utils"
)

type errorMapping struct {
	target error
	status int
	code   int
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{services.ErrValidation, http.StatusBadRequest, 40000},
	{transform.ErrInvalidParams, http.StatusBadRequest, 40000},
	{services.ErrSelfOperation, http.StatusBadRequest, 40010},
	{services.ErrTokenRevoked, http.StatusUnauthorized, 40104},
	{services.ErrInvalidToken, http.StatusUnauthorized, 40105},
	{services.ErrBanned, http.StatusUnauthorized, 40106},
	{services.ErrInvalidRefreshToken, http.StatusUnauthorized, 40107},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, 40108},
	{services.ErrEmailNotConfirmed, http.StatusUnauthorized, 40109},
	{services.ErrForbidden, http.StatusForbidden, 40300},
	{services.ErrNoTransformedImage, http.StatusNotFound, 40402},
	{services.ErrNotFound, http.StatusNotFound, 40400},
	{services.ErrConflict, http.StatusConflict, 40900},
	{services.ErrTooManyTags, http.StatusUnprocessableEntity, 42200},
}

// respondError translates a service error into the JSON envelope.
func respondError(ctx *gin.Context, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.target.Error()
		if m.status == http.StatusBadRequest {
			// validation details are safe to show
			message = err.Error()
		}
		utils.Error(ctx, m.status, m.code, message)
		return
	}
	utils.Logger.Error("request failed",
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.FullPath()),
		zap.Error(err))
	_ = ctx.Error(err)
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

func badRequest(ctx *gin.Context) {
	utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
}

// paramID parses a positive numeric path parameter, answering 400 when it is not one.
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func currentActor(ctx *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return actor, ok
}

// serveCached writes a cached envelope if one exists.
func serveCached(ctx *gin.Context, key string) bool {
	b, ok := utils.CacheGetBytes(key)
	if !ok {
		return false
	}
	ctx.Data(http.StatusOK, "application/json", b)
	return true
}

// successCached answers with data and caches the full envelope under key.
func successCached(ctx *gin.Context, key string, data interface{}) {
	utils.CacheSetJSON(key, utils.JSONResponse{Code: 0, Message: "success", Data: data}, time.Hour)
	utils.Success(ctx, data)
}
