package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/transform"
	"github.com/cppla/photoshare/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.JSONResponse {
	t.Helper()
	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{fmt.Errorf("%w: title must be 1-255 characters", services.ErrValidation), http.StatusBadRequest, 40000},
		{fmt.Errorf("%w: radius", transform.ErrInvalidParams), http.StatusBadRequest, 40000},
		{services.ErrSelfOperation, http.StatusBadRequest, 40010},
		{fmt.Errorf("%w: token is expired", services.ErrInvalidToken), http.StatusUnauthorized, 40105},
		{services.ErrTokenRevoked, http.StatusUnauthorized, 40104},
		{services.ErrBanned, http.StatusUnauthorized, 40106},
		{services.ErrInvalidRefreshToken, http.StatusUnauthorized, 40107},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, 40108},
		{services.ErrEmailNotConfirmed, http.StatusUnauthorized, 40109},
		{services.ErrForbidden, http.StatusForbidden, 40300},
		{services.ErrNotFound, http.StatusNotFound, 40400},
		{services.ErrNoTransformedImage, http.StatusNotFound, 40402},
		{services.ErrConflict, http.StatusConflict, 40900},
		{services.ErrTooManyTags, http.StatusUnprocessableEntity, 42200},
		{errors.New("disk on fire"), http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c, w := testContext(http.MethodGet, "/")
			respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	c, w := testContext(http.MethodGet, "/")
	respondError(c, fmt.Errorf("%w: token signature is invalid", services.ErrInvalidToken))
	assert.Equal(t, "invalid token", decode(t, w).Message)

	c, w = testContext(http.MethodGet, "/")
	respondError(c, errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	assert.Equal(t, "internal server error", decode(t, w).Message)

	c, w = testContext(http.MethodGet, "/")
	respondError(c, fmt.Errorf("%w: score must be between 1 and 5", services.ErrValidation))
	assert.Equal(t, "validation failed: score must be between 1 and 5", decode(t, w).Message)
}

func TestParamID(t *testing.T) {
	for _, raw := range []string{"0", "-1", "abc", ""} {
		c, w := testContext(http.MethodGet, "/")
		c.Params = gin.Params{{Key: "id", Value: raw}}
		_, ok := paramID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
	c, _ := testContext(http.MethodGet, "/")
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := paramID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}

func TestParsePagination(t *testing.T) {
	page, size := parsePagination("3", "25")
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, size)
	page, size = parsePagination("x", "1000")
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)
}

func TestStatsFallsBackToZeroOnQueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `posts`").WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(4))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `comments`").WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(9))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `tags`").WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(2))

	c, w := testContext(http.MethodGet, "/api/v1/stats")
	NewStatsController(db).GetStats(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"user_count":0,"post_count":4,"comment_count":9,"tag_count":2}}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
