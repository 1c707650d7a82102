package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errInvalidDate = errors.New("invalid date, expected YYYY-MM-DD or RFC3339")

// RateLimits holds the per-rule rate limit middlewares. A nil entry means no limit.
type RateLimits struct {
	Auth   gin.HandlerFunc
	Write  gin.HandlerFunc
	Import gin.HandlerFunc
	Upload gin.HandlerFunc
}

func passThrough(c *gin.Context) {
	c.Next()
}

func orPass(h gin.HandlerFunc) gin.HandlerFunc {
	if h == nil {
		return passThrough
	}
	return h
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// parseDateQuery reads an optional date bound. endOfDay moves a bare date to its last instant.
func parseDateQuery(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, errInvalidDate
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
