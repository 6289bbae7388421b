package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/domain/record"
)

const recordKindKey = "record_kind"

// WithKind binds a route group to one record kind
func WithKind(kind record.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(recordKindKey, kind)
		c.Next()
	}
}

// recordKind returns the kind bound by WithKind, falling back to the :kind path parameter
func recordKind(c *gin.Context) (record.Kind, bool) {
	if v, ok := c.Get(recordKindKey); ok {
		if kind, ok := v.(record.Kind); ok {
			return kind, true
		}
	}
	kind, err := record.ParseKind(c.Param("kind"))
	if err != nil {
		return "", false
	}
	return kind, true
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
