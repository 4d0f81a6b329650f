package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yatube-project/yatube/utils"
)

type cachedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *cachedWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *cachedWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CachePage serves the stored page body for key while it is fresh and
// otherwise captures the handler's rendered output for ttl. Writes do not
// invalidate the entry; staleness within ttl is accepted.
func CachePage(store utils.ByteCache, key string, ttl time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if b, ok := store.Get(key); ok {
			ctx.Data(http.StatusOK, "text/html; charset=utf-8", b)
			ctx.Abort()
			return
		}

		writer := &cachedWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = writer
		ctx.Next()

		if writer.Status() == http.StatusOK {
			store.Set(key, writer.body.Bytes(), ttl)
		}
	}
}
