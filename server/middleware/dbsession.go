package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/appcore/database"
	apperrors "github.com/kbukum/appcore/errors"
	"github.com/kbukum/appcore/logger"
)

const sessionKey = "appcore.db_session"

// DBSession opens a database session per request and stores it on the gin
// context. After the handler chain it commits when no error was recorded
// with c.Error and the status is below 500, and rolls back otherwise. The
// session is always closed. A panic rolls back and propagates.
//
// The handler's response is buffered until the commit finishes, so a failed
// commit replaces it with an error response.
func DBSession(maker database.SessionMaker, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess, err := maker(ctx)
		if err != nil {
			log.WithContext(ctx).Error("Failed to open database session", map[string]interface{}{
				"error": err.Error(),
			})
			appErr := apperrors.ServiceUnavailable("database").WithCause(err)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}

		out := c.Writer
		buf := newBufferedWriter(out)
		header := out.Header().Clone()

		defer func() {
			c.Writer = out
			if rec := recover(); rec != nil {
				_ = sess.Rollback()
				_ = sess.Close()
				panic(rec)
			}
			if err := sess.Close(); err != nil {
				log.WithContext(ctx).Warn("Database session close failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()

		c.Set(sessionKey, sess)
		c.Writer = buf
		c.Next()
		c.Writer = out

		if len(c.Errors) == 0 && buf.Status() < http.StatusInternalServerError {
			if err := sess.Commit(); err != nil {
				log.WithContext(ctx).Error("Database commit failed", map[string]interface{}{
					"error": err.Error(),
				})
				_ = c.Error(err)
				resetHeader(out.Header(), header)
				appErr := database.FromDatabase(err, "session")
				c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
				return
			}
		} else if err := sess.Rollback(); err != nil {
			log.WithContext(ctx).Error("Database rollback failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		if err := buf.flush(); err != nil {
			log.WithContext(ctx).Warn("Failed to write response", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// resetHeader drops the headers a handler set, keeping those from before it ran.
func resetHeader(h, before http.Header) {
	for k := range h {
		delete(h, k)
	}
	for k, v := range before {
		h[k] = v
	}
}

// SessionFrom returns the request's database session, or nil when the
// route is not behind DBSession.
func SessionFrom(c *gin.Context) *database.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*database.Session); ok {
			return s
		}
	}
	return nil
}
