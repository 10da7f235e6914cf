package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"runclub-backend/pkg/config"
	"runclub-backend/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Recovery 恢复中间件，处理panic并返回统一的错误响应
func Recovery(cfg *config.Config, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.WithFields(logrus.Fields{
					"panic":      fmt.Sprint(rec),
					"path":       r.URL.Path,
					"request_id": middleware.GetReqID(r.Context()),
					"stack":      string(debug.Stack()),
				}).Error("Recovered from panic")

				msg := "Internal server error occurred"
				if cfg.IsDevelopment() {
					// 开发环境：显示详细错误信息
					msg = fmt.Sprintf("Internal server error: %v", rec)
				}
				utils.WriteInternalServerErrorResponse(w, msg)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
