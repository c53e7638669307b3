package middlewares

import (
	"bytes"
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/gw-users/internal/logger"
)

// TxMiddleware runs the handler inside a database transaction.
// The response is held back until the transaction is finished. A 4xx status
// or a panic rolls the transaction back; any other status commits it, so a
// side effect failing after the writes (such as email delivery) does not undo
// them. Hooks registered with AfterCommit run only after a successful commit.
func TxMiddleware(db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tx, err := db.BeginTxx(r.Context(), nil)
			if err != nil {
				logger.Log.Errorw("failed to begin transaction", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			defer func() {
				if rec := recover(); rec != nil {
					tx.Rollback()
					panic(rec)
				}
			}()

			buf := &bufferedWriter{header: w.Header(), statusCode: http.StatusOK}
			hooks := &commitHooks{}
			ctx := setTxToContext(r.Context(), tx)
			ctx = context.WithValue(ctx, hooksKey, hooks)
			r = r.WithContext(ctx)

			next.ServeHTTP(buf, r)

			if buf.statusCode >= 400 && buf.statusCode < 500 {
				// postgres aborts the tx after a failed statement
				if err := tx.Rollback(); err != nil {
					logger.Log.Errorw("failed to rollback transaction", "error", err, "status", buf.statusCode)
				}
			} else {
				if err := tx.Commit(); err != nil {
					logger.Log.Errorw("failed to commit transaction", "error", err, "status", buf.statusCode)
					w.Header().Del("Content-Type")
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				hooks.run()
			}

			w.WriteHeader(buf.statusCode)
			if buf.body.Len() > 0 {
				if _, err := w.Write(buf.body.Bytes()); err != nil {
					logger.Log.Errorw("failed to write response", "error", err)
				}
			}
		})
	}
}

// bufferedWriter records the status and body written by a handler.
type bufferedWriter struct {
	header      http.Header
	statusCode  int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.statusCode = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

// contextKey is an unexported type for keys in context
type contextKey struct{ name string }

var (
	txKey    = contextKey{"tx"}
	hooksKey = contextKey{"commit-hooks"}
)

type commitHooks struct {
	fns []func()
}

func (h *commitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
}

// AfterCommit defers fn until the request transaction commits. It is dropped
// when the transaction rolls back. Outside TxMiddleware fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(hooksKey).(*commitHooks)
	if !ok {
		fn()
		return
	}
	hooks.fns = append(hooks.fns, fn)
}

// setTxToContext stores a transaction in the context
func setTxToContext(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetTxFromContext retrieves the transaction from the context. Returns nil if not present.
func GetTxFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey).(*sqlx.Tx)
	return tx
}
