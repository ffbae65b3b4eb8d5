package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zerohunger/zerohunger-backend/api/responses"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	pkgredis "github.com/zerohunger/zerohunger-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	// DefaultIdempotencyTTL is how long a completed response stays replayable.
	DefaultIdempotencyTTL = 24 * time.Hour

	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = time.Minute

	maxIdempotencyKeyLength = 255
	maxIdempotentBodyBytes  = 1 << 20
)

// storedResponse is the Redis value for one Idempotency-Key. A pending entry
// marks a request that is still running.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotent makes a mutating route safe to retry. When the caller sends an
// Idempotency-Key, the first response below 500 is kept for ttl and replayed
// for the same caller, method, path and body. Reusing a key with a different
// body, or while the first request is still running, is a 409. Requests
// without the header pass straight through, as does everything when store
// is nil.
func Idempotent(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLength {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeBadRequest, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "read request body"))
				return
			}
			if len(body) > maxIdempotentBodyBytes {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeBadRequest, "request body too large").
					WithDetails(map[string]any{"limit_bytes": maxIdempotentBodyBytes}))
				return
			}
			r.Body = io.NopCloser(strings.NewReader(string(body)))

			key := store.IdempotencyKey(strings.Join([]string{"http", UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), header)
			hash := requestHash(body)

			prior, err := lookup(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup"))
				return
			}
			if prior != nil {
				replayOrReject(ctx, logg, w, prior, hash)
				return
			}

			marker, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
			won, err := store.SetNX(ctx, key, string(marker), min(pendingTTL, ttl))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency reserve"))
				return
			}
			if !won {
				responses.WriteError(ctx, logg, w, errInFlight)
				return
			}

			rec := &recorder{ResponseWriter: w, capture: true}
			next.ServeHTTP(rec, r)

			persist(context.WithoutCancel(ctx), store, logg, key, ttl, storedResponse{
				RequestHash: hash,
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
		})
	}
}

var errInFlight = pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still in progress")

func lookup(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, prior *storedResponse, hash string) {
	switch {
	case prior.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request body"))
	case prior.Pending:
		responses.WriteError(ctx, logg, w, errInFlight)
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

// persist overwrites the pending marker with the final response in place.
// Server errors only clear the marker so the caller can retry with the same
// key. A marker that already expired is recreated.
func persist(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, resp storedResponse) {
	if resp.Status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil {
			logIdempotencyFailure(ctx, logg, "idempotency release failed", err)
		}
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		logIdempotencyFailure(ctx, logg, "idempotency persist failed", err)
		return
	}
	replaced, err := store.SetXX(ctx, key, string(payload), ttl)
	if err == nil && !replaced {
		_, err = store.SetNX(ctx, key, string(payload), ttl)
	}
	if err != nil {
		logIdempotencyFailure(ctx, logg, "idempotency persist failed", err)
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func logIdempotencyFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
