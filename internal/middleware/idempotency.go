package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// replayTTL bounds how long a finished response can be replayed.
	replayTTL = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 30 * time.Second
)

// inFlight marks a key whose first request has not finished yet.
var inFlight = []byte(`{"in_flight":true}`)

// storedReply is a finished response kept for replay.
type storedReply struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// replayStore keeps idempotent replies in Redis.
type replayStore struct {
	client *redis.Client
}

// reserve claims key for the current request. It returns the stored reply
// when the key already finished, or claimed=false while another request
// with the same key is still running.
func (s replayStore) reserve(ctx context.Context, key string) (reply *storedReply, claimed bool, err error) {
	ok, err := s.client.SetNX(ctx, key, inFlight, inFlightTTL).Result()
	if err != nil || ok {
		return nil, ok, err
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the caller run unguarded.
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if bytes.Equal(data, inFlight) {
		return nil, false, nil
	}

	var stored storedReply
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (s replayStore) save(ctx context.Context, key string, reply storedReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, replayTTL).Err()
}

func (s replayStore) release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// bodyRecorder tees the response body so it can be stored after the handler.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response of a mutating request
// repeated with the same Idempotency-Key, and answers 409 while the first
// request with that key is still running. A nil client disables it.
func IdempotencyMiddleware(redisClient *redis.Client, logger *zap.Logger) gin.HandlerFunc {
	store := replayStore{client: redisClient}

	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if redisClient == nil || key == "" || !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := idempotencyKey(c.Request.Method, c.Request.URL.Path, key)

		reply, claimed, err := store.reserve(ctx, storeKey)
		switch {
		case err != nil:
			logger.Warn("idempotency lookup failed, proceeding without it",
				zap.String("key", key), zap.Error(err))
			c.Next()
			return
		case reply != nil:
			c.Header(replayedHeader, "true")
			c.Data(reply.Status, reply.ContentType, reply.Body)
			c.Abort()
			return
		case !claimed:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this idempotency key is already in progress",
			})
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// Stored even if the client already went away.
		bg := context.WithoutCancel(ctx)
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			if err := store.release(bg, storeKey); err != nil {
				logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
			return
		}

		err = store.save(bg, storeKey, storedReply{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// idempotencyKey scopes a client key to the request it was sent with.
func idempotencyKey(method, path, key string) string {
	return "idempotency:" + method + ":" + path + ":" + key
}
