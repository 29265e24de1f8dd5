package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to AppError: redis.Nil becomes NotFound,
// everything else is a transport failure.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return &AppError{Err: err, Kind: KindSessionNotFound, Status: 404, Message: RedisNotFoundMessage}
	}
	return Transport(err, RedisErrorMessage)
}
