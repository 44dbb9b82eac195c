package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const connectAttempts = 5

var connectBackoff = 2 * time.Second

// retry runs connect with a linear backoff until it succeeds or gives up.
// PostgreSQL and Redis may still be starting when the server boots.
func retry(ctx context.Context, log zerolog.Logger, what string, connect func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("target", what).Msg("Connection failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
	}
	return err
}
