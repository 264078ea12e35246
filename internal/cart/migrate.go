package cart

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/roach88/caffinity/internal/api"
)

// Migrate asks the server to move the anonymous session's cart onto
// the authenticated user, then re-fetches so memory and mirror pick up
// the merged result. Call it right after a successful login.
//
// When nobody is logged in Migrate is a no-op. A 404 from the server
// means the session had no cart to move and is also treated as
// success; the same session/user pair is not re-sent once it has
// migrated.
func (s *Synchronizer) Migrate(ctx context.Context) error {
	uid, ok, err := s.ids.UserID(ctx)
	if err != nil {
		return fmt.Errorf("migrate cart: %w", err)
	}
	if !ok {
		return nil
	}

	sid, err := s.ids.SessionID(ctx)
	if err != nil {
		return fmt.Errorf("migrate cart: %w", err)
	}

	pair := sid + ":" + strconv.FormatInt(uid, 10)
	last, err := s.st.LastMigration(ctx)
	if err != nil {
		s.logger.Warn("read last migration marker", zap.Error(err))
	} else if last == pair {
		return nil
	}

	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	headers := map[string]string{
		api.HeaderSessionID: sid,
		api.HeaderUserID:    strconv.FormatInt(uid, 10),
	}

	err = s.client.MigrateCart(ctx, headers)
	switch {
	case err == nil, api.IsNotFound(err):
		if err := s.st.SetLastMigration(ctx, pair); err != nil {
			s.logger.Warn("record migration marker", zap.Error(err))
		}
	default:
		return fmt.Errorf("migrate cart: %w", err)
	}

	s.refresh(ctx)
	return nil
}
