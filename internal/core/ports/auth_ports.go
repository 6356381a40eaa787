package ports

import (
	"time"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type TokenService interface {
	Verify(token string) (domain.Actor, error)
	Issue(actor domain.Actor, ttl time.Duration) (string, error)
}
