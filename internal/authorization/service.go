package authorization

import (
	"context"

	"github.com/smallbiznis/roomwatt/internal/identity"
)

type Service interface {
	Authorize(ctx context.Context, actor identity.Actor, object string, action string) error
}
