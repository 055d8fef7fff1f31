package ports

import (
	"context"

	"github.com/mob852/framecast/internal/domain"
)

// FrameSink consumes frames delivered by the receiver.
// Implementations must not retain frame.Message.Payload beyond the call
// unless they copy it.
type FrameSink interface {
	Name() string
	Consume(ctx context.Context, frame domain.DeliveredFrame) error
}
