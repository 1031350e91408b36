// Package transports defines the I/O boundary that carries audio frames
// between an external capture/playback peer and the agent session.
package transports

import (
	"context"

	"github.com/harunnryd/swara/pkg/frames"
)

// Transport is a vendor-agnostic duplex frame stream. Implementations own
// their network lifecycle; Recv carries capture audio in, Send carries
// synthesized audio out.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan frames.Frame
	Send(frames.Frame) error
}
