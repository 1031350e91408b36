package mock

import (
	"context"
	"fmt"

	"github.com/harunnryd/swara/pkg/agent"
)

type ResponderConfig struct {
	// Template is applied with the recognized text; defaults to an echo.
	Template string
}

// Responder answers every utterance from a template, standing in for the
// external text-generation collaborator.
type Responder struct {
	cfg ResponderConfig
}

func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.Template == "" {
		cfg.Template = "you said: %s"
	}
	return &Responder{cfg: cfg}
}

func (r *Responder) Respond(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	return fmt.Sprintf(r.cfg.Template, text), nil
}

var _ agent.Responder = (*Responder)(nil)
