package processors

import (
	"context"

	"travesia_payments/internal/ports"
)

type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	return nil
}

func DefaultRegistry() map[string]ports.Processor {
	return map[string]ports.Processor{
		"noop": NoopProcessor{},
	}
}

// Register adds processors to reg keyed by their Type.
func Register(reg map[string]ports.Processor, procs ...ports.Processor) map[string]ports.Processor {
	if reg == nil {
		reg = DefaultRegistry()
	}
	for _, p := range procs {
		reg[p.Type()] = p
	}
	return reg
}
