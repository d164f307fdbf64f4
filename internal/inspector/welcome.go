package inspector

import (
	"context"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

// WelcomeInspector is stateless: it immediately acknowledges that the other
// inspectors are on their way. It runs in parallel with them, not before.
type WelcomeInspector struct {
	reporter Reporter
}

// NewWelcomeInspector builds the inspector.
func NewWelcomeInspector(reporter Reporter) *WelcomeInspector {
	return &WelcomeInspector{reporter: reporter}
}

func (i *WelcomeInspector) Name() string { return "welcome" }

// Inspect posts the acknowledgment into the thread.
func (i *WelcomeInspector) Inspect(_ context.Context, req domain.InvestigationRequest) error {
	return i.reporter.Report(domain.OutgoingNotification{
		OriginalRequest: req,
		Blocks: []domain.Block{
			domain.SectionBlock("🕵️ I'm sending some inspectors out to do some investigation. You should hear from them shortly."),
		},
	})
}
