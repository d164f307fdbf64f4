package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

// DeploymentInspector checks whether the target was deployed inside the
// investigation window. The three outcomes (unknown target, deployed in
// window, nothing recent) are mutually exclusive.
type DeploymentInspector struct {
	store    domain.DeploymentStore
	reporter Reporter
	logger   *slog.Logger
}

// NewDeploymentInspector builds the inspector.
func NewDeploymentInspector(store domain.DeploymentStore, reporter Reporter, logger *slog.Logger) *DeploymentInspector {
	return &DeploymentInspector{store: store, reporter: reporter, logger: logger}
}

func (i *DeploymentInspector) Name() string { return "deployment" }

// Inspect looks up the target's deployment history. Requests with no target
// are skipped silently; the dispatcher already nags the caller about those.
func (i *DeploymentInspector) Inspect(ctx context.Context, req domain.InvestigationRequest) error {
	if req.TargetText == "" {
		return nil
	}

	record, err := i.store.DescribeDeployment(ctx, req.TargetText)
	if err != nil {
		return fmt.Errorf("describe deployment %q: %w", req.TargetText, err)
	}

	switch {
	case !record.Found:
		return i.send(req, fmt.Sprintf("I wasn't able to find the %s stack", req.TargetText))
	case req.Window.Contains(record.LastDeployed):
		return i.send(req, fmt.Sprintf("The last deployment for %s took place at %s",
			req.TargetText, record.LastDeployed.UTC().Format(time.RFC3339)))
	default:
		return i.send(req, fmt.Sprintf("There has not been a recent deployment of %s", req.TargetText))
	}
}

func (i *DeploymentInspector) send(req domain.InvestigationRequest, message string) error {
	return i.reporter.Report(domain.OutgoingNotification{
		OriginalRequest: req,
		Blocks: []domain.Block{
			domain.SectionBlock("🏗 Deployment inspector here. " + message),
		},
	})
}
