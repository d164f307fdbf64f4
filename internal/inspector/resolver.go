package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

// DefaultTagKey is the deployment-group tag the resolver matches targets
// against.
const DefaultTagKey = "deployment-group"

// Resolver maps an investigation target to the downstream resource names
// tagged with it. Shared by the log and metrics inspectors.
type Resolver struct {
	directory   domain.ResourceDirectory
	tagKey      string
	typeFilters []string
	logger      *slog.Logger
}

// NewResolver builds a resolver over directory. An empty tagKey takes
// DefaultTagKey.
func NewResolver(directory domain.ResourceDirectory, tagKey string, typeFilters []string, logger *slog.Logger) *Resolver {
	if tagKey == "" {
		tagKey = DefaultTagKey
	}
	return &Resolver{
		directory:   directory,
		tagKey:      tagKey,
		typeFilters: typeFilters,
		logger:      logger,
	}
}

// Resolve returns the short names of every resource tagged with target.
// No matches is a normal empty result, never an error.
func (r *Resolver) Resolve(ctx context.Context, target string) ([]string, error) {
	query := domain.ResourceQuery{
		TypeFilters: r.typeFilters,
		TagKey:      r.tagKey,
		TagValue:    target,
	}
	r.logger.Debug("resource query", "tag_key", query.TagKey, "tag_value", query.TagValue)

	locators, err := r.directory.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("resource search for %q: %w", target, err)
	}

	names := make([]string, 0, len(locators))
	for _, locator := range locators {
		name, ok := shortName(locator)
		if !ok {
			r.logger.Warn("unresolvable resource locator dropped", "locator", locator)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// shortName extracts the resource's short name, the seventh colon-delimited
// segment of its locator. Locators without one are unresolvable.
func shortName(locator string) (string, bool) {
	parts := strings.Split(locator, ":")
	if len(parts) < 7 || parts[6] == "" {
		return "", false
	}
	return parts[6], true
}
