package publish

import (
	"context"
	"fmt"
	"log/slog"

	"siamwire/internal/domain/entity"
)

// Poster delivers one announcement to a downstream channel and returns the
// channel's post ID.
type Poster interface {
	PostUpdate(ctx context.Context, article *entity.Article) (string, error)
}

// Announcer publishes story announcements through a Poster, serialized per
// article by the claim registry. It satisfies the enrichment coordinator's
// Publisher contract.
type Announcer struct {
	registry *Registry
	poster   Poster
	logger   *slog.Logger
}

// NewAnnouncer creates an announcer.
func NewAnnouncer(registry *Registry, poster Poster, logger *slog.Logger) *Announcer {
	return &Announcer{
		registry: registry,
		poster:   poster,
		logger:   logger,
	}
}

// AnnounceUpdate posts an announcement for the article unless another worker
// holds the claim or the article was announced within the claim TTL. A held
// claim is not an error; the other worker's announcement covers this one.
func (a *Announcer) AnnounceUpdate(ctx context.Context, article *entity.Article) error {
	token, err := a.registry.Claim(article.ID)
	if err != nil {
		a.logger.Debug("announcement already handled",
			slog.Int64("article_id", article.ID),
			slog.String("state", a.registry.State(article.ID).String()))
		return nil
	}

	postID, err := a.poster.PostUpdate(ctx, article)
	if err != nil {
		if relErr := a.registry.Release(article.ID, token); relErr != nil {
			a.logger.Warn("claim release failed",
				slog.Int64("article_id", article.ID),
				slog.Any("error", relErr))
		}
		return fmt.Errorf("AnnounceUpdate: %w", err)
	}

	if err := a.registry.Finalize(article.ID, token, postID); err != nil {
		return fmt.Errorf("AnnounceUpdate: finalize: %w", err)
	}
	a.logger.Info("story announcement posted",
		slog.Int64("article_id", article.ID),
		slog.String("post_id", postID))
	return nil
}

// LogPoster is a Poster that only logs the announcement. It stands in for a
// real channel in environments without outbound credentials.
type LogPoster struct {
	Logger *slog.Logger
}

// PostUpdate logs the would-be announcement and fabricates a post ID from
// the article slug.
func (p *LogPoster) PostUpdate(_ context.Context, article *entity.Article) (string, error) {
	p.Logger.Info("announcement (log only)",
		slog.Int64("article_id", article.ID),
		slog.String("slug", article.Slug),
		slog.String("title", article.Title))
	return "log:" + article.Slug, nil
}
