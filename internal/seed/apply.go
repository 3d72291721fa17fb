package seed

import (
	"context"
	"fmt"
	"log/slog"

	"credledger/internal/models"
	"credledger/internal/observability"
	"credledger/internal/service"
)

// Publisher publishes content documents as posts.
type Publisher interface {
	Publish(ctx context.Context, author string, in service.PublishInput) (service.PublishResult, error)
}

// Ledger is the part of the ledger a fixture writes to directly.
type Ledger interface {
	VotePost(ctx context.Context, voter string, postID uint64, isUpvote bool) error
	FollowUser(ctx context.Context, follower, followed string) error
}

// Report counts applied and skipped transitions.
type Report struct {
	Posts   int
	Votes   int
	Follows int
	Skipped int
}

// Seeder replays fixtures.
type Seeder struct {
	publisher Publisher
	ledger    Ledger
}

func NewSeeder(p Publisher, l Ledger) *Seeder {
	return &Seeder{publisher: p, ledger: l}
}

// Apply replays f in order: posts, then votes, then follows. Transitions the
// ledger rejects (below the post threshold, repeated votes, self follows)
// are skipped; infrastructure failures abort the run.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Report, error) {
	var report Report
	if err := f.Validate(); err != nil {
		return report, err
	}

	ids := make([]uint64, len(f.Posts))
	for i, p := range f.Posts {
		res, err := s.publisher.Publish(ctx, p.Author, service.PublishInput{
			Name:        p.Name,
			Description: p.Description,
			Tags:        p.Tags,
		})
		if skip, err := s.check(ctx, err, "post", i+1); err != nil {
			return report, err
		} else if skip {
			report.Skipped++
			continue
		}
		ids[i] = res.PostID
		report.Posts++
	}

	for i, v := range f.Votes {
		id := ids[v.Post-1]
		if id == 0 {
			report.Skipped++
			continue
		}
		err := s.ledger.VotePost(ctx, v.Voter, id, v.Up)
		if skip, err := s.check(ctx, err, "vote", i+1); err != nil {
			return report, err
		} else if skip {
			report.Skipped++
			continue
		}
		report.Votes++
	}

	for i, e := range f.Follows {
		err := s.ledger.FollowUser(ctx, e.Follower, e.Followed)
		if skip, err := s.check(ctx, err, "follow", i+1); err != nil {
			return report, err
		} else if skip {
			report.Skipped++
			continue
		}
		report.Follows++
	}

	observability.Logger.InfoContext(ctx, "fixture applied",
		slog.Int("posts", report.Posts),
		slog.Int("votes", report.Votes),
		slog.Int("follows", report.Follows),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (s *Seeder) check(ctx context.Context, err error, kind string, n int) (bool, error) {
	if err == nil {
		return false, nil
	}
	switch models.ErrorCode(err) {
	case models.CodeInsufficientReputation, models.CodeAlreadyVoted,
		models.CodeSelfFollow, models.CodeInvalidInput, models.CodePostNotFound:
		observability.Logger.DebugContext(ctx, "fixture entry skipped",
			slog.String("kind", kind), slog.Int("entry", n), slog.String("error", err.Error()))
		return true, nil
	}
	return false, fmt.Errorf("%s %d: %w", kind, n, err)
}
