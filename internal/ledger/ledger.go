// Package ledger implements the social ledger: posts, weighted votes and the
// follow graph behind a single commit point, with derived feed views.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Transition operation names.
const (
	OpCreatePost   = "create_post"
	OpVotePost     = "vote_post"
	OpFollowUser   = "follow_user"
	OpUnfollowUser = "unfollow_user"
)

const (
	// DefaultPostThreshold is the minimum reputation needed to author a post.
	DefaultPostThreshold int64 = 160
	// DefaultMaxTitleLength is the title bound in code points.
	DefaultMaxTitleLength = 200
)

// Reputation is the part of the reputation oracle the ledger consumes.
type Reputation interface {
	ReputationOf(ctx context.Context, account string) (int64, error)
}

// Journal durably records a change set. Commit must be all-or-nothing; the
// ledger applies a change set in memory only after Commit returns nil.
type Journal interface {
	Commit(ctx context.Context, cs *ChangeSet) error
}

// Publisher receives events for committed transitions.
type Publisher interface {
	Publish(ctx context.Context, evt models.LedgerEvent) error
}

// Config holds the ledger policies and collaborators.
type Config struct {
	PostThreshold  int64
	MaxTitleLength int
	Weight         WeightPolicy
	// ProfileOracle serves the profile read path. Nil disables read-time refresh.
	ProfileOracle Reputation
	Journal       Journal
	Publisher     Publisher
	// SilentRevote decides per voter whether a same-direction re-vote is a
	// successful no-op instead of ALREADY_VOTED.
	SilentRevote func(voter string) bool
	Clock        func() time.Time
}

// Ledger is the authoritative state machine. Writes are serialized behind mu;
// reads share it and always observe a committed state.
type Ledger struct {
	mu     sync.RWMutex
	st     *state
	seq    uint64
	lastAt time.Time
	oracle Reputation
	cfg    Config
	log    *observability.LedgerLogger
}

// New creates an empty ledger.
func New(oracle Reputation, cfg Config) *Ledger {
	if cfg.PostThreshold == 0 {
		cfg.PostThreshold = DefaultPostThreshold
	}
	if cfg.MaxTitleLength <= 0 {
		cfg.MaxTitleLength = DefaultMaxTitleLength
	}
	cfg.MaxTitleLength = min(cfg.MaxTitleLength, models.MaxTitleLength)
	if cfg.Weight == nil {
		cfg.Weight = DefaultWeightPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Ledger{
		st:     newState(),
		oracle: oracle,
		cfg:    cfg,
		log:    observability.NewLedgerLogger("ledger"),
	}
}

// PostThreshold returns the reputation gate for authoring posts.
func (l *Ledger) PostThreshold() int64 {
	return l.cfg.PostThreshold
}

// transition runs stage under the write lock. A nil change set from stage is
// a committed no-op. The change set is journaled before it touches memory.
func (l *Ledger) transition(ctx context.Context, op string, stage func(st *state, now time.Time) (*ChangeSet, error)) (*ChangeSet, error) {
	span, ctx := observability.NewSpan(ctx, "ledger."+op, attribute.String("ledger.op", op))
	defer span.End()

	cs, evt, err := l.commit(ctx, op, stage)
	if err != nil {
		span.SetError(err)
		l.reject(ctx, op, err)
		return nil, err
	}

	if cs == nil {
		observability.LedgerTransitions.WithLabelValues(op, "noop").Inc()
		return nil, nil
	}

	observability.LedgerTransitions.WithLabelValues(op, "committed").Inc()
	l.log.LogCommitted(ctx, op, map[string]interface{}{"seq": cs.Seq})
	l.publish(ctx, evt)
	return cs, nil
}

func (l *Ledger) commit(ctx context.Context, op string, stage func(st *state, now time.Time) (*ChangeSet, error)) (*ChangeSet, *models.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer observability.TrackCommit(op)()

	now := l.commitTime()
	cs, err := stage(l.st, now)
	if err != nil || cs == nil {
		return nil, nil, err
	}
	cs.Op = op
	cs.Seq = l.seq + 1
	cs.At = now

	if l.cfg.Journal != nil {
		if err := l.cfg.Journal.Commit(ctx, cs); err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) {
				return nil, nil, err
			}
			return nil, nil, models.NewInternalError(err)
		}
	}

	l.st.apply(cs)
	l.seq = cs.Seq
	l.lastAt = now
	observability.LedgerPosts.Set(float64(len(l.st.posts)))

	evt := cs.event()
	return cs, &evt, nil
}

// commitTime is the clock reading at the journal's microsecond precision,
// pushed past the last committed time so commit times never repeat and
// restored follow edges keep their insertion order.
func (l *Ledger) commitTime() time.Time {
	now := l.cfg.Clock().UTC().Truncate(time.Microsecond)
	if !now.After(l.lastAt) {
		now = l.lastAt.Add(time.Microsecond)
	}
	return now
}

func (l *Ledger) reject(ctx context.Context, op string, err error) {
	code := models.ErrorCode(err)
	if code == "" {
		code = models.CodeInternal
	}
	observability.LedgerTransitions.WithLabelValues(op, code).Inc()
	l.log.LogRejected(ctx, op, code, err)
}

func (l *Ledger) publish(ctx context.Context, evt *models.LedgerEvent) {
	if l.cfg.Publisher == nil || evt == nil {
		return
	}
	evt.ID = uuid.NewString()
	if err := l.cfg.Publisher.Publish(context.WithoutCancel(ctx), *evt); err != nil {
		observability.EventsPublished.WithLabelValues(evt.Type, "error").Inc()
		l.log.LogError(ctx, err, "publish "+evt.Type)
		return
	}
	observability.EventsPublished.WithLabelValues(evt.Type, "ok").Inc()
}

// refreshReputation reads the author's or voter's reputation for the current
// transition. Any oracle failure aborts the transition.
func (l *Ledger) refreshReputation(ctx context.Context, account string) (int64, error) {
	if l.oracle == nil {
		return 0, models.NewOracleUnavailableError(errors.New("no reputation oracle configured"))
	}
	rep, err := l.oracle.ReputationOf(ctx, account)
	if err != nil {
		if models.HasCode(err, models.CodeOracleUnavailable) {
			return 0, err
		}
		return 0, models.NewOracleUnavailableError(err)
	}
	return rep, nil
}
