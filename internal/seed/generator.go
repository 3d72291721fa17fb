package seed

import (
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// GenerateOptions sizes a generated fixture.
type GenerateOptions struct {
	Accounts []string
	Posts    int
	Votes    int
	// Seed makes generation reproducible; 0 picks a random seed.
	Seed int64
}

// Generate builds a fixture of fake posts. Authors rotate through
// Accounts; votes and follows are drawn at random between them.
func Generate(opts GenerateOptions) *Fixture {
	f := &Fixture{}
	if len(opts.Accounts) == 0 {
		return f
	}
	faker := gofakeit.New(opts.Seed)

	for i := 0; i < opts.Posts; i++ {
		tags := make([]string, faker.Number(1, 3))
		for j := range tags {
			tags[j] = strings.ToLower(faker.Word())
		}
		f.Posts = append(f.Posts, PostSpec{
			Author:      opts.Accounts[i%len(opts.Accounts)],
			Name:        strings.TrimSuffix(faker.Sentence(faker.Number(3, 7)), "."),
			Description: faker.Paragraph(1, 2, 12, " "),
			Tags:        tags,
		})
	}

	if len(f.Posts) > 0 {
		for i := 0; i < opts.Votes; i++ {
			f.Votes = append(f.Votes, VoteSpec{
				Voter: opts.Accounts[faker.Number(0, len(opts.Accounts)-1)],
				Post:  faker.Number(1, len(f.Posts)),
				Up:    faker.Number(0, 3) > 0,
			})
		}
	}

	// Each account follows the next one round the ring.
	if len(opts.Accounts) > 1 {
		for i, acct := range opts.Accounts {
			f.Follows = append(f.Follows, FollowSpec{
				Follower: acct,
				Followed: opts.Accounts[(i+1)%len(opts.Accounts)],
			})
		}
	}
	return f
}
