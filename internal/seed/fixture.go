// Package seed builds demo ledger data: YAML fixtures, a fake-data
// generator and an applier that replays a fixture through the ledger.
// It is intended for development and testing only.
package seed

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is a replayable set of ledger transitions.
type Fixture struct {
	Posts   []PostSpec   `yaml:"posts"`
	Votes   []VoteSpec   `yaml:"votes,omitempty"`
	Follows []FollowSpec `yaml:"follows,omitempty"`
}

// PostSpec is one published content document.
type PostSpec struct {
	Author      string   `yaml:"author"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// VoteSpec refers to its post by 1-based position in Fixture.Posts, since
// ledger ids are only known once the posts are published.
type VoteSpec struct {
	Voter string `yaml:"voter"`
	Post  int    `yaml:"post"`
	Up    bool   `yaml:"up"`
}

type FollowSpec struct {
	Follower string `yaml:"follower"`
	Followed string `yaml:"followed"`
}

// Validate checks references between fixture sections.
func (f *Fixture) Validate() error {
	for i, p := range f.Posts {
		if p.Author == "" || p.Name == "" {
			return fmt.Errorf("post %d: author and name are required", i+1)
		}
	}
	for i, v := range f.Votes {
		if v.Voter == "" {
			return fmt.Errorf("vote %d: voter is required", i+1)
		}
		if v.Post < 1 || v.Post > len(f.Posts) {
			return fmt.Errorf("vote %d: post %d is out of range 1..%d", i+1, v.Post, len(f.Posts))
		}
	}
	for i, e := range f.Follows {
		if e.Follower == "" || e.Followed == "" {
			return fmt.Errorf("follow %d: follower and followed are required", i+1)
		}
	}
	return nil
}

// LoadFixture decodes and validates a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return LoadFixture(file)
}

// WriteFixture encodes f as YAML.
func WriteFixture(w io.Writer, f *Fixture) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
