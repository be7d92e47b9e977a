// Package moderation decides whether a bet title is a genuine personal
// commitment. A remote LLM classifier is used when configured; a rule-based
// check covers the rest, so bet creation never depends on an external
// service being up.
package moderation

import (
	"context"
	"regexp"
	"strings"

	"github.com/pactpoint/backend/pkg/logger"
)

// Verdict is the classifier's decision on a title.
type Verdict struct {
	Commitment bool
	Reason     string
}

// Classifier decides whether text describes a personal commitment.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

var (
	firstPerson     = regexp.MustCompile(`(?i)\b(i|i'll|i'm|i've|my|me)\b`)
	commitmentVerbs = regexp.MustCompile(`(?i)\b(will|going to|promise|commit|pledge|gonna|plan to|finish|complete|stop|quit|start|run|read|write|learn|lose|build|wake)\b`)
)

// RuleClassifier is the deterministic fallback: a commitment must be long
// enough, mention the speaker, and contain an action the speaker takes on.
type RuleClassifier struct{}

func (RuleClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 5 {
		return Verdict{Reason: "title is too short to describe a commitment"}, nil
	}
	if !firstPerson.MatchString(trimmed) {
		return Verdict{Reason: "title must be a personal commitment (say what *you* will do)"}, nil
	}
	if !commitmentVerbs.MatchString(trimmed) {
		return Verdict{Reason: "title must state a concrete action you commit to"}, nil
	}
	return Verdict{Commitment: true}, nil
}

// Service runs the configured classifier and falls back to the rule-based
// check when the remote one fails.
type Service struct {
	remote Classifier
	rules  RuleClassifier
	log    *logger.Logger
}

// New builds the moderation service. remote may be nil.
func New(remote Classifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("moderation")
	}
	return &Service{remote: remote, log: log}
}

// Classify returns the remote verdict when available, the rule-based one
// otherwise. Remote failures are logged, never surfaced.
func (s *Service) Classify(ctx context.Context, text string) (Verdict, error) {
	if s.remote != nil {
		verdict, err := s.remote.Classify(ctx, text)
		if err == nil {
			return verdict, nil
		}
		s.log.WithError(err).Warn("remote classifier failed; using rule-based check")
	}
	return s.rules.Classify(ctx, text)
}
