package session

import (
	"context"

	"github.com/jrsteele09/social-connect/authflow"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/rs/zerolog/log"
)

// State is where a platform sits in the connect lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StatePending         State = "pending"
	StateAuthenticated   State = "authenticated"
	StateExpired         State = "expired"
)

// HandleCallback completes an attempt from a listener callback and
// publishes the outcome. It is meant to be registered with the listener.
func (s *Service) HandleCallback(result authflow.CallbackResult) {
	if !result.Succeeded() {
		err := result.Err()
		log.Warn().Err(err).Str("platform", string(result.Platform)).Msg("authorization failed")
		s.publish(Outcome{Platform: result.Platform, State: result.State, Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.completionTimeout)
	defer cancel()

	cred, err := s.CompleteAuthorization(ctx, result.Platform, result.Code, result.State)
	if err != nil {
		log.Warn().Err(err).Str("platform", string(result.Platform)).Msg("authorization could not be completed")
		s.publish(Outcome{Platform: result.Platform, State: result.State, Err: err})
		return
	}
	summary := cred.Summarize(s.clock())
	s.publish(Outcome{Platform: result.Platform, State: result.State, Account: &summary})
}

// OnOutcome registers fn for every finished authorization. The returned
// func removes the subscription.
func (s *Service) OnOutcome(fn func(Outcome)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Service) publish(o Outcome) {
	s.subMu.RLock()
	subs := make([]func(Outcome), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(o)
	}
}

// AccountState reports the platform's lifecycle state. An attempt in
// flight wins over any stored credential.
func (s *Service) AccountState(ctx context.Context, p platforms.Platform) (State, error) {
	if s.attempts.Pending(p) {
		return StatePending, nil
	}
	creds, err := s.repo.List(ctx)
	if err != nil {
		return "", err
	}

	now := s.clock()
	state := StateUnauthenticated
	for _, c := range creds {
		if c.Platform != p {
			continue
		}
		if !c.Dead(now) {
			return StateAuthenticated, nil
		}
		state = StateExpired
	}
	return state, nil
}
