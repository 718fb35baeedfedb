package eventbus

import "github.com/fastygo/exportflow/domain"

// Option narrows which events of a type reach a handler.
type Option func(*subscription)

// WithBusinessID only delivers events for one business.
func WithBusinessID(businessID string) Option {
	return func(s *subscription) {
		s.businessID = businessID
	}
}

// WithPriority only delivers events with exactly this priority.
func WithPriority(p domain.Priority) Option {
	return func(s *subscription) {
		s.priority = p
	}
}

// WithPredicate delivers events for which fn returns true.
func WithPredicate(fn func(domain.Event) bool) Option {
	return func(s *subscription) {
		s.predicate = fn
	}
}

type subscription struct {
	id         SubscriptionID
	handler    Handler
	businessID string
	priority   domain.Priority
	predicate  func(domain.Event) bool
}

func (s *subscription) matches(e domain.Event) bool {
	if s.businessID != "" && s.businessID != e.BusinessID {
		return false
	}
	if s.priority != "" && s.priority != e.Priority {
		return false
	}
	if s.predicate != nil && !s.predicate(e) {
		return false
	}
	return true
}
