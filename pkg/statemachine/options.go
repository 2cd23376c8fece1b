package statemachine

import "fmt"

// Option configures a machine at construction.
type Option func(*machine) error

// WithTransitions registers ts in order. When several transitions share a
// from state and event, the first whose guards pass is taken.
//
//	statemachine.MustNew(free, statemachine.WithTransitions(
//		statemachine.Transition{From: free, To: pro, Event: upgraded},
//		statemachine.Transition{From: pro, To: free, Event: lapsed, Actions: notify},
//	))
func WithTransitions(ts ...Transition) Option {
	return func(m *machine) error {
		for i, t := range ts {
			if err := m.AddTransition(t.From, t.To, t.Event, t.Guards, t.Actions); err != nil {
				return fmt.Errorf("transition %d: %w", i, err)
			}
		}
		return nil
	}
}
