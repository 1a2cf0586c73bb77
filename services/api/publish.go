package api

import "context"

// publishJSON emits an event on the bus when one is configured. Event loss is
// logged, never surfaced to the HTTP caller.
func (a *API) publishJSON(ctx context.Context, subject string, payload any) {
	if a.store == nil || a.store.Bus == nil {
		return
	}
	if err := a.store.Bus.Publish(ctx, subject, payload); err != nil {
		a.log.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}
