package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/whisper/flashscope/internal/metrics"
)

const redirectCookieValue = "true"

// PrePhase links this request to the previous one. It acts once, at
// RESTORE_VIEW, and is a no-op in any other phase:
//
//  1. the inbound token cookie names the execute buffer (a fresh token when
//     absent or malformed, so the execute buffer starts empty);
//  2. a new token is minted for the render buffer;
//  3. the redirect cookie, if present, is consumed;
//  4. messages carried by the previous request are put back on the
//     request's message list and their marker evicted.
//
// Buffers created by map operations that ran before PrePhase are kept: the
// render buffer as is, the execute buffer by moving its entries into the
// inbound one.
func (f *Flash) PrePhase(ctx context.Context) error {
	if f.active || f.phase() != PhaseRestoreView {
		return nil
	}
	cookies := f.cookies()

	if token, ok := TokenFromCookie(cookies, f.opts.tokenCookie); ok {
		inbound := NewBuffer(f.store, token, f.opts.codec)
		if f.execute != nil {
			if err := moveEntries(ctx, f.execute, inbound); err != nil {
				return err
			}
		}
		f.execute = inbound
		metrics.TokenResolutions.WithLabelValues("continued").Inc()
	} else {
		if f.execute == nil {
			f.execute = NewBuffer(f.store, MintToken(), f.opts.codec)
		}
		metrics.TokenResolutions.WithLabelValues("minted").Inc()
	}
	if f.render == nil {
		f.render = NewBuffer(f.store, MintToken(), f.opts.codec)
	}
	f.active = true

	if cookies != nil {
		if v, ok := cookies.ReadCookie(f.opts.redirectCookie); ok {
			f.prevRedirect = v == redirectCookieValue
			cookies.WriteCookie(f.opts.redirectCookie, "", 0)
		}
	}

	f.opts.logger.Debugf("[flash] pre-phase execute=%s render=%s redirect=%v",
		f.execute.Token(), f.render.Token(), f.prevRedirect)

	return f.restoreMessages(ctx)
}

// PostPhase commits the render buffer and evicts the execute buffer. It acts
// once, at RENDER_RESPONSE, or at INVOKE_APPLICATION when this request set
// the redirect flag, since a redirecting request never renders.
func (f *Flash) PostPhase(ctx context.Context) error {
	phase := f.phase()
	early := f.redirect && phase == PhaseInvokeApplication
	if f.committed || (!phase.IsRender() && !early) {
		return nil
	}
	f.committed = true

	start := time.Now()
	defer func() {
		metrics.PostPhaseDuration.Observe(time.Since(start).Seconds())
	}()

	render := f.renderBuffer()
	execute := f.executeBuffer()
	cookies := f.cookies()

	if f.keepMessages {
		if err := f.saveMessages(ctx, render); err != nil {
			return err
		}
	}

	if f.redirect && cookies != nil {
		cookies.WriteCookie(f.opts.redirectCookie, redirectCookieValue, sessionCookieMaxAge)
		metrics.RedirectsTotal.Inc()
	}

	TokenToCookie(cookies, f.opts.tokenCookie, render.Token())

	evicted, err := execute.Clear(ctx)
	metrics.EvictedEntries.Add(float64(evicted))
	if err != nil {
		return fmt.Errorf("flash: evict execute buffer %s: %w", execute.Token(), err)
	}

	metrics.HopsTotal.WithLabelValues(f.hopKind()).Inc()
	f.opts.logger.Debugf("[flash] post-phase phase=%s render=%s evicted=%d redirect=%v",
		phase, render.Token(), evicted, f.redirect)

	f.publish(ctx, render, execute, evicted)
	return nil
}

// moveEntries copies the raw entries of from into to, then clears from.
func moveEntries(ctx context.Context, from, to *Buffer) error {
	keys, err := from.View().Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		data, ok, err := from.View().Get(ctx, k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := to.View().Put(ctx, k, data); err != nil {
			return err
		}
	}
	_, err = from.Clear(ctx)
	return err
}

func (f *Flash) hopKind() string {
	switch {
	case f.redirect:
		return "redirect"
	case f.req != nil && f.req.IsPostback():
		return "postback"
	default:
		return "initial"
	}
}

// restoreMessages re-queues messages carried in the execute buffer. A marker
// that cannot be decoded is dropped with a warning.
func (f *Flash) restoreMessages(ctx context.Context) error {
	data, ok, err := f.execute.View().Get(ctx, keepMessagesKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var entries []MessageEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		f.opts.logger.Warnf("[flash] discarding carried messages token=%s: %v", f.execute.Token(), err)
	} else if list := f.messages(); list != nil {
		for _, e := range entries {
			list.AddMessage(e.ClientID, e.Message)
		}
	}

	return f.execute.Remove(ctx, keepMessagesKey)
}

// saveMessages serializes the queued messages into the render buffer. An
// encoding failure loses the messages, never the request.
func (f *Flash) saveMessages(ctx context.Context, render *Buffer) error {
	list := f.messages()
	if list == nil {
		return nil
	}
	entries := list.Messages()
	if len(entries) == 0 {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		f.opts.logger.Warnf("[flash] cannot carry %d messages token=%s: %v", len(entries), render.Token(), err)
		return nil
	}
	if err := render.View().Put(ctx, keepMessagesKey, data); err != nil {
		return err
	}
	metrics.MessagesCarried.Add(float64(len(entries)))
	return nil
}

func (f *Flash) publish(ctx context.Context, render, execute *Buffer, evicted int) {
	if f.opts.events == nil {
		return
	}
	now := time.Now().Unix()

	kept, err := render.Size(ctx)
	if err != nil {
		f.opts.logger.Warnf("[flash] size of render buffer %s: %v", render.Token(), err)
	}
	events := []Event{
		{Type: EventCommitted, Token: render.Token(), Entries: kept, Redirect: f.redirect, At: now},
		{Type: EventEvicted, Token: execute.Token(), Entries: evicted, At: now},
	}
	for _, ev := range events {
		if err := f.opts.events.PublishFlashEvent(ctx, ev); err != nil {
			f.opts.logger.Warnf("[flash] publish %s event token=%s: %v", ev.Type, ev.Token, err)
		}
	}
}
