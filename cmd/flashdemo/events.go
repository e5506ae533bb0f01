package main

import (
	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/log"
)

// eventSource delivers flash events published by any server instance.
type eventSource interface {
	SubscribeFlashEvents(handler func(ev flash.Event)) error
	UnsubscribeFlashEvents() error
}

// startEventLog logs every flash event src delivers until stop is called.
func startEventLog(src eventSource, logger log.Logger) (stop func(), err error) {
	err = src.SubscribeFlashEvents(func(ev flash.Event) {
		logger.Infof("[events] %s token=%s entries=%d redirect=%v", ev.Type, ev.Token, ev.Entries, ev.Redirect)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := src.UnsubscribeFlashEvents(); err != nil {
			logger.Warnf("[events] unsubscribe: %v", err)
		}
	}, nil
}
