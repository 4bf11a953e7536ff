package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// countingContext counts replies sent through the update context.
type countingContext struct{ tele.Context }

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	err := c.Context.Send(what, opts...)
	if err == nil {
		count(c.Context, hasMarkup(opts))
	}
	return err
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := c.Context.Reply(what, opts...)
	if err == nil {
		count(c.Context, hasMarkup(opts))
	}
	return err
}

// Counters resets the per-update reply counters read by the handler summary.
func Counters(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(messagesKey, 0)
		c.Set(keyboardKey, false)
		return next(countingContext{Context: c})
	}
}

// CountMessage records a reply delivered outside the update context.
func CountMessage(c tele.Context) {
	if c != nil {
		count(c, false)
	}
}

// Counts returns the replies sent for the update and whether any carried
// a keyboard.
func Counts(c tele.Context) (messages int, keyboard bool) {
	messages, _ = c.Get(messagesKey).(int)
	keyboard, _ = c.Get(keyboardKey).(bool)
	return messages, keyboard
}

func count(c tele.Context, markup bool) {
	n, _ := c.Get(messagesKey).(int)
	c.Set(messagesKey, n+1)
	if markup {
		c.Set(keyboardKey, true)
	}
}

func hasMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v != nil
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}
