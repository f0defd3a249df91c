// Package notifier delivers "player is in game" notifications.
//
// A Dispatcher formats one message per activation, routes each recipient to
// a Channel (email over SMTP, or Telegram for "telegram:<chat_id>"), and
// records every successful send in the notification log. Failures are
// returned to the caller and never retried here.
package notifier
