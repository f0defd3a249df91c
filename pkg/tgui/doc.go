// Package tgui builds Telegram messages:
//   - HTML helpers that escape by default for ParseMode="HTML"
//   - A line-oriented builder with title and key/value rows
//   - Rune-safe truncation to Telegram's message length limit
package tgui
