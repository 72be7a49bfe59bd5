// Package notifications delivers workflow events to department Telegram
// chats through the bot API. Callers treat delivery as best effort; the
// workflow layer dispatches on a goroutine and logs failures without
// propagating them.
package notifications
