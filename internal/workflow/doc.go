// Package workflow is the caller-facing core of the tracker. The Manager
// wraps the store's transitions with activity logging and detached Telegram
// notifications, and owns the completion chain: last worker finishing a
// stage completes the stage, and the last stage completing moves the product
// into warehouse inventory.
package workflow
