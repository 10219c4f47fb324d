// Package conversation runs multi-step chat dialogs.
//
// A Manager sits between the transport update stream and the command router.
// While a (chat, user) pair has an active Conversation, that user's updates in
// that chat are delivered to the conversation instead of the router. Each
// conversation runs in its own goroutine, so a dialog waiting on one user never
// blocks another.
package conversation
