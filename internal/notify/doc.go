// Package notify delivers keyword notifications to a user and their subscribers.
//
// Delivery to each recipient is one unit: send the rendered text, then append a
// NotificationHistory row. Units run concurrently and fail independently; the
// caller only waits for all of them to settle.
package notify
