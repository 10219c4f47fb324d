// Package tgui builds chat controls and HTML snippets for the Telegram adapter:
// keyboard builders producing transport keyboards, HTML escaping for
// ParseMode "HTML", and Telegram's button limits.
package tgui
