// Package bot routes slash commands to handlers on a bounded worker pool and
// implements petbot's pt-BR chat commands.
package bot
