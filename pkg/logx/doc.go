// Package logx configures petbot's structured logging.
//
// logx.Logger is a small wrapper on top of zerolog:
//   - console output stays readable (short timestamp + short caller)
//   - file output is JSON-structured
//   - an optional Telegram sink forwards warnings to an operator chat
package logx
