// Package logx configures animsched's structured logging.
//
// Components log through a small wrapper (logx.Logger) on top of zerolog so that:
//   - console output stays readable (short timestamp + short caller)
//   - file output stays JSON-structured
//   - outputs and level can be swapped at runtime on config reload
package logx
