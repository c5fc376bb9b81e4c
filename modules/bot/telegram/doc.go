// Package telegram provides the "bot.telegram" module: it owns the Bot API
// client, the long-polling loop and the plugin dispatch chain.
//
// Plugins are registered with Register between module loading and Start.
// On Start the module checks the token with getMe, removes any webhook so
// getUpdates is allowed, starts the plugins in priority order and then
// begins polling. Stop reverses this.
//
// Services published during Provision:
//
//   - "bot.chain": the *dispatch.Chain
//   - "bot.status": the *Bot itself, for health and status reporting
package telegram
