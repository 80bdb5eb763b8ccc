// Package services holds the bot's long-lived business services and the
// registry that starts and stops them.
package services
