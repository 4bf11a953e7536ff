// Package state keeps per-chat conversation memory for the bot: the ordered
// texts each chat has sent, so a reply can depend on what was asked last.
package state
