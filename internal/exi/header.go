package exi

import "github.com/M4GNV5/iso15118/internal/message"

// headerOf extracts the embedded message.Header from any non-SAP message.
// Every such struct embeds Header by value, which promotes GetHeader() for
// free — so this needs no per-type case despite ~30 concrete message types.
func headerOf(msg message.Message) (message.Header, bool) {
	if h, ok := msg.(message.Keyed); ok {
		return h.GetHeader(), true
	}
	return message.Header{}, false
}
