// Package message decodes raw external messages into header, body, and
// attachment fields.
//
// A message's content is a recursive tree of MIME parts; ExtractBody and
// ExtractAttachments are pure reducers over that tree, and Parse combines
// them with header parsing into a single decoded view. Nothing in this
// package touches the network or storage.
package message
