// Package frame owns the outer wire envelope.
//
// Wire layout (all multi-byte fields little-endian):
//
//	preamble(1)=0x55 | msg_type(2) | sender(2) | length(1) | payload(length) | crc(2)
//
// The CRC is CRC-16/XMODEM over msg_type, sender, length and payload.
package frame
