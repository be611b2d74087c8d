package frame

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// UpdateCRC folds p into crc using the CCITT polynomial, MSB first.
func UpdateCRC(crc uint16, p []byte) uint16 {
	return crc16.Update(crc, p, crcTable)
}

// CRC16 returns the CRC-16/XMODEM checksum of p (init 0, no reflection).
func CRC16(p []byte) uint16 {
	return crc16.Checksum(p, crcTable)
}
