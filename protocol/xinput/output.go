package xinput

// RumblePacket builds the 8-byte Xbox 360 rumble output report:
// [0]=report id, [1]=length, [3]=big/low-frequency motor,
// [4]=small/high-frequency motor.
func RumblePacket(left, right uint8) []byte {
	return []byte{0x00, 0x08, 0x00, left, right, 0x00, 0x00, 0x00}
}

// LEDPacket builds the 3-byte LED control report. Pattern 0x06 is the
// steady player-1 quadrant.
func LEDPacket(pattern uint8) []byte {
	return []byte{0x01, 0x03, pattern}
}
