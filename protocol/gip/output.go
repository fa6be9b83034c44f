package gip

// RumblePacket builds the GIP rumble command: command 0x09 with a 9-byte
// payload enabling both main motors.
func RumblePacket(left, right uint8) []byte {
	return []byte{
		0x09, 0x00, 0x00, // command, flags, sequence
		0x09,       // payload length
		0x00, 0x0f, // rumble mode, motor mask (all)
		0x00, 0x00, // trigger motors
		left, right,
		0xff, 0x00, 0xff, // duration, delay, repeat
	}
}
