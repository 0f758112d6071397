package nandprog

import "time"

type flashParams struct {
	name     string
	capacity int // bytes, 0 if the part is addressed by page geometry only

	tPP time.Duration // page program time
}

var (
	flashIDWinbondW25N01GV   = [3]byte{0xEF, 0xAA, 0x21}
	flashIDWinbondW25Q128    = [3]byte{0xEF, 0x70, 0x18}
	flashIDMacronixMX25L256  = [3]byte{0xC2, 0x20, 0x19}
	flashIDMicronN25Q32      = [3]byte{0x20, 0xBA, 0x16}
	flashIDGigaDeviceGD25Q16 = [3]byte{0xC8, 0x40, 0x15}
)

var knownFlash = map[[3]byte]flashParams{
	flashIDWinbondW25N01GV: {
		name:     "Winbond W25N01GV 1Gb NAND",
		capacity: 1024 * 64 * 2112,
		// [W25N01GV|9.7 AC Electrical Characteristics] tPP: Page Program Time
		tPP: 700 * time.Microsecond,
	},
	flashIDWinbondW25Q128: {
		name:     "Winbond W25Q 128Mb",
		capacity: 16 << 20,
		// [W25Q128|9.6 AC Electrical Characteristics] tPP: Page Program Time
		tPP: 3 * time.Millisecond,
	},
	flashIDMacronixMX25L256: {
		name:     "Macronix MX25L 256Mb",
		capacity: 32 << 20,
		tPP:      3 * time.Millisecond,
	},
	flashIDMicronN25Q32: {
		name:     "Micron N25Q 32Mb",
		capacity: 4 << 20,
		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		tPP: 5 * time.Millisecond,
	},
	flashIDGigaDeviceGD25Q16: {
		name:     "GigaDevice GD25Q 16Mb",
		capacity: 2 << 20,
		tPP:      2400 * time.Microsecond,
	},
}

// tPP returns the page program time of the identified chip, or the
// slowest known one.
func (f *Flash) tPP() time.Duration {
	if f.pr != nil {
		return f.pr.tPP
	}
	var tmax time.Duration
	for _, p := range knownFlash {
		tmax = max(tmax, p.tPP)
	}
	return tmax
}
