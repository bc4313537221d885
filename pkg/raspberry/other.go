//go:build !linux
// +build !linux

package raspberry

// Open returns an emulated chip on systems without GPIO hardware,
// so the driver can be exercised on a development host.
func Open(chipname string) (*Emulator, error) {
	return OpenEmulator()
}

// IsChip reports whether the named GPIO chip exists. The emulator
// accepts any name.
func IsChip(chipname string) bool {
	return true
}
