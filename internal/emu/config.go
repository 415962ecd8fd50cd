package emu

// Config contains settings that affect emulation behavior and are not part
// of the hardware state itself.
type Config struct {
	SkipBIOS   bool // construct post-boot register state directly, as real flash carts do via the menu
	SampleRate int  // APU output sample rate in Hz
}

// Defaults returns the configuration cmd/gbacore runs with absent flags.
func Defaults() Config {
	return Config{SkipBIOS: true, SampleRate: 32768}
}
