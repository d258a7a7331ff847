package emu

// StepsPerFrame is the number of instructions executed between two 60 Hz timer
// ticks, roughly 960 instructions per second.
const StepsPerFrame = 16

// FrameRate is the timer and display refresh rate in Hz.
const FrameRate = 60

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace    bool  // log every instruction at debug level
	Seed     int64 // random source seed for CXNN; 0 picks one from the clock
	LimitFPS bool  // throttle StepFrame to FrameRate (headless runs)
}
