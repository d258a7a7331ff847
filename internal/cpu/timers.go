package cpu

// TickTimers decrements the delay and sound timers by one, stopping at zero.
// The driver calls it at 60 Hz independently of the instruction rate.
func (c *CPU) TickTimers() {
	if c.delay > 0 {
		c.delay--
	}
	if c.sound > 0 {
		c.sound--
	}
}

func (c *CPU) DelayTimer() byte { return c.delay }
func (c *CPU) SoundTimer() byte { return c.sound }

// SoundActive reports whether the tone should be playing.
func (c *CPU) SoundActive() bool { return c.sound > 0 }
