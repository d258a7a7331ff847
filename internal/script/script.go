// Package script drives the keypad from a Lua file during headless runs.
//
// A script defines on_frame(n), called once before every emulated frame, and
// uses these globals:
//
//	press(k)   hold key k (0-15)
//	release(k) let go of key k
//	quit()     stop the run after the current frame
//	reg(x)     value of register Vx
//	pc()       program counter
//	index()    index register I
//	log(msg)   write msg to the emulator log
package script

import (
	"errors"
	"fmt"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/retroenv/retrogolib/log"
	lua "github.com/yuin/gopher-lua"
)

const frameHook = "on_frame"

var ErrNoHook = errors.New("script defines no " + frameHook + " function")

// Runner owns a Lua state and the key latch the script writes into.
type Runner struct {
	L      *lua.LState
	cpu    *cpu.CPU
	logger *log.Logger

	keys [keypad.Size]bool
	quit bool
	hook *lua.LFunction
}

// New creates a runner that can inspect c.
func New(c *cpu.CPU, logger *log.Logger) *Runner {
	r := &Runner{
		L:      lua.NewState(),
		cpu:    c,
		logger: logger,
	}
	r.register()
	return r
}

func (r *Runner) register() {
	fns := map[string]lua.LGFunction{
		"press":   r.luaPress,
		"release": r.luaRelease,
		"quit":    r.luaQuit,
		"reg":     r.luaReg,
		"pc":      r.luaPC,
		"index":   r.luaIndex,
		"log":     r.luaLog,
	}
	for name, fn := range fns {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
}

// LoadFile executes a script file and resolves its frame hook.
func (r *Runner) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("run script %s: %w", path, err)
	}
	return r.resolveHook()
}

// LoadString executes script source and resolves its frame hook.
func (r *Runner) LoadString(src string) error {
	if err := r.L.DoString(src); err != nil {
		return fmt.Errorf("run script: %w", err)
	}
	return r.resolveHook()
}

func (r *Runner) resolveHook() error {
	fn, ok := r.L.GetGlobal(frameHook).(*lua.LFunction)
	if !ok {
		return ErrNoHook
	}
	r.hook = fn
	return nil
}

// Frame calls the hook for frame n. Errors raised by the script are returned.
func (r *Runner) Frame(n int) error {
	if r.hook == nil {
		return ErrNoHook
	}
	err := r.L.CallByParam(lua.P{
		Fn:      r.hook,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(n))
	if err != nil {
		return fmt.Errorf("%s(%d): %w", frameHook, n, err)
	}
	return nil
}

// Keys returns the key latch as last written by the script.
func (r *Runner) Keys() [keypad.Size]bool { return r.keys }

// Quit reports whether the script asked to stop.
func (r *Runner) Quit() bool { return r.quit }

func (r *Runner) Close() { r.L.Close() }

func (r *Runner) checkKey(L *lua.LState) int {
	k := L.CheckInt(1)
	if k < 0 || k >= keypad.Size {
		L.ArgError(1, fmt.Sprintf("key %d out of range 0-15", k))
	}
	return k
}

func (r *Runner) luaPress(L *lua.LState) int {
	r.keys[r.checkKey(L)] = true
	return 0
}

func (r *Runner) luaRelease(L *lua.LState) int {
	r.keys[r.checkKey(L)] = false
	return 0
}

func (r *Runner) luaQuit(L *lua.LState) int {
	r.quit = true
	return 0
}

func (r *Runner) luaReg(L *lua.LState) int {
	x := L.CheckInt(1)
	if x < 0 || x >= len(r.cpu.V) {
		L.ArgError(1, fmt.Sprintf("register %d out of range 0-15", x))
	}
	L.Push(lua.LNumber(r.cpu.V[x]))
	return 1
}

func (r *Runner) luaPC(L *lua.LState) int {
	L.Push(lua.LNumber(r.cpu.PC))
	return 1
}

func (r *Runner) luaIndex(L *lua.LState) int {
	L.Push(lua.LNumber(r.cpu.I))
	return 1
}

func (r *Runner) luaLog(L *lua.LState) int {
	r.logger.Info("script", log.String("msg", L.CheckString(1)))
	return 0
}
