// fdc_lua.go - Lua automation console for scripted FDC exercises

/*
Scripted automation over the machine: a Lua state with a small `st` table
for poking registers, stepping cycles and swapping media. Useful for
regression scripts against loader behaviour without dragging a CPU into
the picture.

    st.poke16(0xFF8606, 0x0080)   -- DMA mode
    st.poke16(0xFF8604, 0x0000)   -- FDC command: restore
    st.run(20000000)
    print(string.format("%02X", st.peek16(0xFF8604)))
*/

package main

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LuaConsole wraps a Lua state bound to one machine.
type LuaConsole struct {
	machine *STMachine
	state   *lua.LState
}

// NewLuaConsole builds the Lua state and registers the `st` table.
func NewLuaConsole(m *STMachine) *LuaConsole {
	c := &LuaConsole{machine: m, state: lua.NewState()}
	c.register()
	return c
}

// Close tears down the Lua state.
func (c *LuaConsole) Close() {
	c.state.Close()
}

// RunFile executes a script file.
func (c *LuaConsole) RunFile(path string) error {
	if err := c.state.DoFile(path); err != nil {
		return fmt.Errorf("running script %s: %w", path, err)
	}
	return nil
}

// RunString executes a script string.
func (c *LuaConsole) RunString(src string) error {
	return c.state.DoString(src)
}

func (c *LuaConsole) register() {
	L := c.state
	m := c.machine

	st := L.NewTable()
	L.SetGlobal("st", st)

	set := func(name string, fn lua.LGFunction) {
		L.SetField(st, name, L.NewFunction(fn))
	}

	set("peek8", func(L *lua.LState) int {
		v, ok := m.Bus.Read8WithFault(uint32(L.CheckInt64(1)))
		L.Push(lua.LNumber(v))
		L.Push(lua.LBool(ok))
		return 2
	})
	set("poke8", func(L *lua.LState) int {
		ok := m.Bus.Write8WithFault(uint32(L.CheckInt64(1)), uint8(L.CheckInt(2)))
		L.Push(lua.LBool(ok))
		return 1
	})
	set("peek16", func(L *lua.LState) int {
		v, ok := m.Bus.Read16WithFault(uint32(L.CheckInt64(1)))
		L.Push(lua.LNumber(v))
		L.Push(lua.LBool(ok))
		return 2
	})
	set("poke16", func(L *lua.LState) int {
		ok := m.Bus.Write16WithFault(uint32(L.CheckInt64(1)), uint16(L.CheckInt(2)))
		L.Push(lua.LBool(ok))
		return 1
	})
	set("run", func(L *lua.LState) int {
		m.Run(uint64(L.CheckInt64(1)))
		return 0
	})
	set("cycles", func(L *lua.LState) int {
		L.Push(lua.LNumber(m.Cycles()))
		return 1
	})
	set("irq", func(L *lua.LState) int {
		L.Push(lua.LBool(m.IRQPending()))
		return 1
	})
	set("insert", func(L *lua.LState) int {
		img, err := LoadDiskImage(L.CheckString(2))
		if err != nil {
			L.Push(lua.LBool(false))
			L.Push(lua.LString(err.Error()))
			return 2
		}
		m.FDC.InsertDisk(L.CheckInt(1), img)
		L.Push(lua.LBool(true))
		return 1
	})
	set("eject", func(L *lua.LState) int {
		m.FDC.EjectDisk(L.CheckInt(1))
		return 0
	})
	set("select", func(L *lua.LState) int {
		// Drive and side through the PSG port A latch, as software does it
		m.PSG.WriteSelect(PSG_REG_PORTA)
		m.PSG.WriteData(uint8(L.CheckInt(1)))
		return 0
	})
	set("status", func(L *lua.LState) int {
		L.Push(lua.LNumber(m.FDC.str))
		return 1
	})
}
