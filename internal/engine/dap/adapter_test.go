package dap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dbgcore/internal/config"
	"github.com/dshills/dbgcore/internal/engine"
)

func TestPresetsCoverConfiguredAdapters(t *testing.T) {
	for _, name := range config.KnownAdapters {
		p, err := LookupPreset(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.NotNil(t, p.LaunchArgs, name)
	}
	_, err := LookupPreset("vim")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestLaunchArgs(t *testing.T) {
	prog := engine.Program{Path: "/bin/prog", Args: []string{"-v"}, Cwd: "/tmp", Env: map[string]string{"B": "2", "A": "1"}}

	gdb, _ := LookupPreset("gdb")
	args := gdb.LaunchArgs(prog, true)
	assert.Equal(t, "/bin/prog", args["program"])
	assert.Equal(t, true, args["stopAtBeginningOfMainSubprogram"])
	assert.Equal(t, prog.Env, args["env"])

	lldb, _ := LookupPreset("lldb")
	assert.Equal(t, []string{"A=1", "B=2"}, lldb.LaunchArgs(prog, false)["env"])

	delve, _ := LookupPreset("delve")
	args = delve.LaunchArgs(engine.Program{Path: "/bin/prog"}, false)
	assert.Equal(t, "exec", args["mode"])
	assert.NotContains(t, args, "args")
	assert.Equal(t, ConnectSocket, delve.Connection)
}

func TestHitCondition(t *testing.T) {
	gdb, _ := LookupPreset("gdb")
	delve, _ := LookupPreset("delve")
	assert.Empty(t, gdb.hitCondition(0))
	assert.Equal(t, "3", gdb.hitCondition(3))
	assert.Equal(t, "> 3", delve.hitCondition(3))
}

func TestCommandSubstitutesAddress(t *testing.T) {
	delve, _ := LookupPreset("delve")
	cmd, err := delve.command("sh", nil, "127.0.0.1:4711")
	require.NoError(t, err)
	assert.Equal(t, []string{"dap", "--listen", "127.0.0.1:4711"}, cmd.Args[1:])

	generic, _ := LookupPreset("generic")
	_, err = generic.command("", nil, "")
	assert.ErrorIs(t, err, ErrNoAdapter)
	_, err = generic.command("no-such-adapter-binary", nil, "")
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestDialRetriesUntilListening(t *testing.T) {
	addr, err := freeAddress()
	require.NoError(t, err)

	accepted := make(chan net.Conn, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer l.Close()
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	tr, err := Dial(context.Background(), addr, 3*time.Second)
	require.NoError(t, err)
	defer tr.Close()
	select {
	case c := <-accepted:
		_ = c.Close()
	case <-time.After(wait):
		t.Fatal("listener never accepted")
	}
}

func TestDialGivesUp(t *testing.T) {
	addr, err := freeAddress()
	require.NoError(t, err)
	_, err = Dial(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Dial(ctx, addr, time.Second)
	require.Error(t, err)
}

func TestStopReasonsAndSymbols(t *testing.T) {
	assert.Equal(t, engine.StopBreakpointHit, stopReason("function breakpoint"))
	assert.Equal(t, engine.StopWatchpointTrig, stopReason("data breakpoint"))
	assert.Equal(t, engine.StopEndSteppingRange, stopReason("step"))
	assert.Equal(t, engine.StopUnknown, stopReason("goroutine"))

	fn, off := splitSymbol("<main+12>")
	assert.Equal(t, "main", fn)
	assert.Equal(t, 12, off)
	fn, off = splitSymbol("operator+")
	assert.Equal(t, "operator+", fn)
	assert.Zero(t, off)
}
