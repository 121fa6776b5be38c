package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	wallet bool
	calls  []string
}

func (f *fakeExec) hasWallet() bool { return f.wallet }
func (f *fakeExec) record(s ...string) error {
	f.calls = append(f.calls, strings.Join(s, " "))
	return nil
}
func (f *fakeExec) Wallet(context.Context) error {
	f.wallet = true
	return f.record("wallet")
}
func (f *fakeExec) Creators(context.Context) error      { return f.record("creators") }
func (f *fakeExec) Mine(context.Context) error          { return f.record("mine") }
func (f *fakeExec) Subscriptions(context.Context) error { return f.record("subscriptions") }
func (f *fakeExec) Register(context.Context) error      { return f.record("register") }
func (f *fakeExec) History(context.Context) error       { return f.record("history") }
func (f *fakeExec) Contents(_ context.Context, c string) error {
	return f.record("contents", c)
}
func (f *fakeExec) Subscribe(_ context.Context, c string) error {
	return f.record("subscribe", c)
}
func (f *fakeExec) Publish(_ context.Context, p string) error {
	return f.record("publish", p)
}
func (f *fakeExec) Play(_ context.Context, c, b, out string) error {
	return f.record("play", c, b, out)
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"wallet",
		"help",
		"creators",
		"mine",
		"contents 0xc1",
		"subs",
		"subscribe 0xc1",
		"register",
		"publish ./clip.mp4",
		"play 0xc1 blob1",
		"play 0xc1 blob1 out.mp4",
		"history",
		"foobar",
		"exit",
		"creators",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input), &out)

	require.Equal(t, []string{
		"wallet",
		"creators",
		"mine",
		"contents 0xc1",
		"subscriptions",
		"subscribe 0xc1",
		"register",
		"publish ./clip.mp4",
		"play 0xc1 blob1 ",
		"play 0xc1 blob1 out.mp4",
		"history",
	}, exec.calls)

	text := out.String()
	require.Contains(t, text, helpNoWallet)
	require.Contains(t, text, helpWallet)
	require.Contains(t, text, "Unknown command: foobar")
	require.Contains(t, text, "suifan status> ")
	require.Contains(t, text, "Bye!")
}

func TestRunREPL_UsageErrors(t *testing.T) {
	input := "contents\nsubscribe\npublish\nplay 0xc1\nplay a b c d\nquit\n"
	exec := &fakeExec{wallet: true}
	var out bytes.Buffer

	runREPL(context.Background(), exec, func() string { return "" }, rdr(input), &out)

	require.Empty(t, exec.calls)
	text := out.String()
	for _, usage := range []string{
		"Usage: contents <creator>",
		"Usage: subscribe <creator>",
		"Usage: publish <file>",
		"Usage: play <creator> <blob> [out]",
	} {
		require.Contains(t, text, usage)
	}
}

func TestRunREPL_StopsOnEOFAndCancel(t *testing.T) {
	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "" }, rdr("creators"), &out)
	require.Equal(t, []string{"creators"}, exec.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec = &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, rdr("creators\n"), &out)
	require.Empty(t, exec.calls)
}
