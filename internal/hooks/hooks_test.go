package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/agentforge/internal/config"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func noop(context.Context, Payload) error { return nil }

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var called bool
	m.On(EventServerStart, "test", func(_ context.Context, p Payload) error {
		called = true
		assert.Equal(t, EventServerStart, p.Event)
		return nil
	})

	m.Emit(context.Background(), EventServerStart, nil)
	assert.True(t, called)
}

func TestManager_Emit_OrderAndData(t *testing.T) {
	m := testManager()

	var order []string
	var gotData map[string]any
	m.On(EventReplyGenerated, "first", func(_ context.Context, p Payload) error {
		order = append(order, "first")
		gotData = p.Data
		return nil
	})
	m.On(EventReplyGenerated, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventReplyGenerated, map[string]any{"agent_id": "a1"})
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "a1", gotData["agent_id"])
}

func TestManager_Emit_HandlerError(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventAgentDeployed, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventAgentDeployed, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventAgentDeployed, nil)
	assert.True(t, secondCalled)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventTokenRevoked, "remove-me", func(_ context.Context, _ Payload) error {
		removed++
		return nil
	})
	m.On(EventTokenRevoked, "keep-me", func(_ context.Context, _ Payload) error {
		kept++
		return nil
	})

	m.Off(EventTokenRevoked, "remove-me")
	m.Emit(context.Background(), EventTokenRevoked, nil)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, kept)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	for _, name := range []string{"async1", "async2"} {
		m.On(EventSessionCreated, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.EmitAsync(ctx, EventSessionCreated, nil)
	cancel()

	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestManager_CountAndEvents(t *testing.T) {
	m := testManager()
	assert.Equal(t, 0, m.Count(EventServerStart))

	m.On(EventServerStart, "h1", noop)
	m.On(EventServerStart, "h2", noop)
	m.On(EventMessageReceived, "h3", noop)

	assert.Equal(t, 2, m.Count(EventServerStart))
	assert.Equal(t, []string{EventMessageReceived, EventServerStart}, m.Events())
}

func TestNilManager(t *testing.T) {
	var m *Manager
	m.Emit(context.Background(), EventServerStart, nil)
	m.EmitAsync(context.Background(), EventServerStart, nil)
	m.Wait()
	assert.Zero(t, m.Count(EventServerStart))
	assert.Nil(t, m.Events())
}

func TestCommandHandler(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	h := CommandHandler(`cat > "`+out+`"; echo "$AGENTFORGE_EVENT" >> "`+out+`"`, time.Second)

	err := h(context.Background(), Payload{Event: EventAgentDeployed, Data: map[string]any{"agent_id": "a1"}})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agent_id":"a1"`)
	assert.Contains(t, string(data), EventAgentDeployed)
}

func TestCommandHandlerFailure(t *testing.T) {
	h := CommandHandler("echo boom >&2; exit 3", time.Second)
	err := h(context.Background(), Payload{Event: EventServerStop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandHandlerTimeout(t *testing.T) {
	h := CommandHandler("sleep 5", 50*time.Millisecond)
	start := time.Now()
	err := h(context.Background(), Payload{Event: EventServerStop})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRegisterCommands(t *testing.T) {
	m := testManager()
	n := RegisterCommands(m, config.HooksConfig{Events: map[string][]config.HookEntry{
		EventAgentDeployed: {{Command: "true"}, {Command: "true", Timeout: 100}},
		"not_an_event":     {{Command: "true"}},
	}})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Count(EventAgentDeployed))
	assert.Zero(t, m.Count("not_an_event"))
}

func TestAllEvents(t *testing.T) {
	require.NotEmpty(t, AllEvents)
	assert.Contains(t, AllEvents, EventServerStart)
	assert.Contains(t, AllEvents, EventExecutionFailed)
}
