package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/agentforge/internal/chat"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/hooks"
	"github.com/soyeahso/agentforge/internal/logging"
	"github.com/soyeahso/agentforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type funcExecutor struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (f *funcExecutor) Execute(_ context.Context, _ *domain.Agent, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(prompt)
}

func (f *funcExecutor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type staticRenderer string

func (r staticRenderer) Render(*domain.Agent) string { return string(r) }

type fixture struct {
	orch     *Orchestrator
	agents   *store.AgentRepository
	layout   store.Layout
	sessions *chat.SessionStore
	history  *chat.HistoryLog
	exec     *funcExecutor
	hooks    *hooks.Manager
	agent    *domain.Agent
	session  string
}

func newFixture(t *testing.T, resources ...domain.Resource) *fixture {
	t.Helper()
	layout := store.NewLayout(t.TempDir())
	locks := store.NewLocker()
	log := silentLog()

	agents := store.NewAgentRepository(layout, locks, log)
	a, err := agents.Create(domain.Agent{
		Name:      "Research Helper",
		Role:      "Research assistant",
		Backstory: "Spent years digging through archives for answers.",
		Goal:      "Answer questions accurately",
		Resources: resources,
	})
	require.NoError(t, err)

	sessions := chat.NewSessionStore(layout, locks, log)
	history := chat.NewHistoryLog(sessions)
	sess, err := sessions.Create(a.ID, "")
	require.NoError(t, err)

	exec := &funcExecutor{fn: func(p string) (string, error) { return "re: " + p, nil }}
	hm := hooks.NewManager(log)

	orch := NewOrchestrator(OrchestratorDeps{
		Agents:   agents,
		Sessions: sessions,
		History:  history,
		Renderer: staticRenderer("=== Available Links ===\n  - Docs: https://example.com"),
		Executor: exec,
		Locks:    locks,
		Hooks:    hm,
	}, log)

	return &fixture{
		orch:     orch,
		agents:   agents,
		layout:   layout,
		sessions: sessions,
		history:  history,
		exec:     exec,
		hooks:    hm,
		agent:    a,
		session:  sess.ID,
	}
}

func (f *fixture) messages(t *testing.T) []domain.Message {
	t.Helper()
	msgs, err := f.history.List(f.agent.ID, f.session)
	require.NoError(t, err)
	return msgs
}

func summarize(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ":" + m.Content
	}
	return out
}

func TestSendRecordsExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.orch.Send(ctx, f.agent.ID, f.session, "Hello there")
	require.NoError(t, err)
	assert.Equal(t, "re: Hello there", reply.Response)
	assert.Equal(t, f.session, reply.SessionID)
	assert.False(t, reply.Timestamp.IsZero())

	assert.Equal(t, []string{"user:Hello there", "assistant:re: Hello there"}, summarize(f.messages(t)))

	sess, err := f.sessions.Get(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", sess.Title)
	assert.Equal(t, 2, sess.MessageCount)
}

func TestSendKeepsCustomTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Rename(f.agent.ID, f.session, "Trip planning")
	require.NoError(t, err)

	_, err = f.orch.Send(context.Background(), f.agent.ID, f.session, "Where should I go?")
	require.NoError(t, err)

	sess, err := f.sessions.Get(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", sess.Title)
}

func TestSendComposesResourceContext(t *testing.T) {
	f := newFixture(t, domain.Resource{Type: domain.ResourceLink, Name: "Docs", Value: "https://example.com"})

	_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "Summarize the docs")
	require.NoError(t, err)

	calls := f.exec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		"=== Available Links ===\n  - Docs: https://example.com\n\n=== User Request ===\nSummarize the docs",
		calls[0])

	// Only the raw prompt is stored.
	assert.Equal(t, "Summarize the docs", f.messages(t)[0].Content)
}

func TestSendWithoutResourcesUsesRawPrompt(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "Just this")
	require.NoError(t, err)
	assert.Equal(t, []string{"Just this"}, f.exec.calls())
}

func TestSendRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = f.orch.Send(ctx, "missing-agent", f.session, "hi")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	_, err = f.orch.Send(ctx, f.agent.ID, "missing-session", "hi")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	assert.Empty(t, f.exec.calls())
	assert.Empty(t, f.messages(t))
}

func TestSendDefaultSessionWithoutEntry(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Send(context.Background(), f.agent.ID, domain.DefaultSessionID, "legacy chat")
	require.NoError(t, err)

	msgs, err := f.history.List(f.agent.ID, domain.DefaultSessionID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSendExecutionFailureKeepsOnlyUserMessage(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("provider unavailable")
	f.exec.fn = func(string) (string, error) { return "", boom }

	var failures int
	var mu sync.Mutex
	f.hooks.On(hooks.EventExecutionFailed, "count", func(context.Context, hooks.Payload) error {
		mu.Lock()
		failures++
		mu.Unlock()
		return nil
	})

	_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "Will this work?")
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, f.agent.ID, execErr.AgentID)
	assert.Equal(t, f.session, execErr.SessionID)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"user:Will this work?"}, summarize(f.messages(t)))

	f.hooks.Wait()
	mu.Lock()
	assert.Equal(t, 1, failures)
	mu.Unlock()
}

func TestEditAndResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "A")
	require.NoError(t, err)
	_, err = f.orch.Send(ctx, f.agent.ID, f.session, "C")
	require.NoError(t, err)

	reply, err := f.orch.EditAndResend(ctx, f.agent.ID, f.session, 0, "B")
	require.NoError(t, err)
	assert.Equal(t, "re: B", reply.Response)
	assert.Equal(t, []string{"user:B", "assistant:re: B"}, summarize(f.messages(t)))
}

func TestEditThenRegenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := 0
	f.exec.fn = func(p string) (string, error) {
		n++
		return fmt.Sprintf("R%d(%s)", n, p), nil
	}

	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:A", "assistant:R1(A)"}, summarize(f.messages(t)))

	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, 0, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:B", "assistant:R2(B)"}, summarize(f.messages(t)))

	_, err = f.orch.Regenerate(ctx, f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:B", "assistant:R3(B)"}, summarize(f.messages(t)))
}

func TestEditRejectsWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "A")
	require.NoError(t, err)
	before := summarize(f.messages(t))

	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, 1, "edited reply")
	assert.ErrorIs(t, err, ErrNotUserMessage)

	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, 5, "B")
	assert.ErrorIs(t, err, chat.ErrIndexOutOfRange)

	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, -1, "B")
	assert.ErrorIs(t, err, chat.ErrIndexOutOfRange)

	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, 0, "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	assert.Equal(t, before, summarize(f.messages(t)))
	assert.Len(t, f.exec.calls(), 1)
}

func TestEditFailureLeavesEditedMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "A")
	require.NoError(t, err)

	f.exec.fn = func(string) (string, error) { return "", errors.New("timeout") }
	_, err = f.orch.EditAndResend(ctx, f.agent.ID, f.session, 0, "B")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)

	assert.Equal(t, []string{"user:B"}, summarize(f.messages(t)))
}

func TestRegenerateDropsTrailingMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"first", "second"} {
		_, err := f.orch.Send(ctx, f.agent.ID, f.session, p)
		require.NoError(t, err)
	}
	f.exec.fn = func(p string) (string, error) { return "again: " + p, nil }

	reply, err := f.orch.Regenerate(ctx, f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, "again: second", reply.Response)
	assert.Equal(t, []string{
		"user:first", "assistant:re: first",
		"user:second", "assistant:again: second",
	}, summarize(f.messages(t)))
}

func TestRegenerateAfterFailedTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.exec.fn = func(string) (string, error) { return "", errors.New("down") }
	_, err := f.orch.Send(ctx, f.agent.ID, f.session, "retry me")
	require.Error(t, err)

	f.exec.fn = func(p string) (string, error) { return "ok: " + p, nil }
	_, err = f.orch.Regenerate(ctx, f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:retry me", "assistant:ok: retry me"}, summarize(f.messages(t)))
}

func TestRegenerateWithoutUserMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Regenerate(ctx, f.agent.ID, f.session)
	assert.ErrorIs(t, err, ErrNoUserMessage)

	_, err = f.history.Append(f.agent.ID, f.session, domain.RoleAssistant, "Welcome!")
	require.NoError(t, err)

	_, err = f.orch.Regenerate(ctx, f.agent.ID, f.session)
	assert.ErrorIs(t, err, ErrNoUserMessage)

	assert.Equal(t, []string{"assistant:Welcome!"}, summarize(f.messages(t)))
	assert.Empty(t, f.exec.calls())
}

func TestSequentialSendsLoseNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var want []string
	for i := 0; i < 5; i++ {
		p := fmt.Sprintf("message %d", i)
		_, err := f.orch.Send(ctx, f.agent.ID, f.session, p)
		require.NoError(t, err)
		want = append(want, "user:"+p, "assistant:re: "+p)
	}
	assert.Equal(t, want, summarize(f.messages(t)))
}

func TestConcurrentSendsKeepTurnsTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.Send(ctx, f.agent.ID, f.session, fmt.Sprintf("q%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	msgs := f.messages(t)
	require.Len(t, msgs, 2*n)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, domain.RoleUser, msgs[i].Role)
		assert.Equal(t, domain.RoleAssistant, msgs[i+1].Role)
		assert.Equal(t, "re: "+msgs[i].Content, msgs[i+1].Content)
	}

	sess, err := f.sessions.Get(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, 2*n, sess.MessageCount)
}

func TestAskIsStateless(t *testing.T) {
	f := newFixture(t)

	text, err := f.orch.Ask(context.Background(), f.agent, "ping")
	require.NoError(t, err)
	assert.Equal(t, "re: ping", text)
	assert.Empty(t, f.messages(t))

	f.exec.fn = func(string) (string, error) { return "", errors.New("down") }
	_, err = f.orch.Ask(context.Background(), f.agent, "ping")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Empty(t, execErr.SessionID)
}

func TestDeleteAndClearMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"one", "two"} {
		_, err := f.orch.Send(ctx, f.agent.ID, f.session, p)
		require.NoError(t, err)
	}

	require.NoError(t, f.orch.DeleteMessage(f.agent.ID, f.session, 1))
	assert.Equal(t, []string{"user:one", "user:two", "assistant:re: two"}, summarize(f.messages(t)))

	assert.ErrorIs(t, f.orch.DeleteMessage(f.agent.ID, f.session, 9), chat.ErrIndexOutOfRange)

	require.NoError(t, f.orch.ClearMessages(f.agent.ID, f.session))
	assert.Empty(t, f.messages(t))

	sess, err := f.sessions.Get(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.MessageCount)
}

func TestSendEmitsHooks(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	seen := map[string]int{}
	for _, ev := range []string{hooks.EventMessageReceived, hooks.EventReplyGenerated} {
		f.hooks.On(ev, "record", func(_ context.Context, p hooks.Payload) error {
			mu.Lock()
			defer mu.Unlock()
			seen[p.Event]++
			assert.Equal(t, f.agent.ID, p.Data["agent_id"])
			return nil
		})
	}

	_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "hello")
	require.NoError(t, err)
	f.hooks.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[hooks.EventMessageReceived])
	assert.Equal(t, 1, seen[hooks.EventReplyGenerated])
}

func TestExecutionErrorMessage(t *testing.T) {
	err := &ExecutionError{AgentID: "a1", SessionID: "s1", Err: errors.New("boom")}
	assert.True(t, strings.Contains(err.Error(), "a1"))
	assert.True(t, strings.Contains(err.Error(), "s1"))
	assert.Contains(t, (&ExecutionError{AgentID: "a1", Err: errors.New("boom")}).Error(), "execution failed: boom")
}

func TestDeleteSessionWaitsForRunningTurn(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.exec.fn = func(p string) (string, error) {
		close(started)
		<-release
		return "late reply", nil
	}

	sendErr := make(chan error, 1)
	go func() {
		_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "hello")
		sendErr <- err
	}()
	<-started

	deleted := make(chan error, 1)
	go func() { deleted <- f.orch.DeleteSession(f.agent.ID, f.session) }()

	select {
	case <-deleted:
		t.Fatal("session deleted while a turn was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-sendErr)
	require.NoError(t, <-deleted)

	_, err := f.sessions.Get(f.agent.ID, f.session)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	msgs, err := f.history.List(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReplyDroppedWhenSessionDeletedMidTurn(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.exec.fn = func(p string) (string, error) {
		close(started)
		<-release
		return "late reply", nil
	}

	sendErr := make(chan error, 1)
	go func() {
		_, err := f.orch.Send(context.Background(), f.agent.ID, f.session, "hello")
		sendErr <- err
	}()
	<-started

	// A delete that bypasses the turn lock, as another process would.
	require.NoError(t, f.sessions.Delete(f.agent.ID, f.session))
	close(release)

	assert.ErrorIs(t, <-sendErr, chat.ErrSessionNotFound)
	msgs, err := f.history.List(f.agent.ID, f.session)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = os.Stat(f.layout.HistoryFile(f.agent.ID, f.session))
	assert.True(t, os.IsNotExist(err), "history file must not be recreated")
}
