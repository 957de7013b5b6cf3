package board

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/engine"
	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/queue"
	"github.com/shuttleboard/shuttleboard/internal/store"
	"github.com/shuttleboard/shuttleboard/pkg/types"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) map[string]any {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatalf("session outbox closed unexpectedly")
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return frame
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return nil // unreachable
	}
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, but got: %s", within, data)
	case <-time.After(within):
		// good: no frame
	}
}

func recvTyped(t *testing.T, ch <-chan []byte, wantType string, within time.Duration) map[string]any {
	t.Helper()
	frame := recvFrame(t, ch, within)
	if frame["type"] != wantType {
		t.Fatalf("want frame type %q, got %q (%+v)", wantType, frame["type"], frame)
	}
	return frame
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func clientFrame(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal client frame: %v", err)
	}
	return data
}

// queueIDs pulls the userId column out of a QUEUE_UPDATE frame.
func queueIDs(t *testing.T, frame map[string]any) []int64 {
	t.Helper()
	raw, ok := frame["queue"].([]any)
	if !ok {
		t.Fatalf("frame has no queue array: %+v", frame)
	}
	out := make([]int64, 0, len(raw))
	for _, r := range raw {
		row := r.(map[string]any)
		out = append(out, int64(row["userId"].(float64)))
	}
	return out
}

func newTestBoard(t *testing.T) (*Board, model.CourtID, context.CancelFunc) {
	t.Helper()
	mem := store.NewMemory()
	mem.SetTeamMembers(1, []model.Member{
		{ID: 1, DisplayName: "Ari"},
		{ID: 2, DisplayName: "Bo"},
		{ID: 3, DisplayName: "Cam"},
		{ID: 4, DisplayName: "Dee"},
		{ID: 5, DisplayName: "Eli"},
		{ID: 6, DisplayName: "Fay"},
	})
	court := &model.Court{TeamID: 1, Name: "Court A"}
	if err := mem.CreateCourt(context.Background(), court); err != nil {
		t.Fatalf("create court: %v", err)
	}

	log := zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	b := New(ctx, 1, Deps{
		Engine: engine.New(mem, mem, log),
		Queue:  queue.NewManager(mem, mem, log),
		Store:  mem,
		Dir:    mem,
		Log:    log,
	})
	return b, court.ID, cancel
}

func join(t *testing.T, b *Board, sessionID string) chan []byte {
	t.Helper()
	out := make(chan []byte, 16)
	b.Inbox() <- Join{SessionID: sessionID, Outbox: out}
	recvTyped(t, out, types.TypeConnected, 100*time.Millisecond)
	recvTyped(t, out, types.TypeGameStateCheck, 100*time.Millisecond)
	return out
}

func TestBoard_JoinSendsHandshake(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()

	out := make(chan []byte, 16)
	b.Inbox() <- Join{SessionID: "s1", Outbox: out}

	connected := recvTyped(t, out, types.TypeConnected, 100*time.Millisecond)
	if connected["teamId"].(float64) != 1 {
		t.Fatalf("CONNECTED carries wrong teamId: %+v", connected)
	}
	check := recvTyped(t, out, types.TypeGameStateCheck, 100*time.Millisecond)
	if check["hasOngoingMatches"].(bool) {
		t.Fatalf("fresh board should report no ongoing matches: %+v", check)
	}
}

func TestBoard_FullRotation_QueueStaysFair(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	// Session start: everyone queues in directory order.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeStartNewGame, "teamId": 1,
	})}
	recvTyped(t, out, types.TypeStartNewGameSuccess, 100*time.Millisecond)
	update := recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)
	got := queueIDs(t, update)
	want := []int64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after reset: want queue %v, got %v", want, got)
		}
	}

	// Auto-assign fills the court with the 4 longest waiting.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAutoAssign, "teamId": 1, "courtId": courtID,
	})}
	success := recvTyped(t, out, types.TypeAutoAssignSuccess, 100*time.Millisecond)
	if !success["isPending"].(bool) {
		t.Fatalf("auto-assign must leave the court pending: %+v", success)
	}
	if n := len(success["assignments"].([]any)); n != 4 {
		t.Fatalf("want 4 assignments, got %d", n)
	}
	update = recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)
	if got := queueIDs(t, update); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("after auto-assign: want queue [5 6], got %v", got)
	}

	// Confirm starts the match.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeConfirmStartMatch, "teamId": 1, "courtId": courtID,
	})}
	confirmed := recvTyped(t, out, types.TypeConfirmStartMatchSuccess, 100*time.Millisecond)
	if confirmed["startedAt"].(string) == "" {
		t.Fatalf("confirm must carry startedAt: %+v", confirmed)
	}
	recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)

	// Finish re-queues the four players behind 5 and 6.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeFinishMatch, "teamId": 1, "courtId": courtID,
	})}
	finished := recvTyped(t, out, types.TypeMatchFinished, 100*time.Millisecond)
	if finished["reQueuedCount"].(float64) != 4 {
		t.Fatalf("want reQueuedCount=4, got %+v", finished)
	}
	update = recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)
	got = queueIDs(t, update)
	want = []int64{5, 6, 1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after finish: want queue %v, got %v", want, got)
		}
	}
}

func TestBoard_CancelPendingRestoresQueue(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeStartNewGame, "teamId": 1,
	})}
	recvTyped(t, out, types.TypeStartNewGameSuccess, 100*time.Millisecond)
	recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAutoAssign, "teamId": 1, "courtId": courtID,
	})}
	recvTyped(t, out, types.TypeAutoAssignSuccess, 100*time.Millisecond)
	recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeCancelPendingAssignment, "teamId": 1, "courtId": courtID,
	})}
	recvTyped(t, out, types.TypeCancelPendingSuccess, 100*time.Millisecond)
	update := recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)
	got := queueIDs(t, update)
	want := []int64{1, 2, 3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after cancel: want queue %v, got %v", want, got)
		}
	}
}

func TestBoard_ConfirmIncompleteGoesToSenderOnly(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	sender := join(t, b, "s1")
	other := join(t, b, "s2")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeConfirmStartMatch, "teamId": 1, "courtId": courtID,
	})}
	errFrame := recvTyped(t, sender, types.TypeError, 100*time.Millisecond)
	if errFrame["message"].(string) == "" {
		t.Fatalf("ERROR frame needs a message: %+v", errFrame)
	}
	recvNoFrame(t, other, 100*time.Millisecond)
}

func TestBoard_AutoAssignFullCourt(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAutoAssign, "teamId": 1, "courtId": courtID,
	})}
	recvTyped(t, out, types.TypeAutoAssignSuccess, 100*time.Millisecond)
	recvTyped(t, out, types.TypeQueueUpdate, 100*time.Millisecond)

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAutoAssign, "teamId": 1, "courtId": courtID,
	})}
	errFrame := recvTyped(t, out, types.TypeError, 100*time.Millisecond)
	if errFrame["message"] != "court is full" {
		t.Fatalf("want court-is-full error, got %+v", errFrame)
	}
}

func TestBoard_RestoreStateSendsCourtsAndQueuePrivately(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	s1 := join(t, b, "s1")

	// Bring a match in flight: reset, auto-assign, confirm.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeStartNewGame, "teamId": 1,
	})}
	recvTyped(t, s1, types.TypeStartNewGameSuccess, 100*time.Millisecond)
	recvTyped(t, s1, types.TypeQueueUpdate, 100*time.Millisecond)
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAutoAssign, "teamId": 1, "courtId": courtID,
	})}
	recvTyped(t, s1, types.TypeAutoAssignSuccess, 100*time.Millisecond)
	recvTyped(t, s1, types.TypeQueueUpdate, 100*time.Millisecond)
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeConfirmStartMatch, "teamId": 1, "courtId": courtID,
	})}
	recvTyped(t, s1, types.TypeConfirmStartMatchSuccess, 100*time.Millisecond)
	recvTyped(t, s1, types.TypeQueueUpdate, 100*time.Millisecond)

	// A reconnecting viewer restores and gets both envelopes, in order.
	s2 := join(t, b, "s2")
	b.Inbox() <- FromSession{SessionID: "s2", Data: clientFrame(t, map[string]any{
		"type": types.TypeRestoreState, "teamId": 1,
	})}
	restore := recvTyped(t, s2, types.TypeRestoreOngoingMatches, 100*time.Millisecond)
	courts := restore["courts"].([]any)
	if len(courts) != 1 {
		t.Fatalf("want 1 restored court, got %d", len(courts))
	}
	court := courts[0].(map[string]any)
	if court["startedAt"].(string) == "" {
		t.Fatalf("restored court needs startedAt: %+v", court)
	}
	if n := len(court["assignments"].([]any)); n != 4 {
		t.Fatalf("want 4 restored assignments, got %d", n)
	}
	update := recvTyped(t, s2, types.TypeQueueUpdate, 100*time.Millisecond)
	if got := queueIDs(t, update); len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("restore queue snapshot: want [5 6], got %v", got)
	}

	// Restore is private: the other session sees nothing.
	recvNoFrame(t, s1, 100*time.Millisecond)
}

func TestBoard_LoadQueueIsPrivate(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()
	s1 := join(t, b, "s1")
	s2 := join(t, b, "s2")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeLoadQueue, "teamId": 1,
	})}
	update := recvTyped(t, s1, types.TypeQueueUpdate, 100*time.Millisecond)
	if got := queueIDs(t, update); len(got) != 6 {
		t.Fatalf("want full queue snapshot, got %v", got)
	}
	recvNoFrame(t, s2, 100*time.Millisecond)
}

func TestBoard_SnapshotOpsRequireTeamID(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	for _, typ := range []string{types.TypeLoadQueue, types.TypeRestoreState} {
		b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
			"type": typ,
		})}
		errFrame := recvTyped(t, out, types.TypeError, 100*time.Millisecond)
		if errFrame["message"].(string) == "" {
			t.Fatalf("%s without teamId needs an error message", typ)
		}
	}
}

func TestBoard_GameStateCheckSeesPendingCourt(t *testing.T) {
	b, courtID, cancel := newTestBoard(t)
	defer cancel()
	s1 := join(t, b, "s1")

	// One manual assignment, no confirm: the court is PENDING, not ONGOING.
	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeAssignPlayer, "teamId": 1, "courtId": courtID,
		"userId": 1, "position": 1,
	})}
	recvTyped(t, s1, types.TypePlayerAssigned, 100*time.Millisecond)
	recvTyped(t, s1, types.TypeQueueUpdate, 100*time.Millisecond)

	// A new viewer must still be warned the court is in use.
	s2 := make(chan []byte, 16)
	b.Inbox() <- Join{SessionID: "s2", Outbox: s2}
	recvTyped(t, s2, types.TypeConnected, 100*time.Millisecond)
	check := recvTyped(t, s2, types.TypeGameStateCheck, 100*time.Millisecond)
	if !check["hasOngoingMatches"].(bool) {
		t.Fatalf("pending court must count as in use: %+v", check)
	}
	if check["ongoingCourtsCount"].(float64) != 1 {
		t.Fatalf("want 1 occupied court, got %+v", check)
	}
}

func TestBoard_JoinWithFullOutboxDoesNotBlockActor(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()

	// An unbuffered outbox with no reader cannot take even the handshake.
	// The actor must drop the session and keep serving.
	out := make(chan []byte)
	b.Inbox() <- Join{SessionID: "s1", Outbox: out}

	reply := make(chan View, 1)
	b.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumSessions != 0 {
		t.Fatalf("expected wedged session to be dropped; NumSessions=%d", view.NumSessions)
	}
}

func TestBoard_UnknownTypeDropped(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": "MAKE_COFFEE", "teamId": 1,
	})}
	recvNoFrame(t, out, 100*time.Millisecond)

	// Session stays registered.
	reply := make(chan View, 1)
	b.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumSessions != 1 {
		t.Fatalf("expected session to survive unknown type; NumSessions=%d", view.NumSessions)
	}
}

func TestBoard_PassThroughRebroadcast(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()
	s1 := join(t, b, "s1")
	s2 := join(t, b, "s2")

	b.Inbox() <- FromSession{SessionID: "s1", Data: clientFrame(t, map[string]any{
		"type": types.TypeCourtUpdate, "teamId": 1, "courtId": 1,
	})}
	recvTyped(t, s1, types.TypeCourtUpdate, 100*time.Millisecond)
	recvTyped(t, s2, types.TypeCourtUpdate, 100*time.Millisecond)
}

func TestBoard_DropSlowSession(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()

	// Buffer of 1 fills on CONNECTED; the handshake's second frame cannot be
	// delivered and the session is dropped.
	out := make(chan []byte, 1)
	b.Inbox() <- Join{SessionID: "s1", Outbox: out}

	reply := make(chan View, 1)
	b.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.NumSessions != 0 {
		t.Fatalf("expected slow session to be dropped; NumSessions=%d", view.NumSessions)
	}
}

func TestBoard_ShutdownClosesOutboxes(t *testing.T) {
	b, _, cancel := newTestBoard(t)
	defer cancel()
	out := join(t, b, "s1")

	b.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox, got a frame")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for outbox close")
	}
}
