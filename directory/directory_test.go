// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package directory

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dragon-chat/dragon/lib/ref"
	"github.com/dragon-chat/dragon/lib/schema"
)

var (
	roomABC = ref.MustParseRoomID("!abc:local")
	roomXYZ = ref.MustParseRoomID("!xyz:local")
	alice   = ref.MustParseUserID("@alice:local")
	bob     = ref.MustParseUserID("@bob:local")
	carol   = ref.MustParseUserID("@carol:local")
)

func remoteMessage(id string, sender ref.UserID, body string) schema.Message {
	return schema.Message{
		ID:        id,
		Sender:    sender,
		Body:      body,
		Timestamp: time.UnixMilli(1000),
		State:     schema.Sent,
	}
}

func localMessage(correlationID, body string) schema.Message {
	return schema.Message{
		CorrelationID: correlationID,
		Sender:        alice,
		Body:          body,
		Timestamp:     time.UnixMilli(1000),
	}
}

func name(value string) *string { return &value }

func joined(userID ref.UserID) schema.Member {
	return schema.Member{UserID: userID, Membership: schema.Joined}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name    string
		room    string
		members []schema.Member
		want    schema.RoomKind
	}{
		{"two joined is direct", "", []schema.Member{joined(alice), joined(bob)}, schema.RoomDirect},
		{"three joined is group", "", []schema.Member{joined(alice), joined(bob), joined(carol)}, schema.RoomGroup},
		{"invited does not count", "", []schema.Member{joined(alice), {UserID: bob, Membership: schema.Invited}}, schema.RoomGroup},
		{"left does not count", "", []schema.Member{joined(alice), joined(bob), {UserID: carol, Membership: schema.Left}}, schema.RoomDirect},
		{"voice prefix wins over direct", "🔊 Lounge", []schema.Member{joined(alice), joined(bob)}, schema.RoomVoice},
		{"prefix must lead", "Lounge 🔊", nil, schema.RoomGroup},
		{"single member", "General", []schema.Member{joined(alice)}, schema.RoomGroup},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.room, test.members, "🔊"); got != test.want {
				t.Errorf("Classify = %v, want %v", got, test.want)
			}
		})
	}
	if got := Classify("🔊 Lounge", nil, ""); got != schema.RoomGroup {
		t.Errorf("empty prefix classified %v", got)
	}
}

func TestClassificationIsIdempotent(t *testing.T) {
	directory := New(Config{VoicePrefix: "🔊"})

	if !directory.ApplyMetadata(roomABC, name("🔊 Lounge"), nil) {
		t.Fatal("first metadata application reported no change")
	}
	if directory.ApplyMetadata(roomABC, name("🔊 Lounge"), nil) {
		t.Error("identical metadata reported a change")
	}
	room, _ := directory.Get(roomABC)
	if room.Kind != schema.RoomVoice {
		t.Errorf("kind = %v", room.Kind)
	}

	membersChanged, listChanged := directory.ApplyMembership(roomABC, joined(alice))
	if !membersChanged || listChanged {
		t.Errorf("new member: membersChanged=%v listChanged=%v", membersChanged, listChanged)
	}
	membersChanged, listChanged = directory.ApplyMembership(roomABC, joined(alice))
	if membersChanged || listChanged {
		t.Errorf("repeated member: membersChanged=%v listChanged=%v", membersChanged, listChanged)
	}
}

func TestMembershipDrivesDirectClassification(t *testing.T) {
	directory := New(Config{VoicePrefix: "🔊"})
	directory.ApplyMembership(roomABC, joined(alice))
	if _, listChanged := directory.ApplyMembership(roomABC, joined(bob)); !listChanged {
		t.Error("second joined member did not reclassify to direct")
	}
	room, _ := directory.Get(roomABC)
	if room.Kind != schema.RoomDirect {
		t.Fatalf("kind = %v, want direct", room.Kind)
	}
	if _, listChanged := directory.ApplyMembership(roomABC, joined(carol)); !listChanged {
		t.Error("third joined member did not reclassify to group")
	}
	directory.ApplyMembership(roomABC, schema.Member{UserID: carol, Membership: schema.Left})
	room, _ = directory.Get(roomABC)
	if room.Kind != schema.RoomDirect {
		t.Errorf("kind after leave = %v, want direct", room.Kind)
	}
	if len(room.Members) != 3 {
		t.Errorf("members = %d, left members must stay", len(room.Members))
	}
	if room.Members[0].UserID != alice || room.Members[2].UserID != carol {
		t.Errorf("members out of first-appearance order: %+v", room.Members)
	}
}

func TestUnreadCounting(t *testing.T) {
	directory := New(Config{})
	directory.Ensure(roomABC)
	directory.Append(roomABC, remoteMessage("$backlog", bob, "old"))
	directory.MarkPrepared()

	room, _ := directory.Get(roomABC)
	if room.Unread != 0 {
		t.Errorf("backlog counted as unread: %d", room.Unread)
	}
	if !room.Loaded {
		t.Error("room not loaded after MarkPrepared")
	}

	if _, outcome := directory.Append(roomABC, remoteMessage("m1", bob, "hi")); outcome != Appended {
		t.Fatalf("outcome = %v", outcome)
	}
	room, _ = directory.Get(roomABC)
	if room.Unread != 1 {
		t.Errorf("unread = %d, want 1", room.Unread)
	}

	if !directory.Select(roomABC) {
		t.Fatal("Select failed")
	}
	room, _ = directory.Get(roomABC)
	if room.Unread != 0 {
		t.Errorf("unread after select = %d", room.Unread)
	}

	directory.Append(roomABC, remoteMessage("m2", bob, "still here"))
	room, _ = directory.Get(roomABC)
	if room.Unread != 0 {
		t.Errorf("selected room counted unread: %d", room.Unread)
	}

	if directory.Select(roomXYZ) {
		t.Error("selecting an unknown room succeeded")
	}
	if directory.SelectedID() != roomABC {
		t.Error("failed select changed the selection")
	}
}

func TestDuplicateAppendIgnored(t *testing.T) {
	directory := New(Config{})
	directory.MarkPrepared()
	directory.Append(roomABC, remoteMessage("$m1", bob, "hi"))
	if _, outcome := directory.Append(roomABC, remoteMessage("$m1", bob, "hi")); outcome != Duplicate {
		t.Errorf("outcome = %v, want Duplicate", outcome)
	}
	room, _ := directory.Get(roomABC)
	if len(room.Timeline) != 1 || room.Unread != 1 {
		t.Errorf("timeline=%d unread=%d", len(room.Timeline), room.Unread)
	}
}

func TestPendingLifecycle(t *testing.T) {
	directory := New(Config{})
	directory.Ensure(roomABC)
	directory.MarkPrepared()
	directory.Select(roomABC)

	pending, ok := directory.InsertPending(roomABC, localMessage("dragon-1", "hello"))
	if !ok || pending.State != schema.Pending || pending.ID != "dragon-1" {
		t.Fatalf("InsertPending = %+v, %v", pending, ok)
	}
	if _, ok := directory.InsertPending(roomXYZ, localMessage("dragon-2", "x")); ok {
		t.Error("InsertPending into unknown room succeeded")
	}

	echo := remoteMessage("$server1", alice, "hello")
	echo.CorrelationID = "dragon-1"
	echo.Timestamp = time.UnixMilli(5000)
	confirmed, outcome := directory.Append(roomABC, echo)
	if outcome != Confirmed {
		t.Fatalf("outcome = %v, want Confirmed", outcome)
	}
	if confirmed.State != schema.Sent || confirmed.ID != "$server1" || !confirmed.Timestamp.Equal(time.UnixMilli(5000)) {
		t.Errorf("confirmed = %+v", confirmed)
	}
	room, _ := directory.Get(roomABC)
	if len(room.Timeline) != 1 {
		t.Errorf("echo duplicated the message: %d entries", len(room.Timeline))
	}

	if _, ok := directory.MarkFailed(roomABC, "dragon-1"); ok {
		t.Error("MarkFailed changed a sent message")
	}
}

func TestFailedAndRetry(t *testing.T) {
	directory := New(Config{})
	directory.Ensure(roomABC)
	directory.InsertPending(roomABC, localMessage("dragon-1", "hello"))

	failed, ok := directory.MarkFailed(roomABC, "dragon-1")
	if !ok || failed.State != schema.Failed {
		t.Fatalf("MarkFailed = %+v, %v", failed, ok)
	}
	if _, ok := directory.MarkFailed(roomABC, "dragon-1"); ok {
		t.Error("MarkFailed twice succeeded")
	}
	if _, ok := directory.Retry(roomABC, "missing"); ok {
		t.Error("Retry of unknown correlation succeeded")
	}
	retried, ok := directory.Retry(roomABC, "dragon-1")
	if !ok || retried.State != schema.Pending {
		t.Fatalf("Retry = %+v, %v", retried, ok)
	}
	directory.MarkFailed(roomABC, "dragon-1")

	// A late echo after failure still confirms: the server has it.
	confirmed, ok := directory.ConfirmPending(roomABC, "dragon-1", "$late", time.UnixMilli(9000))
	if !ok || confirmed.State != schema.Sent || confirmed.ID != "$late" {
		t.Errorf("ConfirmPending = %+v, %v", confirmed, ok)
	}
}

func TestFailureOverBoundStaysVisible(t *testing.T) {
	directory := New(Config{Retention: 2})
	directory.Ensure(roomABC)
	for _, correlationID := range []string{"dragon-1", "dragon-2", "dragon-3"} {
		directory.InsertPending(roomABC, localMessage(correlationID, "hello"))
	}

	if _, ok := directory.MarkFailed(roomABC, "dragon-1"); !ok {
		t.Fatal("MarkFailed(dragon-1) failed")
	}
	found, ok := directory.FindMessage(roomABC, "dragon-1")
	if !ok || found.State != schema.Failed {
		t.Fatalf("FindMessage after failure = %+v, %v", found, ok)
	}
	room, _ := directory.Get(roomABC)
	if len(room.Timeline) != 3 {
		t.Errorf("timeline has %d entries, want all 3", len(room.Timeline))
	}
	if retried, ok := directory.Retry(roomABC, "dragon-1"); !ok || retried.State != schema.Pending {
		t.Fatalf("Retry = %+v, %v", retried, ok)
	}

	// A later append applies retention again.
	directory.MarkFailed(roomABC, "dragon-1")
	directory.Append(roomABC, remoteMessage("$r1", bob, "x"))
	if _, ok := directory.FindMessage(roomABC, "dragon-1"); ok {
		t.Error("failed message survived the next append past the bound")
	}
}

func TestTrimKeepsPending(t *testing.T) {
	timeline := []schema.Message{
		{ID: "p1", State: schema.Pending},
		{ID: "s1", State: schema.Sent},
		{ID: "f1", State: schema.Failed},
		{ID: "s2", State: schema.Sent},
	}
	trimmed := Trim(timeline, 2)
	if len(trimmed) != 2 || trimmed[0].ID != "p1" || trimmed[1].ID != "s2" {
		t.Errorf("Trim = %+v", trimmed)
	}

	allPending := []schema.Message{
		{ID: "p1", State: schema.Pending},
		{ID: "p2", State: schema.Pending},
		{ID: "p3", State: schema.Pending},
	}
	if trimmed := Trim(allPending, 2); len(trimmed) != 3 {
		t.Errorf("Trim dropped a pending message: %+v", trimmed)
	}
}

// TestRetentionProperty applies random mixes of remote appends, local
// sends, confirmations and failures and checks after every step that
// no pending message was lost and that the bound is only exceeded by
// pending messages.
func TestRetentionProperty(t *testing.T) {
	const bound = 5
	for seed := uint64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			random := rand.New(rand.NewPCG(seed, seed*7919))
			directory := New(Config{Retention: bound})
			directory.Ensure(roomABC)
			directory.MarkPrepared()

			pending := make(map[string]bool)
			// Failures since retention last ran. A message that fails
			// keeps its place until the next append trims it.
			failedSinceTrim := 0
			nextID := 0
			for step := 0; step < 200; step++ {
				nextID++
				switch random.IntN(4) {
				case 0, 1:
					directory.Append(roomABC, remoteMessage(fmt.Sprintf("$r%d", nextID), bob, "x"))
					failedSinceTrim = 0
				case 2:
					correlationID := fmt.Sprintf("dragon-%d", nextID)
					directory.InsertPending(roomABC, localMessage(correlationID, "y"))
					pending[correlationID] = true
					failedSinceTrim = 0
				case 3:
					for correlationID := range pending {
						if random.IntN(2) == 0 {
							directory.ConfirmPending(roomABC, correlationID, fmt.Sprintf("$c%d", nextID), time.Time{})
							failedSinceTrim = 0
						} else if _, ok := directory.MarkFailed(roomABC, correlationID); ok {
							failedSinceTrim++
						}
						delete(pending, correlationID)
						break
					}
				}

				room, _ := directory.Get(roomABC)
				pendingInTimeline := 0
				for _, message := range room.Timeline {
					if message.State == schema.Pending {
						pendingInTimeline++
						if !pending[message.CorrelationID] {
							t.Fatalf("step %d: unexpected pending message %+v", step, message)
						}
					}
				}
				if pendingInTimeline != len(pending) {
					t.Fatalf("step %d: %d pending in timeline, %d outstanding", step, pendingInTimeline, len(pending))
				}
				if nonPending := len(room.Timeline) - pendingInTimeline; len(room.Timeline) > bound && nonPending > failedSinceTrim {
					t.Fatalf("step %d: timeline length %d exceeds bound %d with %d non-pending entries", step, len(room.Timeline), bound, nonPending)
				}
			}
		})
	}
}

func TestListOrderingAndClear(t *testing.T) {
	directory := New(Config{VoicePrefix: "🔊"})
	directory.SetSelf(alice)
	directory.ApplyMetadata(ref.MustParseRoomID("!v:local"), name("🔊 Lounge"), nil)
	directory.ApplyMetadata(ref.MustParseRoomID("!g2:local"), name("random"), nil)
	directory.ApplyMetadata(ref.MustParseRoomID("!g1:local"), name("General"), nil)
	directory.ApplyMembership(ref.MustParseRoomID("!d:local"), joined(alice))
	directory.ApplyMembership(ref.MustParseRoomID("!d:local"), schema.Member{UserID: bob, DisplayName: "Bob", Membership: schema.Joined})

	list := directory.List()
	var names []string
	for _, summary := range list {
		names = append(names, summary.DisplayName)
	}
	want := []string{"General", "random", "Bob", "🔊 Lounge"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("List order = %v, want %v", names, want)
	}

	directory.Select(ref.MustParseRoomID("!g1:local"))
	directory.Clear()
	if directory.Len() != 0 || !directory.SelectedID().IsZero() || directory.Prepared() {
		t.Error("Clear left state behind")
	}
	if _, ok := directory.Selected(); ok {
		t.Error("Selected after Clear")
	}
}

func TestRoomHelpers(t *testing.T) {
	room := Room{
		ID: roomABC,
		Timeline: []schema.Message{
			{ID: "$first", State: schema.Sent},
			{ID: "$second", State: schema.Sent},
			{ID: "dragon-1", CorrelationID: "dragon-1", State: schema.Pending},
		},
		Members: []schema.Member{joined(alice), {UserID: bob, Membership: schema.Invited}},
	}
	eventID, ok := room.LatestEventID()
	if !ok || eventID.String() != "$second" {
		t.Errorf("LatestEventID = %v, %v", eventID, ok)
	}
	if got := room.DisplayName(alice); got != "@bob:local" {
		t.Errorf("DisplayName = %q", got)
	}
	if room.JoinedCount() != 1 {
		t.Errorf("JoinedCount = %d", room.JoinedCount())
	}
	if _, ok := room.Member(carol); ok {
		t.Error("Member found a non-member")
	}
}
