package canvas

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/internal/model"
)

// fakeSender records everything sent to one connection.
type fakeSender struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeSender) Send(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSender) all() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func (f *fakeSender) named(name string) []Event {
	var out []Event
	for _, ev := range f.all() {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeSender) last(name string) (Event, bool) {
	evs := f.named(name)
	if len(evs) == 0 {
		return Event{}, false
	}
	return evs[len(evs)-1], true
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// fakeDirectory is an in-memory stand-in for the durable collaborator.
type fakeDirectory struct {
	mu       sync.Mutex
	rooms    map[string]string   // roomID -> owner
	members  map[string][]string // roomID -> usernames
	versions map[string]*model.CanvasVersion
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		rooms:    make(map[string]string),
		members:  make(map[string][]string),
		versions: make(map[string]*model.CanvasVersion),
	}
}

func (d *fakeDirectory) EnsureRoom(roomID string) (*model.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[roomID]; !ok {
		d.rooms[roomID] = ""
	}
	return &model.Room{ID: roomID, Name: roomID, OwnerName: d.rooms[roomID]}, nil
}

func (d *fakeDirectory) SetRoomOwner(roomID, ownerName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[roomID] = ownerName
	return nil
}

func (d *fakeDirectory) AddRoomMember(roomID, username string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.members[roomID] {
		if m == username {
			return nil
		}
	}
	d.members[roomID] = append(d.members[roomID], username)
	return nil
}

func (d *fakeDirectory) CreateVersion(roomID, creatorName, versionName string, history model.History) (*model.CanvasVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	version := &model.CanvasVersion{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		CreatorName: creatorName,
		VersionName: versionName,
		CreatedAt:   time.Now(),
	}
	if err := version.SetHistory(history); err != nil {
		return nil, err
	}
	d.versions[version.ID] = version
	return version, nil
}

func (d *fakeDirectory) GetVersion(versionID string) (*model.CanvasVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	version, ok := d.versions[versionID]
	if !ok {
		return nil, assert.AnError
	}
	return version, nil
}

func freehand(x float64) model.Stroke {
	return model.NewFreehand(model.FreehandStroke{
		FromX: x, FromY: 0, ToX: x + 1, ToY: 1,
		Color: "#000000", LineMode: model.LineModePen, Thickness: 2,
	})
}

func newTestHub() (*Hub, *fakeDirectory) {
	dir := newFakeDirectory()
	return NewHub(dir, nil), dir
}

// =============================================================================
// Membership & admission
// =============================================================================

func TestJoinBootstrapAssignsOwner(t *testing.T) {
	hub, dir := newTestHub()
	c1 := &fakeSender{}

	// Scenario: first participant over the gated path owns the empty room.
	hub.RequestJoin("c1", c1, "R1", "alice")

	snap, ok := hub.Snapshot("R1")
	require.True(t, ok)
	assert.Equal(t, "alice", snap.Owner)
	assert.Equal(t, []string{"alice"}, snap.Members)
	assert.Zero(t, snap.Pending)

	owner, ok := c1.last(EventRoomOwner)
	require.True(t, ok)
	assert.Equal(t, "alice", owner.Data)

	roster, ok := c1.last(EventUserList)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, roster.Data)

	_, ok = c1.last(EventJoinApproved)
	assert.True(t, ok)

	assert.Equal(t, "alice", dir.rooms["R1"])
	assert.Equal(t, []string{"alice"}, dir.members["R1"])
}

func TestJoinIsIdempotentPerName(t *testing.T) {
	hub, _ := newTestHub()

	hub.Join("c1", &fakeSender{}, "R1", "alice")
	hub.Join("c2", &fakeSender{}, "R1", "alice")

	snap, _ := hub.Snapshot("R1")
	assert.Equal(t, []string{"alice"}, snap.Members)
	assert.Equal(t, "alice", snap.Owner)
}

func TestGatedJoinApprovalFlow(t *testing.T) {
	hub, dir := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.RequestJoin("c1", alice, "R1", "alice")
	hub.RequestJoin("c2", bob, "R1", "bob")

	// Owner sees the request, requester waits.
	approval, ok := alice.last(EventJoinApproval)
	require.True(t, ok)
	payload := approval.Data.(JoinApprovalData)
	assert.Equal(t, "bob", payload.DisplayName)
	assert.Equal(t, "R1", payload.RoomID)
	assert.Equal(t, "c2", payload.RequesterID)

	pending, ok := bob.last(EventJoinPending)
	require.True(t, ok)
	assert.Equal(t, payload.RequestID, pending.Data.(JoinPendingData).RequestID)

	snap, _ := hub.Snapshot("R1")
	assert.Equal(t, []string{"alice"}, snap.Members)
	assert.Equal(t, 1, snap.Pending)

	hub.ResolveJoin("c1", payload.RequestID, true)

	_, ok = bob.last(EventJoinApproved)
	assert.True(t, ok)

	snap, _ = hub.Snapshot("R1")
	assert.Equal(t, []string{"alice", "bob"}, snap.Members)
	assert.Zero(t, snap.Pending)
	assert.Equal(t, []string{"alice", "bob"}, dir.members["R1"])

	// Resolution is idempotent.
	bob.reset()
	hub.ResolveJoin("c1", payload.RequestID, true)
	assert.Empty(t, bob.all())
}

func TestGatedJoinDenial(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.RequestJoin("c1", alice, "R1", "alice")
	hub.RequestJoin("c2", bob, "R1", "bob")

	approval, _ := alice.last(EventJoinApproval)
	requestID := approval.Data.(JoinApprovalData).RequestID

	hub.ResolveJoin("c1", requestID, false)

	_, denied := bob.last(EventJoinDenied)
	assert.True(t, denied)
	_, approved := bob.last(EventJoinApproved)
	assert.False(t, approved)

	snap, _ := hub.Snapshot("R1")
	assert.Equal(t, []string{"alice"}, snap.Members)
	assert.Zero(t, snap.Pending)
}

func TestResolveJoinIgnoresNonOwner(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	mallory := &fakeSender{}
	bob := &fakeSender{}

	hub.RequestJoin("c1", alice, "R1", "alice")
	hub.Join("c2", mallory, "R1", "mallory")
	hub.RequestJoin("c3", bob, "R1", "bob")

	approval, _ := alice.last(EventJoinApproval)
	requestID := approval.Data.(JoinApprovalData).RequestID

	// Neither a member nor a stranger may resolve.
	hub.ResolveJoin("c2", requestID, true)
	hub.ResolveJoin("unknown", requestID, true)

	snap, _ := hub.Snapshot("R1")
	assert.Equal(t, 1, snap.Pending)
	assert.NotContains(t, snap.Members, "bob")
}

func TestOwnerDisconnectClosesRoom(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.RequestJoin("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	hub.Append("c1", freehand(1))

	hub.Disconnect("c1")

	_, closed := bob.last(EventRoomClosed)
	assert.True(t, closed)

	// Session, history, and remaining members stay queryable.
	snap, ok := hub.Snapshot("R1")
	require.True(t, ok)
	assert.Empty(t, snap.Owner)
	assert.Equal(t, []string{"bob"}, snap.Members)
	assert.Equal(t, 1, snap.Strokes)

	// Double disconnect is a no-op.
	hub.Disconnect("c1")
}

func TestMemberDisconnectUpdatesRoster(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	alice.reset()

	hub.Disconnect("c2")

	roster, ok := alice.last(EventUserList)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, roster.Data)
	_, closed := alice.last(EventRoomClosed)
	assert.False(t, closed)
}

// =============================================================================
// History synchronization
// =============================================================================

func TestAppendKeepsCallOrder(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	alice.reset()
	bob.reset()

	s1 := freehand(1)
	s2 := freehand(2)
	hub.Append("c1", s1)
	hub.Append("c2", s2)

	hub.mu.Lock()
	history := hub.sessions["R1"].History.Clone()
	hub.mu.Unlock()
	require.Len(t, history, 2)
	assert.Equal(t, s1, history[0])
	assert.Equal(t, s2, history[1])

	// Sender is excluded from its own stroke broadcast.
	aliceDraws := alice.named(EventDraw)
	require.Len(t, aliceDraws, 1)
	assert.Equal(t, s2, aliceDraws[0].Data)

	bobDraws := bob.named(EventDraw)
	require.Len(t, bobDraws, 1)
	assert.Equal(t, s1, bobDraws[0].Data)
}

func TestAppendDropsInvalidStroke(t *testing.T) {
	hub, _ := newTestHub()
	hub.Join("c1", &fakeSender{}, "R1", "alice")

	hub.Append("c1", model.Stroke{})

	snap, _ := hub.Snapshot("R1")
	assert.Zero(t, snap.Strokes)
}

func TestReplaceThenReplay(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	hub.Append("c1", freehand(1))
	alice.reset()
	bob.reset()

	replacement := model.History{freehand(10), freehand(11)}
	hub.Replace("c1", replacement)

	// Replacement reaches everyone but the sender.
	got, ok := bob.last(EventUpdateHistory)
	require.True(t, ok)
	assert.Equal(t, replacement, got.Data)
	assert.Empty(t, alice.named(EventUpdateHistory))

	// An explicit resync ask returns exactly the replaced log.
	hub.ReplayTo("c1")
	replay, ok := alice.last(EventUpdateHistory)
	require.True(t, ok)
	assert.Equal(t, replacement, replay.Data)
}

func TestClearBroadcastsToEveryone(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	hub.Append("c1", freehand(1))

	hub.Clear("c2")

	snap, _ := hub.Snapshot("R1")
	assert.Zero(t, snap.Strokes)

	_, ok := alice.last(EventClearCanvas)
	assert.True(t, ok)
	_, ok = bob.last(EventClearCanvas)
	assert.True(t, ok)
}

func TestSharePDFReachesWholeRoom(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")

	hub.SharePDF("c1", "R1", "https://cdn.example.com/doc.pdf")

	for _, s := range []*fakeSender{alice, bob} {
		ev, ok := s.last(EventPDFReceived)
		require.True(t, ok)
		assert.Equal(t, "https://cdn.example.com/doc.pdf", ev.Data.(PDFReceivedData).URL)
	}
}

func TestShareScrapeRequiresRoomMembership(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	mallory := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", mallory, "R2", "mallory")
	alice.reset()

	// A member of another room cannot push content into R1.
	hub.ShareScrape("c2", "R1", "injected content")
	assert.Empty(t, alice.named(EventScrapeShared))

	// A member of R1 can, and the payload names the sharer.
	hub.ShareScrape("c1", "R1", "page text")
	ev, ok := alice.last(EventScrapeShared)
	require.True(t, ok)
	data := ev.Data.(ScrapeSharedData)
	assert.Equal(t, "alice", data.FromUser)
	assert.Equal(t, "page text", data.Content)
}

// =============================================================================
// Version snapshots
// =============================================================================

func TestSaveVersionPersistsAndNotifies(t *testing.T) {
	hub, dir := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")
	alice.reset()
	bob.reset()

	history := model.History{freehand(1), freehand(2)}
	hub.SaveVersion("c2", "R1", "v1", history)

	saved, ok := bob.last(EventVersionSaved)
	require.True(t, ok)
	data := saved.Data.(VersionSavedData)
	assert.Equal(t, "bob", data.CreatorName)
	assert.NotEmpty(t, data.VersionID)

	// Everyone learns the version list changed.
	_, ok = alice.last(EventHistoryUpdated)
	assert.True(t, ok)
	_, ok = bob.last(EventHistoryUpdated)
	assert.True(t, ok)

	version := dir.versions[data.VersionID]
	require.NotNil(t, version)
	assert.Equal(t, "bob", version.CreatorName)
	stored, err := version.ParseHistory()
	require.NoError(t, err)
	assert.Equal(t, history, stored)
}

func TestSaveVersionRejectsEmptyInput(t *testing.T) {
	hub, dir := newTestHub()
	alice := &fakeSender{}
	hub.Join("c1", alice, "R1", "alice")

	hub.SaveVersion("c1", "R1", "", model.History{freehand(1)})
	hub.SaveVersion("c1", "R1", "v1", nil)

	assert.Len(t, alice.named(EventError), 2)
	assert.Empty(t, dir.versions)
}

func TestLoadVersionReplacesEveryCanvas(t *testing.T) {
	hub, dir := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.Join("c1", alice, "R1", "alice")
	hub.Join("c2", bob, "R1", "bob")

	saved := model.History{freehand(7)}
	version, err := dir.CreateVersion("R1", "alice", "v1", saved)
	require.NoError(t, err)

	hub.Append("c1", freehand(99))
	alice.reset()
	bob.reset()

	hub.LoadVersion("c2", version.ID)

	snap, _ := hub.Snapshot("R1")
	assert.Equal(t, 1, snap.Strokes)

	// Requester included: every member's canvas is replaced.
	for _, s := range []*fakeSender{alice, bob} {
		ev, ok := s.last(EventUpdateHistory)
		require.True(t, ok)
		assert.Equal(t, saved, ev.Data)
	}
}

func TestLoadVersionUnknownIDSendsError(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	hub.Join("c1", alice, "R1", "alice")

	hub.LoadVersion("c1", "missing")

	assert.Len(t, alice.named(EventError), 1)
}

func TestVersionOpsWithoutDirectorySendError(t *testing.T) {
	hub := NewHub(nil, nil)
	alice := &fakeSender{}
	hub.Join("c1", alice, "R1", "alice")

	hub.SaveVersion("c1", "R1", "v1", model.History{freehand(1)})
	hub.LoadVersion("c1", "v-missing")

	assert.Len(t, alice.named(EventError), 2)
}

// =============================================================================
// Expiry & eviction
// =============================================================================

func TestCleanupExpiresPendingRequests(t *testing.T) {
	hub, _ := newTestHub()
	alice := &fakeSender{}
	bob := &fakeSender{}

	hub.RequestJoin("c1", alice, "R1", "alice")
	hub.RequestJoin("c2", bob, "R1", "bob")

	hub.mu.Lock()
	for _, req := range hub.sessions["R1"].Pending {
		req.CreatedAt = time.Now().Add(-10 * time.Minute)
	}
	hub.mu.Unlock()

	hub.CleanupIdle(30*time.Minute, 5*time.Minute)

	_, denied := bob.last(EventJoinDenied)
	assert.True(t, denied)
	snap, _ := hub.Snapshot("R1")
	assert.Zero(t, snap.Pending)
}

func TestCleanupEvictsIdleEmptySessions(t *testing.T) {
	hub, _ := newTestHub()

	hub.Join("c1", &fakeSender{}, "R1", "alice")
	hub.Join("c2", &fakeSender{}, "R2", "bob")
	hub.Disconnect("c1")

	hub.mu.Lock()
	hub.sessions["R1"].LastActive = time.Now().Add(-time.Hour)
	hub.sessions["R2"].LastActive = time.Now().Add(-time.Hour)
	hub.mu.Unlock()

	hub.CleanupIdle(30*time.Minute, 5*time.Minute)

	// Empty idle session is gone, the occupied one survives.
	_, ok := hub.Snapshot("R1")
	assert.False(t, ok)
	_, ok = hub.Snapshot("R2")
	assert.True(t, ok)
}
