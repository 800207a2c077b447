package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tocadiscos/internal/track"
)

type fakeSearch struct {
	mu   sync.Mutex
	fail map[string]error
}

func (f *fakeSearch) Resolve(_ context.Context, query string) (track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[query]; ok {
		return track.Track{}, err
	}
	return track.Track{
		Title:     query,
		Duration:  180,
		StreamURL: "stream://" + query,
		SourceURL: "https://youtube.test/watch?v=" + query,
	}, nil
}

type fakePlaylist struct {
	items map[string][]string
	err   error
}

func (f *fakePlaylist) Match(ref string) bool {
	return strings.HasPrefix(ref, "playlist://")
}

func (f *fakePlaylist) Expand(_ context.Context, ref string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[ref], nil
}

type playCall struct {
	streamURL string
	finish    func(error)
}

type fakeTransport struct {
	mu          sync.Mutex
	connectErr  error
	connects    int
	plays       []playCall
	pauses      int
	resumes     int
	stops       int
	disconnects int

	// onDisconnect, when set, runs at the start of Disconnect. Lets tests
	// park the engine inside the drain path.
	onDisconnect func()
}

type fakeHandle struct{ id int }

func (f *fakeTransport) Connect(_ context.Context, _, _ string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connects++
	return &fakeHandle{id: f.connects}, nil
}

func (f *fakeTransport) Play(_ Handle, streamURL string, onFinished func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, playCall{streamURL: streamURL, finish: onFinished})
}

func (f *fakeTransport) Pause(Handle)  { f.mu.Lock(); f.pauses++; f.mu.Unlock() }
func (f *fakeTransport) Resume(Handle) { f.mu.Lock(); f.resumes++; f.mu.Unlock() }
func (f *fakeTransport) Stop(Handle)   { f.mu.Lock(); f.stops++; f.mu.Unlock() }

func (f *fakeTransport) Disconnect(Handle) error {
	if f.onDisconnect != nil {
		f.onDisconnect()
	}
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
	return nil
}

// finishPlay simulates the transport's completion callback for the i-th
// Play call, the way the real transport fires it from its stream goroutine.
func (f *fakeTransport) finishPlay(i int, err error) {
	f.mu.Lock()
	call := f.plays[i]
	f.mu.Unlock()
	call.finish(err)
}

func (f *fakeTransport) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

type recordedEvent struct {
	guildID string
	event   Event
}

type recNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recNotifier) Notify(guildID string, event Event) {
	n.mu.Lock()
	n.events = append(n.events, recordedEvent{guildID: guildID, event: event})
	n.mu.Unlock()
}

func (n *recNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	for i, e := range n.events {
		out[i] = e.event
	}
	return out
}

func (n *recNotifier) last() Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return nil
	}
	return n.events[len(n.events)-1].event
}

func (n *recNotifier) nowPlayingTitles() []string {
	var titles []string
	for _, e := range n.all() {
		if np, ok := e.(NowPlaying); ok {
			titles = append(titles, np.Track.Title)
		}
	}
	return titles
}

type fixture struct {
	engine   *Engine
	search   *fakeSearch
	playlist *fakePlaylist
	voice    *fakeTransport
	sink     *recNotifier
}

func newFixture() *fixture {
	f := &fixture{
		search:   &fakeSearch{fail: map[string]error{}},
		playlist: &fakePlaylist{items: map[string][]string{}},
		voice:    &fakeTransport{},
		sink:     &recNotifier{},
	}
	f.engine = New(f.search, f.playlist, f.voice, f.sink, zerolog.Nop())
	return f
}

const (
	testGuild   = "guild-1"
	testChannel = "voice-1"
)

func (f *fixture) play(t *testing.T, query string) {
	t.Helper()
	require.NoError(t, f.engine.Play(context.Background(), testGuild, testChannel, query, "tester"))
}

func TestPlayStartsImmediatelyWhenIdle(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackA", cur.Title)
	assert.Equal(t, 1, f.voice.connects)
	require.Equal(t, 1, f.voice.playCount())
	assert.Equal(t, "stream://trackA", f.voice.plays[0].streamURL)

	np, ok := f.sink.last().(NowPlaying)
	require.True(t, ok)
	assert.Equal(t, "trackA", np.Track.Title)
	assert.Equal(t, 0, np.QueueLen)
	assert.False(t, np.Repeat)
}

func TestPlayQueuesWhenBusy(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")

	// Still one stream; the second track waits its turn.
	assert.Equal(t, 1, f.voice.playCount())
	q, ok := f.sink.last().(Queued)
	require.True(t, ok)
	assert.Equal(t, "trackB", q.Track.Title)
	assert.Equal(t, 1, q.Position)
}

func TestDedupNeverGrowsQueue(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")

	// Duplicate of the playing track.
	f.play(t, "trackA")
	ev, ok := f.sink.last().(AlreadyQueued)
	require.True(t, ok)
	assert.Equal(t, "trackA", ev.Track.Title)

	// Duplicate of a queued track.
	f.play(t, "trackB")
	_, ok = f.sink.last().(AlreadyQueued)
	require.True(t, ok)

	f.engine.ShowQueue(testGuild)
	snap, ok := f.sink.last().(QueueSnapshot)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Total)
}

func TestPauseIsNoopUnlessPlaying(t *testing.T) {
	f := newFixture()

	// No state at all.
	err := f.engine.Pause(testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
	ev, ok := f.sink.last().(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindStateConflict, ev.Kind)
	assert.Zero(t, f.voice.pauses)

	// Paused already: pausing again is also a no-op.
	f.play(t, "trackA")
	require.NoError(t, f.engine.Pause(testGuild))
	err = f.engine.Pause(testGuild)
	assert.ErrorIs(t, err, ErrNothingPlaying)
	assert.Equal(t, 1, f.voice.pauses)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")

	require.NoError(t, f.engine.Pause(testGuild))
	assert.Equal(t, 1, f.voice.pauses)

	// Resume only works from paused.
	require.NoError(t, f.engine.Resume(testGuild))
	assert.Equal(t, 1, f.voice.resumes)
	assert.ErrorIs(t, f.engine.Resume(testGuild), ErrNotPaused)
}

func TestNaturalCompletionAdvancesInOrder(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")
	f.play(t, "trackC")

	f.voice.finishPlay(0, nil)
	f.voice.finishPlay(1, nil)
	f.voice.finishPlay(2, nil)

	assert.Equal(t, []string{"trackA", "trackB", "trackC"}, f.sink.nowPlayingTitles())

	_, ok := f.engine.NowPlaying(testGuild)
	assert.False(t, ok)
	_, ok = f.sink.last().(QueueEmpty)
	assert.True(t, ok)
	assert.Equal(t, 1, f.voice.disconnects)
}

func TestLoopRestartsSameTrack(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA loop")

	before, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackA", before.Title)

	f.voice.finishPlay(0, nil)

	after, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, before, after)
	require.Equal(t, 2, f.voice.playCount())
	assert.Equal(t, f.voice.plays[0].streamURL, f.voice.plays[1].streamURL)

	np, ok := f.sink.last().(NowPlaying)
	require.True(t, ok)
	assert.True(t, np.Repeat)
	assert.Equal(t, 0, np.QueueLen)
}

func TestSkipClearsLoopAndAdvances(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA loop")
	f.play(t, "trackB")

	require.NoError(t, f.engine.Skip(testGuild))
	assert.Equal(t, 1, f.voice.stops)
	// Skip itself never advances; the forced completion callback does.
	assert.Equal(t, 1, f.voice.playCount())

	f.voice.finishPlay(0, nil)
	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackB", cur.Title)
}

func TestSkipOnEmptyQueueGoesIdle(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")

	require.NoError(t, f.engine.Skip(testGuild))
	f.voice.finishPlay(0, nil)

	_, ok := f.engine.NowPlaying(testGuild)
	assert.False(t, ok)
	_, ok = f.sink.last().(QueueEmpty)
	assert.True(t, ok)
	assert.Equal(t, 1, f.voice.disconnects)
}

func TestSkipWhilePausedWorks(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")
	require.NoError(t, f.engine.Pause(testGuild))

	require.NoError(t, f.engine.Skip(testGuild))
	f.voice.finishPlay(0, nil)

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackB", cur.Title)
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")

	require.NoError(t, f.engine.Skip(testGuild))
	f.voice.finishPlay(0, nil) // trackB starts, seq moves on

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	require.Equal(t, "trackB", cur.Title)
	events := len(f.sink.all())

	// The superseded stream reports again; nothing may change.
	f.voice.finishPlay(0, nil)

	cur, ok = f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackB", cur.Title)
	assert.Len(t, f.sink.all(), events)
}

func TestStopClearsStateAndSurvivesRacingCallback(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")

	require.NoError(t, f.engine.Stop(testGuild))
	assert.Equal(t, 1, f.voice.disconnects)

	// The in-flight stream's callback arrives after the stop. It must not
	// re-trigger playback.
	f.voice.finishPlay(0, nil)
	_, ok := f.engine.NowPlaying(testGuild)
	assert.False(t, ok)
	assert.Equal(t, 1, f.voice.playCount())

	// A fresh play starts from a clean idle state.
	f.play(t, "trackC")
	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackC", cur.Title)
	assert.Equal(t, 2, f.voice.connects)
}

func TestPlayDuringDrainStartsFreshState(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")

	disconnecting := make(chan struct{})
	release := make(chan struct{})
	f.voice.onDisconnect = func() {
		close(disconnecting)
		<-release
	}

	// Drain the queue; the completion path holds the guild lock while the
	// transport disconnect is parked.
	go f.voice.finishPlay(0, nil)
	<-disconnecting

	// A play arriving mid-drain must not land on the state being removed.
	playDone := make(chan error, 1)
	go func() {
		playDone <- f.engine.Play(context.Background(), testGuild, testChannel, "trackB", "tester")
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-playDone)

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackB", cur.Title)
	assert.Equal(t, 2, f.voice.connects)
	require.Equal(t, 2, f.voice.playCount())

	np, ok := f.sink.last().(NowPlaying)
	require.True(t, ok)
	assert.Equal(t, "trackB", np.Track.Title)
}

func TestStopWithoutStateNotifiesConflict(t *testing.T) {
	f := newFixture()
	assert.ErrorIs(t, f.engine.Stop(testGuild), ErrNotConnected)
	ev, ok := f.sink.last().(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindStateConflict, ev.Kind)
}

func TestResolutionFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	f.search.fail["missing"] = errors.New("nothing found")

	err := f.engine.Play(context.Background(), testGuild, testChannel, "missing", "tester")
	require.Error(t, err)

	ev, ok := f.sink.last().(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindResolution, ev.Kind)
	assert.Zero(t, f.voice.connects)
	_, ok = f.engine.NowPlaying(testGuild)
	assert.False(t, ok)
}

func TestConnectFailureDropsTrack(t *testing.T) {
	f := newFixture()
	f.voice.connectErr = errors.New("permission denied")

	err := f.engine.Play(context.Background(), testGuild, testChannel, "trackA", "tester")
	require.Error(t, err)

	ev, ok := f.sink.last().(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindTransport, ev.Kind)

	// The failed track is dropped, not re-queued.
	f.engine.ShowQueue(testGuild)
	snap, ok := f.sink.last().(QueueSnapshot)
	require.True(t, ok)
	assert.Equal(t, 0, snap.Total)

	// Once the channel is joinable again, playback recovers.
	f.voice.connectErr = nil
	f.play(t, "trackB")
	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackB", cur.Title)
}

func TestPlaylistExpandsInOrderSkippingFailures(t *testing.T) {
	f := newFixture()
	f.playlist.items["playlist://mix"] = []string{"songA", "songB", "songC"}
	f.search.fail["songB"] = errors.New("no results")

	f.play(t, "playlist://mix")

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "songA", cur.Title)

	f.engine.ShowQueue(testGuild)
	snap, ok := f.sink.last().(QueueSnapshot)
	require.True(t, ok)
	require.Equal(t, 1, snap.Total)
	assert.Equal(t, "songC", snap.Entries[0].Title)
}

func TestPlaylistWithNoResolvableTracksFails(t *testing.T) {
	f := newFixture()
	f.playlist.items["playlist://dud"] = []string{"songA", "songB"}
	f.search.fail["songA"] = errors.New("no results")
	f.search.fail["songB"] = errors.New("no results")

	err := f.engine.Play(context.Background(), testGuild, testChannel, "playlist://dud", "tester")
	assert.ErrorIs(t, err, ErrNoResults)
	_, ok := f.engine.NowPlaying(testGuild)
	assert.False(t, ok)
}

func TestPlaylistExpansionErrorNotifies(t *testing.T) {
	f := newFixture()
	f.playlist.err = errors.New("api down")

	err := f.engine.Play(context.Background(), testGuild, testChannel, "playlist://mix", "tester")
	require.Error(t, err)
	ev, ok := f.sink.last().(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindResolution, ev.Kind)
}

func TestClearQueueKeepsCurrentTrack(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	f.play(t, "trackB")

	f.engine.ClearQueue(testGuild)

	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackA", cur.Title)

	f.engine.ShowQueue(testGuild)
	snap, ok := f.sink.last().(QueueSnapshot)
	require.True(t, ok)
	assert.Equal(t, 0, snap.Total)
}

func TestShowQueueCapsAtTenEntries(t *testing.T) {
	f := newFixture()
	f.play(t, "current")
	for i := 0; i < 12; i++ {
		f.play(t, fmt.Sprintf("track%02d", i))
	}

	f.engine.ShowQueue(testGuild)
	snap, ok := f.sink.last().(QueueSnapshot)
	require.True(t, ok)
	assert.Equal(t, 12, snap.Total)
	require.Len(t, snap.Entries, 10)
	assert.Equal(t, "track00", snap.Entries[0].Title)
	assert.Equal(t, "track09", snap.Entries[9].Title)
}

func TestGuildsAreIsolated(t *testing.T) {
	f := newFixture()
	f.play(t, "trackA")
	require.NoError(t, f.engine.Play(context.Background(), "guild-2", testChannel, "trackZ", "tester"))

	require.NoError(t, f.engine.Stop("guild-2"))

	// Stopping guild-2 leaves guild-1 playing.
	cur, ok := f.engine.NowPlaying(testGuild)
	require.True(t, ok)
	assert.Equal(t, "trackA", cur.Title)
}

func TestParseLoop(t *testing.T) {
	tests := []struct {
		in    string
		query string
		loop  bool
	}{
		{"despacito", "despacito", false},
		{"despacito loop", "despacito", true},
		{"despacito loop ", "despacito", true},
		{"loop", "loop", false},
		{"https://youtu.be/abc loop", "https://youtu.be/abc", true},
	}
	for _, tt := range tests {
		query, loop := parseLoop(tt.in)
		assert.Equal(t, tt.query, query, "input %q", tt.in)
		assert.Equal(t, tt.loop, loop, "input %q", tt.in)
	}
}
