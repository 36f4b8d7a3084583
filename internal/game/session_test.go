package game

import (
	"context"
	"testing"
	"time"

	"github.com/Seednode/yeargame/internal/scoring"
)

func TestScenario_AnnWinsTwoSongGame(t *testing.T) {
	h := newHarness(t, []Song{
		{URI: "local:track:one", Year: 1984},
		{URI: "local:track:two", Year: 1977},
	}, nil)

	if j := h.join("Ann"); !j.IsAdmin {
		t.Fatal("first player should be admin")
	}

	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	if j := h.join("Bo"); !j.LateJoin {
		t.Fatal("Bo should be a late join")
	}
	wantCode(t, h.engine.Submit("Bo", 1980, false), CodeWaitNextRound)

	h.submit("Ann", 1984, false)
	h.clock.Advance(30 * time.Second)

	snap := h.waitPhase(PhaseReveal)
	ann := findPlayer(t, snap, "Ann")
	if ann.Score != 10 || ann.Streak != 1 {
		t.Fatalf("Ann after round 1: score %d streak %d", ann.Score, ann.Streak)
	}
	if bo := findPlayer(t, snap, "Bo"); bo.Outcome != nil {
		t.Fatalf("Bo joined mid-round and should have no round 1 outcome: %+v", bo.Outcome)
	}
	if snap.Song == nil || snap.Song.Year != 1984 {
		t.Fatalf("reveal should carry the year: %+v", snap.Song)
	}

	h.admin("Ann", ActionNextRound)
	h.waitPhase(PhasePlaying)
	h.submit("Ann", 1975, false)
	h.admin("Ann", ActionEndRound)

	snap = h.waitPhase(PhaseReveal)
	bo := findPlayer(t, snap, "Bo")
	if bo.Outcome == nil || bo.Outcome.Points != 0 || !bo.Missed || bo.Streak != 0 {
		t.Fatalf("Bo should have a missed zero round: %+v", bo)
	}

	h.admin("Ann", ActionNextRound)
	snap = h.waitPhase(PhaseEnd)

	if snap.Winner != "Ann" {
		t.Fatalf("winner: got %q, want Ann", snap.Winner)
	}
	if ann := findPlayer(t, snap, "Ann"); ann.Score != 15 {
		t.Fatalf("Ann total: got %d, want 15", ann.Score)
	}

	sums := h.sink.all()
	if len(sums) != 1 || sums[0].Winner != "Ann" || sums[0].Rounds != 2 {
		t.Fatalf("summaries: %+v", sums)
	}
}

func TestScenario_CidWinsBet(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Cid")
	h.admin("Cid", ActionStartGame)
	h.waitPhase(PhasePlaying)

	h.submit("Cid", 1982, true)
	h.admin("Cid", ActionEndRound)

	cid := findPlayer(t, h.waitPhase(PhaseReveal), "Cid")
	if cid.Outcome == nil || cid.Outcome.Accuracy != 5 || cid.Outcome.Bet != scoring.BetWon || cid.Outcome.Points != 10 {
		t.Fatalf("Cid outcome: %+v", cid.Outcome)
	}
	if cid.Score != 10 {
		t.Fatalf("Cid score: got %d, want 10", cid.Score)
	}
}

func TestSubmit_AcceptedOnlyOnce(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	h.submit("Ann", 1990, false)
	wantCode(t, h.engine.Submit("Ann", 1984, false), CodeAlreadySubmitted)
	h.admin("Ann", ActionEndRound)

	ann := findPlayer(t, h.waitPhase(PhaseReveal), "Ann")
	if ann.Guess == nil || *ann.Guess != 1990 {
		t.Fatalf("first guess must stand: %+v", ann.Guess)
	}
}

func TestSubmit_RejectedAtDeadline(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.join("Bo")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	h.clock.Advance(30 * time.Second)
	wantCode(t, h.engine.Submit("Bo", 1984, false), CodeRoundExpired)

	bo := findPlayer(t, h.waitPhase(PhaseReveal), "Bo")
	if !bo.Missed || bo.Score != 0 {
		t.Fatalf("late guess must not be scored: %+v", bo)
	}
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	wantCode(t, h.engine.Submit("Ann", 1984, false), CodeRoundExpired)
	wantCode(t, h.engine.Submit("Nobody", 1984, false), CodeNotJoined)

	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	wantCode(t, h.engine.Submit("Ann", 1492, false), CodeGuessInvalid)
	wantCode(t, h.engine.Submit("Ann", 3000, false), CodeGuessInvalid)
	h.submit("Ann", 1984, false)
}

func TestEndRound_OneOutcomePerParticipant(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	for _, name := range []string{"Ann", "Bo", "Cid"} {
		h.join(name)
	}
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)
	h.submit("Bo", 1990, false)
	h.admin("Ann", ActionEndRound)

	snap := h.waitPhase(PhaseReveal)
	for _, p := range snap.Players {
		if p.Outcome == nil {
			t.Fatalf("%s has no outcome", p.Name)
		}
	}
	if !findPlayer(t, snap, "Ann").Missed || !findPlayer(t, snap, "Cid").Missed {
		t.Fatal("non-submitters should be marked missed")
	}
	if findPlayer(t, snap, "Bo").Missed {
		t.Fatal("Bo submitted")
	}
}

func TestSteal_CopiesGuessAndOutcome(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.join("Bo")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	wantCode(t, h.engine.Steal("Bo", "Ann"), CodeStealInvalid)
	h.submit("Ann", 1982, true)
	wantCode(t, h.engine.Steal("Bo", "Bo"), CodeStealInvalid)
	if err := h.engine.Steal("Bo", "ann"); err != nil {
		t.Fatalf("steal: %v", err)
	}
	wantCode(t, h.engine.Submit("Bo", 1984, false), CodeAlreadySubmitted)

	h.admin("Ann", ActionEndRound)
	snap := h.waitPhase(PhaseReveal)

	ann, bo := findPlayer(t, snap, "Ann"), findPlayer(t, snap, "Bo")
	if bo.StolenFrom != "Ann" || bo.Guess == nil || *bo.Guess != 1982 {
		t.Fatalf("Bo: %+v", bo)
	}
	if ann.Outcome.Points != 10 || ann.Outcome.Bet != scoring.BetWon {
		t.Fatalf("Ann: %+v", ann.Outcome)
	}
	if bo.Outcome.Points != ann.Outcome.Points || bo.Outcome.Bet != ann.Outcome.Bet {
		t.Fatalf("outcomes differ: Ann %+v, Bo %+v", ann.Outcome, bo.Outcome)
	}
	if bo.Score != 10 || bo.Streak != 1 {
		t.Fatalf("Bo score %d streak %d", bo.Score, bo.Streak)
	}

	h.admin("Ann", ActionNextRound)
	h.waitPhase(PhasePlaying)
	h.submit("Ann", 1995, false)
	wantCode(t, h.engine.Steal("Bo", "Ann"), CodeNoStealsLeft)
}

func TestPauseResume_KeepsDeadline(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	before := h.waitPhase(PhasePlaying)

	h.clock.Advance(10 * time.Second)
	h.admin("Ann", ActionPause)

	paused := h.waitPhase(PhasePaused)
	if paused.PauseReason != PauseAdmin || paused.PausedFrom != PhasePlaying {
		t.Fatalf("paused snapshot: %+v", paused)
	}
	wantCode(t, h.engine.Submit("Ann", 1984, false), CodeRoundExpired)

	h.clock.Advance(5 * time.Second)
	h.admin("Ann", ActionResume)

	after := h.waitPhase(PhasePlaying)
	if after.Deadline != before.Deadline {
		t.Fatalf("deadline moved: %d -> %d", before.Deadline, after.Deadline)
	}

	h.clock.Advance(15 * time.Second)
	h.waitPhase(PhaseReveal)
}

func TestPauseResume_PastDeadlineEndsRound(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)
	h.submit("Ann", 1984, false)

	h.admin("Ann", ActionPause)
	h.clock.Advance(time.Minute)

	if snap := h.snapshot(); snap.Phase != PhasePaused {
		t.Fatalf("a paused round must not expire: %s", snap.Phase)
	}

	h.admin("Ann", ActionResume)
	snap := h.snapshot()
	if snap.Phase != PhaseReveal {
		t.Fatalf("phase after resume: got %s, want REVEAL", snap.Phase)
	}
	if ann := findPlayer(t, snap, "Ann"); ann.Score != 10 {
		t.Fatalf("Ann score: %d", ann.Score)
	}
}

func TestAdminPhaseViolations(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.join("Bo")

	wantCode(t, h.engine.Admin("Bo", ActionStartGame), CodeNotAdmin)
	wantCode(t, h.engine.Admin("Ann", ActionNextRound), CodeWrongPhase)
	wantCode(t, h.engine.Admin("Ann", ActionEndRound), CodeWrongPhase)
	wantCode(t, h.engine.Admin("Ann", ActionResume), CodeWrongPhase)
	wantCode(t, h.engine.Admin("Ann", ActionNewGame), CodeWrongPhase)
	wantCode(t, h.engine.Admin("Ann", AdminAction(99)), CodeUnknownAction)

	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)
	wantCode(t, h.engine.Admin("Ann", ActionStartGame), CodeWrongPhase)
}

func TestEndGame_ThenNewGame(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	first := h.snapshot().GameID

	h.admin("Ann", ActionEndGame)
	h.waitPhase(PhaseEnd)

	wantCode(t, h.engine.Admin("Ann", ActionEndGame), CodeGameEnded)
	_, err := h.engine.Join("Bo")
	wantCode(t, err, CodeGameEnded)

	h.admin("Ann", ActionNewGame)
	snap := h.waitPhase(PhaseLobby)
	if snap.GameID == first || snap.PlayerCount != 0 {
		t.Fatalf("new game should be fresh: %+v", snap)
	}
}

func TestStartRound_SkipsFailingSong(t *testing.T) {
	h := newHarness(t, testSongs(), nil)
	h.pb.failURIs["local:track:thriller"] = true

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	if played := h.pb.playedURIs(); len(played) != 1 || played[0] != "local:track:wonderwall" {
		t.Fatalf("played: %v", played)
	}

	h.admin("Ann", ActionEndRound)
	h.admin("Ann", ActionNextRound)
	h.waitPhase(PhaseEnd)
}

func TestStartRound_TargetDownPausesThenRecovers(t *testing.T) {
	h := newHarness(t, testSongs(), nil)
	h.pb.setDown(true)

	h.join("Ann")
	h.admin("Ann", ActionStartGame)

	snap := h.waitPhase(PhasePaused)
	if snap.PauseReason != PausePlaybackUnavailable || snap.PausedFrom != PhaseLobby {
		t.Fatalf("paused snapshot: %+v", snap)
	}

	h.pb.setDown(false)
	h.admin("Ann", ActionResume)

	snap = h.waitPhase(PhasePlaying)
	if snap.Round != 1 || snap.TotalRounds != 2 {
		t.Fatalf("round %d/%d", snap.Round, snap.TotalRounds)
	}
}

func TestNowPlayingMetadataMerged(t *testing.T) {
	h := newHarness(t, testSongs(), nil)
	h.pb.nowPlayed = Metadata{Artist: "Michael Jackson", Title: "Thriller"}

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	snap := h.snapshot()
	if snap.Song == nil || snap.Song.Title != "Thriller" || snap.Song.Artist != "Michael Jackson" {
		t.Fatalf("song: %+v", snap.Song)
	}
	if snap.Song.Year != 0 || snap.Song.FunFact != "" {
		t.Fatalf("year and fun fact must be withheld while playing: %+v", snap.Song)
	}
}

func TestDisconnect_GracePeriod(t *testing.T) {
	h := newHarness(t, testSongs(), func(c *Config) {
		c.GracePeriod = time.Minute
	})

	h.join("Ann")
	h.join("Bo")

	h.engine.Disconnect("Bo")
	if bo := findPlayer(t, h.snapshot(), "Bo"); bo.Connected {
		t.Fatal("Bo should be disconnected")
	}

	_, err := h.engine.Join("ann")
	wantCode(t, err, CodeNameTaken)

	if j := h.join("BO"); !j.Reconnected || j.Name != "Bo" {
		t.Fatalf("reclaim: %+v", j)
	}

	h.engine.Disconnect("Bo")
	h.clock.Advance(time.Minute)

	snap := h.waitPlayerCount(1)
	if len(snap.Players) != 1 || snap.Players[0].Name != "Ann" {
		t.Fatalf("players: %+v", snap.Players)
	}
}

func TestAdminDisconnect_PausesAndResumes(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.join("Bo")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	h.engine.Disconnect("Ann")
	snap := h.waitPhase(PhasePaused)
	if snap.PauseReason != PauseAdminDisconnected {
		t.Fatalf("reason: %s", snap.PauseReason)
	}

	h.join("Ann")
	h.waitPhase(PhasePlaying)
}

func TestAdminExpiry_PromotesNextPlayer(t *testing.T) {
	h := newHarness(t, testSongs(), func(c *Config) {
		c.GracePeriod = time.Minute
	})

	h.join("Ann")
	h.join("Bo")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)

	h.engine.Disconnect("Ann")
	h.waitPhase(PhasePaused)

	h.clock.Advance(time.Minute)
	snap := h.waitPlayerCount(1)

	if bo := findPlayer(t, snap, "Bo"); !bo.IsAdmin {
		t.Fatal("Bo should have been promoted")
	}
	if snap.Phase != PhasePlaying && snap.Phase != PhaseReveal {
		t.Fatalf("game should resume under the new admin, got %s", snap.Phase)
	}
}

func TestJoin_Validation(t *testing.T) {
	h := newHarness(t, testSongs(), func(c *Config) {
		c.MaxPlayers = 2
	})

	_, err := h.engine.Join("   ")
	wantCode(t, err, CodeNameInvalid)
	_, err = h.engine.Join("abcdefghijklmnopqrstu")
	wantCode(t, err, CodeNameInvalid)

	h.join("Ann")
	_, err = h.engine.Join("ANN")
	wantCode(t, err, CodeNameTaken)

	h.join("Bo")
	_, err = h.engine.Join("Cid")
	wantCode(t, err, CodeGameFull)

	if snap := h.snapshot(); snap.PlayerCount != 2 || snap.JoinURL == "" {
		t.Fatalf("lobby snapshot: %+v", snap)
	}
}

func TestCreate_RejectsEmptyPlaylist(t *testing.T) {
	e := NewEngine(DefaultConfig(), newFakePlayback(), nil)
	e.async = func(f func()) { f() }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	_, err := e.Create([]Song{{URI: "", Year: 1999}, {URI: "x", Year: 0}})
	wantCode(t, err, CodeNoSongs)

	c, err := e.Create(testSongs())
	if err != nil || c.ID == "" {
		t.Fatalf("create: %+v %v", c, err)
	}

	_, err = e.Create(testSongs())
	wantCode(t, err, CodeWrongPhase)
}

func TestStartRound_RejectedWhileStarting(t *testing.T) {
	h := newHarness(t, testSongs(), nil)
	h.join("Ann")

	var held []func()
	h.engine.async = func(f func()) { held = append(held, f) }

	h.admin("Ann", ActionStartGame)
	if snap := h.snapshot(); snap.Phase != PhaseLobby {
		t.Fatalf("phase before playback reports: %s", snap.Phase)
	}
	wantCode(t, h.engine.Admin("Ann", ActionStartGame), CodeRoundStarting)

	h.engine.async = func(f func()) { f() }
	if len(held) != 1 {
		t.Fatalf("held %d playback attempts, want 1", len(held))
	}
	held[0]()

	h.waitPhase(PhasePlaying)
	if got := h.pb.playedURIs(); len(got) != 1 {
		t.Fatalf("played %v, want one song", got)
	}
}

func TestLateJoinDuringReveal_PlaysNextRound(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)
	h.admin("Ann", ActionEndRound)
	h.waitPhase(PhaseReveal)

	if j := h.join("Bo"); !j.LateJoin {
		t.Fatal("a join during REVEAL is a late join")
	}

	h.admin("Ann", ActionNextRound)
	h.waitPhase(PhasePlaying)
	h.submit("Bo", 1995, false)
	h.admin("Ann", ActionEndRound)

	snap := h.waitPhase(PhaseReveal)
	bo := findPlayer(t, snap, "Bo")
	if bo.Outcome == nil || bo.Outcome.Points != 10 || bo.Score != 10 || !bo.LateJoin {
		t.Fatalf("Bo in round 2: %+v", bo)
	}
}

func TestEndGame_FromPausedRoundScoresIt(t *testing.T) {
	h := newHarness(t, testSongs(), nil)

	h.join("Ann")
	h.join("Bo")
	h.admin("Ann", ActionStartGame)
	h.waitPhase(PhasePlaying)
	h.submit("Ann", 1984, false)

	h.admin("Ann", ActionPause)
	h.waitPhase(PhasePaused)
	h.admin("Ann", ActionEndGame)

	snap := h.waitPhase(PhaseEnd)
	if snap.Winner != "Ann" || snap.PauseReason != "" {
		t.Fatalf("end snapshot: %+v", snap)
	}
	if ann := findPlayer(t, snap, "Ann"); ann.Score != 10 {
		t.Fatalf("Ann score: got %d, want 10", ann.Score)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.sink.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sums := h.sink.all()
	if len(sums) != 1 || sums[0].Rounds != 1 || sums[0].Players[0].Score != 10 {
		t.Fatalf("summaries: %+v", sums)
	}
}
