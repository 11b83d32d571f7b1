// internal/game/room.go
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordchain/internal/dictionary"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxPlayers    = 4
	DefaultRoundDuration = 30 * time.Second
	DefaultGameDuration  = 30 * time.Minute
	DefaultRoomTTL       = time.Hour
	minPlayersToStart    = 2

	ReasonFirstWord = "first word"
	ReasonValid     = "valid"
)

// SessionRef addresses one player's transport session. The room never looks
// inside it; it is only handed back to the Notifier.
type SessionRef string

// Notifier delivers outbound events. Implementations must not block and must
// not call back into the room, since rooms notify while holding their lock.
type Notifier interface {
	NotifyPlayer(roomID uuid.UUID, session SessionRef, ev Event) error
	// NotifyRoom may return a *DeliveryError naming the members it missed.
	NotifyRoom(roomID uuid.UUID, ev Event) error
}

// Phase is derived from the room's three phase flags.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseInProgress
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	}
	return "unknown"
}

// GameResult is handed to OnGameEnd once per room.
type GameResult struct {
	RoomID  uuid.UUID
	Winners []string
	Scores  map[string]int
	EndedAt time.Time
}

// RoomOptions tunes a room. Zero values fall back to the defaults above.
type RoomOptions struct {
	MaxPlayers    int
	RoundDuration time.Duration
	GameDuration  time.Duration
	RoomTTL       time.Duration

	// Seed fixes the turn order shuffle; 0 seeds from the clock.
	Seed int64

	Logger *logrus.Logger

	// OnGameEnd runs after the room lock is released, exactly once.
	OnGameEnd func(res GameResult)
	// OnDelete runs after the room lock is released when the room is deleted.
	// The room never removes itself from a registry; the hook owner does.
	OnDelete func(roomID uuid.UUID)
}

func (o RoomOptions) withDefaults() RoomOptions {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = DefaultMaxPlayers
	}
	if o.RoundDuration <= 0 {
		o.RoundDuration = DefaultRoundDuration
	}
	if o.GameDuration <= 0 {
		o.GameDuration = DefaultGameDuration
	}
	if o.RoomTTL <= 0 {
		o.RoomTTL = DefaultRoomTTL
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

type roomPlayer struct {
	session SessionRef
	score   int
}

// Room holds one game's state. Every exported method takes mu, and timer
// callbacks take it too, so all mutation is serialized per room.
type Room struct {
	ID              uuid.UUID
	Creator         string
	CreatedAt       time.Time
	RoomExpiry      time.Time
	GameEndDeadline time.Time

	mu sync.Mutex

	roomActive  bool
	gameStarted bool
	gameEnded   bool
	deleted     bool

	players   map[string]*roomPlayer
	joinOrder []string

	usedWords        map[string]struct{}
	lastWord         string
	turnOrder        []string
	currentTurnIndex int

	roundTimer  *time.Timer
	gameTimer   *time.Timer
	expiryTimer *time.Timer
	// roundGen invalidates round timers: a callback only acts if the
	// generation it was armed with is still current.
	roundGen uint64

	dict     *dictionary.Dictionary
	notifier Notifier
	rng      *rand.Rand
	opts     RoomOptions
	log      *logrus.Entry

	// afterUnlock collects hooks to run once mu is released.
	afterUnlock []func()
}

// NewRoom builds a lobby containing only the creator and arms the room expiry timer.
func NewRoom(id uuid.UUID, creator string, session SessionRef, dict *dictionary.Dictionary, notifier Notifier, opts RoomOptions) *Room {
	opts = opts.withDefaults()
	now := time.Now()
	r := &Room{
		ID:              id,
		Creator:         creator,
		CreatedAt:       now,
		RoomExpiry:      now.Add(opts.RoomTTL),
		GameEndDeadline: now.Add(opts.GameDuration),
		roomActive:      true,
		players:         map[string]*roomPlayer{creator: {session: session}},
		joinOrder:       []string{creator},
		usedWords:       make(map[string]struct{}),
		dict:            dict,
		notifier:        notifier,
		rng:             rand.New(rand.NewSource(opts.Seed)),
		opts:            opts,
		log:             opts.Logger.WithField("room", id.String()),
	}
	r.expiryTimer = time.AfterFunc(opts.RoomTTL, r.onRoomExpired)
	return r
}

func (r *Room) lock() {
	r.mu.Lock()
}

// unlock releases mu and then runs any hooks queued while it was held.
func (r *Room) unlock() {
	hooks := r.afterUnlock
	r.afterUnlock = nil
	r.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

// AddPlayer adds a player to the lobby with a score of 0.
func (r *Room) AddPlayer(username string, session SessionRef) error {
	r.lock()
	defer r.unlock()

	if r.deleted || r.gameEnded {
		return ErrRoomClosed
	}
	if r.gameStarted {
		return ErrGameInProgress
	}
	if len(r.players) >= r.opts.MaxPlayers {
		return ErrRoomFull
	}
	if _, ok := r.players[username]; ok {
		return ErrDuplicatePlayer
	}
	r.players[username] = &roomPlayer{session: session}
	r.joinOrder = append(r.joinOrder, username)
	r.log.WithField("player", username).Info("Player joined")
	return nil
}

// RemovePlayer drops a player and returns how many remain. If the player held
// the turn, the turn passes to whoever followed them. A game left with fewer
// than two players ends immediately.
func (r *Room) RemovePlayer(username string) (int, error) {
	r.lock()
	defer r.unlock()
	return r.removePlayerLocked(username, false)
}

// Leave is RemovePlayer for a player who walked out: the remaining players
// get playerLeft before any turn change or gameEnded the departure causes.
// Nothing is announced when the room is left empty.
func (r *Room) Leave(username string) (int, error) {
	r.lock()
	defer r.unlock()
	return r.removePlayerLocked(username, true)
}

func (r *Room) removePlayerLocked(username string, announce bool) (int, error) {
	if _, ok := r.players[username]; !ok {
		return len(r.players), ErrPlayerNotFound
	}
	delete(r.players, username)
	r.joinOrder = removeString(r.joinOrder, username)
	r.log.WithField("player", username).Info("Player left")

	if announce && len(r.players) > 0 {
		r.notifyRoomLocked(PlayerLeft{Username: username, Players: append([]string(nil), r.joinOrder...)})
	}

	if !r.inProgressLocked() {
		return len(r.players), nil
	}

	idx := indexOf(r.turnOrder, username)
	wasCurrent := idx >= 0 && idx == r.currentTurnIndex
	if idx >= 0 {
		r.turnOrder = append(r.turnOrder[:idx:idx], r.turnOrder[idx+1:]...)
		if idx < r.currentTurnIndex {
			r.currentTurnIndex--
		}
	}

	if len(r.players) < minPlayersToStart || len(r.turnOrder) == 0 {
		r.log.Info("Not enough players left, ending game")
		r.endGameLocked()
		return len(r.players), nil
	}

	if wasCurrent {
		// The follower slid into the removed slot, so the index stays put.
		r.currentTurnIndex %= len(r.turnOrder)
		r.notifyRoomLocked(TurnChanged{CurrentPlayer: r.currentTurnLocked()})
		r.startRoundLocked()
	}
	return len(r.players), nil
}

// StartGame moves the lobby into play: fixes the turn order, resets words,
// arms the game timer, and opens the first round.
func (r *Room) StartGame() error {
	r.lock()
	defer r.unlock()

	if r.deleted || r.gameEnded {
		return ErrRoomClosed
	}
	if r.gameStarted {
		return ErrGameInProgress
	}
	if len(r.players) < minPlayersToStart {
		r.notifyRoomLocked(GameStartedFailed{Reason: ReasonFor(ErrInsufficientPlayers)})
		return ErrInsufficientPlayers
	}

	r.turnOrder = r.buildTurnOrderLocked()
	r.currentTurnIndex = 0
	r.usedWords = make(map[string]struct{})
	r.lastWord = ""
	r.gameStarted = true

	r.gameTimer = time.AfterFunc(r.opts.GameDuration, r.onGameTimer)

	r.log.WithField("turnOrder", r.turnOrder).Info("Game started")
	r.notifyRoomLocked(GameStarted{
		TurnOrder:     append([]string(nil), r.turnOrder...),
		CurrentPlayer: r.currentTurnLocked(),
	})
	if r.dict.Degraded() {
		r.notifyRoomLocked(ErrorOccurred{
			Message: "The word list failed to load; no words can be accepted.",
			Code:    CodeDictionaryLoad,
		})
	}
	r.startRoundLocked()
	return nil
}

// buildTurnOrderLocked puts the creator first (if still present) followed by
// a Fisher-Yates shuffle of everyone else in join order.
func (r *Room) buildTurnOrderLocked() []string {
	order := make([]string, 0, len(r.players))
	others := make([]string, 0, len(r.players))
	for _, name := range r.joinOrder {
		if name == r.Creator {
			order = append(order, name)
			continue
		}
		others = append(others, name)
	}
	for i := len(others) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		others[i], others[j] = others[j], others[i]
	}
	return append(order, others...)
}

// ValidateWordPlay checks a submission without changing anything. The checks
// run in a fixed order and the first failure is returned. On success the
// reason is ReasonFirstWord or ReasonValid.
func (r *Room) ValidateWordPlay(username, word string) (string, error) {
	r.lock()
	defer r.unlock()
	return r.validateLocked(username, word)
}

func (r *Room) validateLocked(username, word string) (string, error) {
	if !r.inProgressLocked() || username != r.currentTurnLocked() {
		return "", ErrNotYourTurn
	}
	w := normalizeWord(word)
	if !r.dict.Contains(w) {
		return "", ErrInvalidWord
	}
	if r.lastWord == "" {
		return ReasonFirstWord, nil
	}
	first, _ := utf8.DecodeRuneInString(w)
	last, _ := utf8.DecodeLastRuneInString(r.lastWord)
	if first != last {
		return "", ErrWrongStartingLetter
	}
	if _, used := r.usedWords[w]; used {
		return "", ErrWordAlreadyUsed
	}
	return ReasonValid, nil
}

// PlayWord scores a valid word and passes the turn. Rejections go only to
// the submitting player and leave the room untouched.
func (r *Room) PlayWord(username, word string) error {
	r.lock()
	defer r.unlock()

	if !r.inProgressLocked() {
		r.notifyPlayerLocked(username, WordPlayFailed{Reason: ReasonFor(ErrGameNotInProgress), Code: CodeGameNotInProgress})
		return ErrGameNotInProgress
	}
	if _, err := r.validateLocked(username, word); err != nil {
		r.log.WithFields(logrus.Fields{"player": username, "word": word}).WithError(err).Debug("Word rejected")
		r.notifyPlayerLocked(username, WordPlayFailed{Reason: ReasonFor(err), Code: CodeFor(err)})
		return err
	}

	r.cancelRoundTimerLocked()

	w := normalizeWord(word)
	points := utf8.RuneCountInString(w)
	r.players[username].score += points
	r.usedWords[w] = struct{}{}
	r.lastWord = w

	r.log.WithFields(logrus.Fields{"player": username, "word": w, "points": points}).Info("Word played")
	r.notifyRoomLocked(WordPlayed{Username: username, Word: w, Points: points})
	r.nextTurnLocked()
	r.startRoundLocked()
	return nil
}

// nextTurnLocked advances the turn index. Callers guarantee a non-empty turn order.
func (r *Room) nextTurnLocked() {
	r.currentTurnIndex = (r.currentTurnIndex + 1) % len(r.turnOrder)
	r.notifyRoomLocked(TurnChanged{CurrentPlayer: r.currentTurnLocked()})
}

// startRoundLocked replaces the round timer with a fresh one bound to the
// current player and tells that player it is their turn.
func (r *Room) startRoundLocked() {
	r.cancelRoundTimerLocked()
	gen := r.roundGen
	player := r.currentTurnLocked()
	r.roundTimer = time.AfterFunc(r.opts.RoundDuration, func() {
		r.onRoundTimer(gen, player)
	})
	r.notifyPlayerLocked(player, YourTurn{TimeRemaining: int(r.opts.RoundDuration / time.Second)})
}

func (r *Room) cancelRoundTimerLocked() {
	r.roundGen++
	if r.roundTimer != nil {
		r.roundTimer.Stop()
		r.roundTimer = nil
	}
}

func (r *Room) onRoundTimer(gen uint64, player string) {
	r.lock()
	defer r.unlock()

	if gen != r.roundGen || !r.inProgressLocked() {
		r.log.WithField("player", player).Debug("Stale round timer ignored")
		return
	}
	r.handleRoundTimeoutLocked()
}

// handleRoundTimeoutLocked forfeits the current player's turn with zero points.
func (r *Room) handleRoundTimeoutLocked() {
	player := r.currentTurnLocked()
	r.roundTimer = nil
	r.log.WithField("player", player).Info("Turn timed out")
	r.notifyRoomLocked(TurnTimedOut{Player: player})
	r.nextTurnLocked()
	r.startRoundLocked()
}

func (r *Room) onGameTimer() {
	r.lock()
	defer r.unlock()
	if !r.inProgressLocked() {
		return
	}
	r.log.Info("Game time limit reached")
	r.endGameLocked()
}

// EndGame finishes an in-progress game. It returns false if the game was
// never started or has already ended.
func (r *Room) EndGame() (GameResult, bool) {
	r.lock()
	defer r.unlock()
	return r.endGameLocked()
}

func (r *Room) endGameLocked() (GameResult, bool) {
	if !r.inProgressLocked() {
		return GameResult{}, false
	}

	scores := r.scoresLocked()
	winners := DetermineWinners(scores)

	r.roomActive = false
	r.gameStarted = false
	r.gameEnded = true
	r.stopTimersLocked()

	ev := GameEnded{Winners: winners, PlayerScores: scores}
	if len(winners) == 1 {
		ev.Winner = winners[0]
	}
	r.log.WithFields(logrus.Fields{"winners": winners, "scores": scores}).Info("Game ended")
	r.notifyRoomLocked(ev)

	res := GameResult{RoomID: r.ID, Winners: winners, Scores: copyScores(scores), EndedAt: time.Now()}
	if hook := r.opts.OnGameEnd; hook != nil {
		r.afterUnlock = append(r.afterUnlock, func() { hook(res) })
	}
	return res, true
}

// Delete cancels every timer, tells the room why, and hands the room back
// to its owner through OnDelete. Deleting twice is a no-op.
func (r *Room) Delete(reason string) {
	r.lock()
	defer r.unlock()
	r.deleteLocked(reason)
}

func (r *Room) deleteLocked(reason string) {
	if r.deleted {
		return
	}
	r.deleted = true
	r.roomActive = false
	r.stopTimersLocked()
	r.log.WithField("reason", reason).Info("Room deleted")
	r.notifyRoomLocked(RoomDeleted{Reason: reason})
	if hook := r.opts.OnDelete; hook != nil {
		id := r.ID
		r.afterUnlock = append(r.afterUnlock, func() { hook(id) })
	}
}

func (r *Room) onRoomExpired() {
	r.lock()
	defer r.unlock()
	if r.deleted {
		return
	}
	// Results still go out if the room expires mid-game.
	r.endGameLocked()
	r.deleteLocked("Room expired")
}

func (r *Room) stopTimersLocked() {
	r.cancelRoundTimerLocked()
	if r.gameTimer != nil {
		r.gameTimer.Stop()
		r.gameTimer = nil
	}
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
		r.expiryTimer = nil
	}
}

// DetermineWinners returns every player holding the maximum score, sorted.
func DetermineWinners(scores map[string]int) []string {
	if len(scores) == 0 {
		return []string{}
	}
	best := 0
	first := true
	for _, s := range scores {
		if first || s > best {
			best = s
			first = false
		}
	}
	winners := make([]string, 0, 1)
	for name, s := range scores {
		if s == best {
			winners = append(winners, name)
		}
	}
	sort.Strings(winners)
	return winners
}

// --- notification helpers ---

// notifyRoomLocked broadcasts ev. Players the broadcast missed get a direct
// errorOccurred pointing them back to the lobby view. An error that does not
// say who was missed is treated as missing everyone.
func (r *Room) notifyRoomLocked(ev Event) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.NotifyRoom(r.ID, ev)
	if err == nil {
		return
	}
	r.log.WithError(err).WithField("event", ev.Name()).Warn("Room broadcast failed")

	var missed map[SessionRef]bool
	var de *DeliveryError
	if errors.As(err, &de) {
		missed = make(map[SessionRef]bool, len(de.Sessions))
		for _, s := range de.Sessions {
			missed[s] = true
		}
	}
	fallback := ErrorOccurred{
		Message:  fmt.Sprintf("Failed to deliver %s.", ev.Name()),
		Code:     CodeNotificationDelivery,
		Redirect: "/",
	}
	for _, name := range r.joinOrder {
		session := r.players[name].session
		if missed != nil && !missed[session] {
			continue
		}
		_ = r.notifier.NotifyPlayer(r.ID, session, fallback)
	}
}

// notifyPlayerLocked sends ev to one player. On failure the room is told
// that the player could not be reached.
func (r *Room) notifyPlayerLocked(username string, ev Event) {
	if r.notifier == nil {
		return
	}
	p, ok := r.players[username]
	if !ok {
		return
	}
	err := r.notifier.NotifyPlayer(r.ID, p.session, ev)
	if err == nil {
		return
	}
	r.log.WithError(err).WithFields(logrus.Fields{"event": ev.Name(), "player": username}).Warn("Player notification failed")
	_ = r.notifier.NotifyRoom(r.ID, ErrorOccurred{
		Message: fmt.Sprintf("Could not reach %s.", username),
		Code:    CodeNotificationDelivery,
	})
}

// --- read accessors ---

// Phase reports the room's lifecycle phase.
func (r *Room) Phase() Phase {
	r.lock()
	defer r.unlock()
	return r.phaseLocked()
}

func (r *Room) phaseLocked() Phase {
	switch {
	case r.gameEnded || r.deleted:
		return PhaseFinished
	case r.gameStarted:
		return PhaseInProgress
	}
	return PhaseLobby
}

// Players returns player names in join order.
func (r *Room) Players() []string {
	r.lock()
	defer r.unlock()
	return append([]string(nil), r.joinOrder...)
}

// HasPlayer reports whether username is in the room.
func (r *Room) HasPlayer(username string) bool {
	r.lock()
	defer r.unlock()
	_, ok := r.players[username]
	return ok
}

// Snapshot is a copy of a room's observable state.
type Snapshot struct {
	ID              uuid.UUID      `json:"id"`
	Creator         string         `json:"creator"`
	Phase           string         `json:"phase"`
	RoomActive      bool           `json:"roomActive"`
	GameStarted     bool           `json:"gameStarted"`
	GameEnded       bool           `json:"gameEnded"`
	Players         []string       `json:"players"`
	Scores          map[string]int `json:"scores"`
	TurnOrder       []string       `json:"turnOrder,omitempty"`
	CurrentTurn     string         `json:"currentTurn,omitempty"`
	LastWord        string         `json:"lastWord,omitempty"`
	UsedWords       []string       `json:"usedWords,omitempty"`
	RoundTimerArmed bool           `json:"-"`
	MaxPlayers      int            `json:"maxPlayers"`
	CreatedAt       time.Time      `json:"createdAt"`
	RoomExpiry      time.Time      `json:"roomExpiry"`
	GameEndDeadline time.Time      `json:"gameEndDeadline"`
}

func (r *Room) Snapshot() Snapshot {
	r.lock()
	defer r.unlock()

	used := make([]string, 0, len(r.usedWords))
	for w := range r.usedWords {
		used = append(used, w)
	}
	sort.Strings(used)

	return Snapshot{
		ID:              r.ID,
		Creator:         r.Creator,
		Phase:           r.phaseLocked().String(),
		RoomActive:      r.roomActive,
		GameStarted:     r.gameStarted,
		GameEnded:       r.gameEnded,
		Players:         append([]string(nil), r.joinOrder...),
		Scores:          r.scoresLocked(),
		TurnOrder:       append([]string(nil), r.turnOrder...),
		CurrentTurn:     r.currentTurnLocked(),
		LastWord:        r.lastWord,
		UsedWords:       used,
		RoundTimerArmed: r.roundTimer != nil,
		MaxPlayers:      r.opts.MaxPlayers,
		CreatedAt:       r.CreatedAt,
		RoomExpiry:      r.RoomExpiry,
		GameEndDeadline: r.GameEndDeadline,
	}
}

func (r *Room) inProgressLocked() bool {
	return r.roomActive && r.gameStarted && !r.gameEnded && !r.deleted
}

func (r *Room) currentTurnLocked() string {
	if len(r.turnOrder) == 0 || r.currentTurnIndex < 0 || r.currentTurnIndex >= len(r.turnOrder) {
		return ""
	}
	return r.turnOrder[r.currentTurnIndex]
}

func (r *Room) scoresLocked() map[string]int {
	scores := make(map[string]int, len(r.players))
	for name, p := range r.players {
		scores[name] = p.score
	}
	return scores
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func removeString(s []string, v string) []string {
	if i := indexOf(s, v); i >= 0 {
		return append(s[:i:i], s[i+1:]...)
	}
	return s
}
