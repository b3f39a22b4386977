package session

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ProtectKind distinguishes the two protective order workflows.
type ProtectKind string

const (
	ProtectStop   ProtectKind = "stop_loss"
	ProtectTarget ProtectKind = "take_profit"
)

const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Account is the credential set and display identity bound to a session.
type Account struct {
	Index       int
	Name        string
	Description string
	APIKey      string
	APISecret   string
}

// StraddleDraft accumulates the trade workflow selections from asset pick to
// confirmation.
type StraddleDraft struct {
	Asset         string
	Expiry        time.Time
	Spot          decimal.Decimal
	Strike        decimal.Decimal
	CallProductID int64
	PutProductID  int64
	CallSymbol    string
	PutSymbol     string
	LotSize       int
	Direction     string
}

// ProtectiveDraft is the single-position stop/target workflow scratch,
// created when a position is picked and completed once both price inputs are
// in.
type ProtectiveDraft struct {
	Kind      ProtectKind
	ProductID int64
	Size      int // signed; negative is short
	Entry     decimal.Decimal

	StopPrice  decimal.Decimal
	LimitPrice decimal.Decimal
	Ready      bool // prices derived, awaiting confirmation
}

func (d *ProtectiveDraft) Long() bool { return d.Size > 0 }

// BatchLeg is one position offered in a multi-position protective flow.
type BatchLeg struct {
	ProductID int64
	Symbol    string
	Size      int
	Entry     decimal.Decimal
	Selected  bool

	StopPrice  decimal.Decimal
	LimitPrice decimal.Decimal
}

func (l BatchLeg) Long() bool { return l.Size > 0 }

// BatchDraft is the multi-position protective workflow scratch. Legs hold
// every open position; Selected marks the ones the user toggled on.
type BatchDraft struct {
	Kind       ProtectKind
	Legs       []BatchLeg
	TriggerPct decimal.Decimal
	LimitPct   decimal.Decimal
	Ready      bool
}

// Toggle flips one leg's selection, reporting whether the product was listed.
func (d *BatchDraft) Toggle(productID int64) bool {
	for i := range d.Legs {
		if d.Legs[i].ProductID == productID {
			d.Legs[i].Selected = !d.Legs[i].Selected
			return true
		}
	}
	return false
}

// SelectedLegs returns pointers to the toggled-on legs in listing order.
func (d *BatchDraft) SelectedLegs() []*BatchLeg {
	var out []*BatchLeg
	for i := range d.Legs {
		if d.Legs[i].Selected {
			out = append(out, &d.Legs[i])
		}
	}
	return out
}

// Session is one user's conversation. Callers hold the lock across a whole
// update, so a user's workflow steps never interleave while different users
// proceed concurrently.
type Session struct {
	mu sync.Mutex

	UserID  int64
	Account *Account

	State      State
	Straddle   *StraddleDraft
	Protective *ProtectiveDraft
	Batch      *BatchDraft
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// ResetWorkflows drops any in-flight workflow and pending input prompt while
// keeping the active account. Main-menu returns and account switches land
// here from any workflow depth.
func (s *Session) ResetWorkflows() {
	s.State = nil
	s.Straddle = nil
	s.Protective = nil
	s.Batch = nil
}

// SetAccount binds an account and clears whatever the previous account had in
// flight.
func (s *Session) SetAccount(a Account) {
	s.ResetWorkflows()
	s.Account = &a
}

// ClearAccount returns the session to the unauthenticated starting point.
func (s *Session) ClearAccount() {
	s.ResetWorkflows()
	s.Account = nil
}

// Store hands out sessions keyed by chat user id. It is safe for concurrent
// use and never expires entries; state is small and lives for the process.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the user's session, creating it on first contact. Lookup and
// creation share one critical section, so concurrent updates for a brand-new
// user agree on a single session.
func (st *Store) Get(userID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[userID]
	if !ok {
		s = &Session{UserID: userID}
		st.sessions[userID] = s
	}
	return s
}

// Len reports how many sessions are live.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
