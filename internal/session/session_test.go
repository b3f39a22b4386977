package session

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStoreGetOrCreate(t *testing.T) {
	st := NewStore()

	a := st.Get(7)
	if a == nil {
		t.Fatalf("expected a session")
	}
	if b := st.Get(7); a != b {
		t.Fatalf("same user returned distinct sessions")
	}
	if c := st.Get(8); c == a {
		t.Fatalf("distinct users share a session")
	}
	if got, want := st.Len(), 2; got != want {
		t.Fatalf("session count mismatch: got %d want %d", got, want)
	}
}

func TestStoreConcurrentGetSingleSession(t *testing.T) {
	st := NewStore()

	const n = 16
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = st.Get(42)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("concurrent Get created multiple sessions for one user")
		}
	}
	if got, want := st.Len(), 1; got != want {
		t.Fatalf("session count mismatch: got %d want %d", got, want)
	}
}

func TestResetWorkflowsKeepsAccount(t *testing.T) {
	s := &Session{UserID: 1}
	s.SetAccount(Account{Index: 1, Name: "Main", APIKey: "k", APISecret: "x"})
	s.State = AwaitingStopLimitPct{TriggerPct: decimal.NewFromInt(5)}
	s.Straddle = &StraddleDraft{Asset: "BTCUSD"}
	s.Protective = &ProtectiveDraft{Kind: ProtectStop, ProductID: 27}
	s.Batch = &BatchDraft{Kind: ProtectTarget}

	s.ResetWorkflows()

	if s.State != nil || s.Straddle != nil || s.Protective != nil || s.Batch != nil {
		t.Fatalf("workflow state survived reset: %+v", s)
	}
	if s.Account == nil || s.Account.Name != "Main" {
		t.Fatalf("reset dropped the account")
	}
}

func TestSetAccountClearsPreviousWork(t *testing.T) {
	s := &Session{UserID: 1}
	s.SetAccount(Account{Index: 1, Name: "A", APIKey: "k1", APISecret: "x"})
	s.State = AwaitingCustomLot{}
	s.Straddle = &StraddleDraft{Asset: "ETHUSD", LotSize: 5}

	s.SetAccount(Account{Index: 2, Name: "B", APIKey: "k2", APISecret: "y"})

	if s.State != nil || s.Straddle != nil {
		t.Fatalf("account switch kept stale workflow state")
	}
	if got, want := s.Account.Name, "B"; got != want {
		t.Fatalf("account mismatch: got %q want %q", got, want)
	}
}

func TestClearAccount(t *testing.T) {
	s := &Session{UserID: 1}
	s.SetAccount(Account{Index: 1, Name: "A", APIKey: "k", APISecret: "x"})
	s.Protective = &ProtectiveDraft{ProductID: 3}

	s.ClearAccount()

	if s.Account != nil {
		t.Fatalf("account survived clear")
	}
	if s.Protective != nil {
		t.Fatalf("workflow state survived clear")
	}
}

func TestBatchDraftToggle(t *testing.T) {
	d := &BatchDraft{
		Kind: ProtectStop,
		Legs: []BatchLeg{
			{ProductID: 1, Symbol: "C-BTC-50000", Size: 5, Entry: decimal.NewFromInt(1000)},
			{ProductID: 2, Symbol: "P-BTC-50000", Size: -3, Entry: decimal.NewFromInt(900)},
		},
	}

	if !d.Toggle(2) {
		t.Fatalf("toggle missed a listed product")
	}
	if d.Toggle(99) {
		t.Fatalf("toggle matched an unlisted product")
	}

	sel := d.SelectedLegs()
	if got, want := len(sel), 1; got != want {
		t.Fatalf("selected count mismatch: got %d want %d", got, want)
	}
	if got, want := sel[0].ProductID, int64(2); got != want {
		t.Fatalf("selected product mismatch: got %d want %d", got, want)
	}

	d.Toggle(2)
	if got := d.SelectedLegs(); len(got) != 0 {
		t.Fatalf("re-toggle left %d legs selected", len(got))
	}
}
