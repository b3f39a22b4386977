package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const maxAccounts = 5

// Account is one configured exchange credential slot.
type Account struct {
	Index       int
	Name        string
	Description string
	APIKey      string
	APISecret   string
}

// Registry holds the configured accounts in slot order.
type Registry struct {
	accounts []Account
}

// NewRegistry builds a registry from explicit accounts, bypassing the
// environment.
func NewRegistry(accounts ...Account) *Registry {
	return &Registry{accounts: accounts}
}

// LoadAccounts reads ACCOUNT_{i}_API_KEY, _API_SECRET, _NAME and
// _DESCRIPTION for slots 1 through 5. A slot with none of its variables set
// is skipped; a partially configured slot is an error. Problems across all
// slots are reported together so a broken deploy surfaces everything at once.
func LoadAccounts() (*Registry, error) {
	var (
		accounts []Account
		problems []string
	)
	for i := 1; i <= maxAccounts; i++ {
		key := os.Getenv(fmt.Sprintf("ACCOUNT_%d_API_KEY", i))
		secret := os.Getenv(fmt.Sprintf("ACCOUNT_%d_API_SECRET", i))
		name := os.Getenv(fmt.Sprintf("ACCOUNT_%d_NAME", i))
		desc := os.Getenv(fmt.Sprintf("ACCOUNT_%d_DESCRIPTION", i))

		if key == "" && secret == "" && name == "" && desc == "" {
			continue
		}
		var missing []string
		if key == "" {
			missing = append(missing, fmt.Sprintf("ACCOUNT_%d_API_KEY", i))
		}
		if secret == "" {
			missing = append(missing, fmt.Sprintf("ACCOUNT_%d_API_SECRET", i))
		}
		if name == "" {
			missing = append(missing, fmt.Sprintf("ACCOUNT_%d_NAME", i))
		}
		if len(missing) > 0 {
			problems = append(problems, strings.Join(missing, ", "))
			continue
		}
		accounts = append(accounts, Account{
			Index:       i,
			Name:        name,
			Description: desc,
			APIKey:      key,
			APISecret:   secret,
		})
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("incomplete account slots: %s", strings.Join(problems, "; "))
	}
	if len(accounts) == 0 {
		return nil, errors.New("no trading accounts configured; set ACCOUNT_1_API_KEY, ACCOUNT_1_API_SECRET and ACCOUNT_1_NAME")
	}
	return &Registry{accounts: accounts}, nil
}

// Get returns the account in slot index, or nil if that slot is not
// configured.
func (r *Registry) Get(index int) *Account {
	for i := range r.accounts {
		if r.accounts[i].Index == index {
			return &r.accounts[i]
		}
	}
	return nil
}

// All lists the configured accounts in slot order.
func (r *Registry) All() []Account {
	return append([]Account(nil), r.accounts...)
}

func (r *Registry) Count() int { return len(r.accounts) }
