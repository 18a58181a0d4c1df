package record

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IdentityResolver resolves the caller of a request server-side.
// Handlers only ever hand a resolved Identity to the Service.
type IdentityResolver interface {
	Resolve(r *http.Request) (Identity, bool)
}

// Account is a login known to the AccountResolver
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"` // bcrypt
	EmployeeID   string `json:"employee_id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
}

// AccountResolver authenticates HTTP basic auth against a fixed set of accounts
type AccountResolver struct {
	accounts map[string]Account
}

// NewAccountResolver indexes accounts by username
func NewAccountResolver(accounts []Account) *AccountResolver {
	byName := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		if a.Role == "" {
			a.Role = RoleEmployee
		}
		byName[a.Username] = a
	}
	return &AccountResolver{accounts: byName}
}

// LoadAccounts reads a JSON array of accounts from path
func LoadAccounts(path string) (*AccountResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts file: %w", err)
	}
	for _, a := range accounts {
		if a.Username == "" || a.EmployeeID == "" || a.PasswordHash == "" {
			return nil, fmt.Errorf("account %q is missing username, employee_id or password_hash", a.Username)
		}
		if a.Role != "" && a.Role != RoleAdmin && a.Role != RoleEmployee {
			return nil, fmt.Errorf("account %q has unknown role %q", a.Username, a.Role)
		}
	}
	return NewAccountResolver(accounts), nil
}

// Resolve checks basic auth credentials and returns the matching identity
func (a *AccountResolver) Resolve(r *http.Request) (Identity, bool) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return Identity{}, false
	}

	account, ok := a.accounts[username]
	if !ok {
		return Identity{}, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Identity{}, false
	}

	return Identity{
		EmployeeID:   account.EmployeeID,
		EmployeeName: account.Name,
		Role:         account.Role,
	}, true
}

// Headers set by an authenticating reverse proxy
const (
	HeaderEmployeeID   = "X-Employee-Id"
	HeaderEmployeeName = "X-Employee-Name"
	HeaderEmployeeRole = "X-Employee-Role"
)

// HeaderResolver trusts identity headers injected by an authenticating proxy.
// Only use it when the proxy strips these headers from client requests.
type HeaderResolver struct{}

// Resolve reads the identity headers
func (HeaderResolver) Resolve(r *http.Request) (Identity, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderEmployeeID))
	if id == "" {
		return Identity{}, false
	}

	role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderEmployeeRole))))
	if role != RoleAdmin {
		role = RoleEmployee
	}

	return Identity{
		EmployeeID:   id,
		EmployeeName: strings.TrimSpace(r.Header.Get(HeaderEmployeeName)),
		Role:         role,
	}, true
}
