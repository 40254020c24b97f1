// Package credentials stores API tokens for remote backends in the OS
// keyring, with fallback to environment variables.
package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Source indicates where a token was found
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// Account identifies the owner of one token
type Account struct {
	Backend  string
	Username string
}

func (a Account) normalized() Account {
	return Account{
		Backend:  strings.ToLower(strings.TrimSpace(a.Backend)),
		Username: strings.TrimSpace(a.Username),
	}
}

// service is the keyring service name, e.g. "taskmaster-rest"
func (a Account) service() string {
	return "taskmaster-" + a.Backend
}

func (a Account) String() string {
	return a.Backend + "/" + a.Username
}

// TokenEnvVar returns the environment variable holding the token for backend.
func TokenEnvVar(backend string) string {
	return fmt.Sprintf("TASKMASTER_%s_TOKEN", strings.ToUpper(strings.TrimSpace(backend)))
}

// UsernameEnvVar returns the environment variable that scopes TokenEnvVar to one user.
func UsernameEnvVar(backend string) string {
	return fmt.Sprintf("TASKMASTER_%s_USERNAME", strings.ToUpper(strings.TrimSpace(backend)))
}

// Token is the result of a lookup. Value is never serialized.
type Token struct {
	Account
	Value  string
	Source Source
}

// Found reports whether a token was located.
func (t Token) Found() bool {
	return t.Source != SourceNone
}

// MarshalJSON renders the lookup result without the secret
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Backend  string `json:"backend"`
		Username string `json:"username"`
		Source   Source `json:"source"`
		Found    bool   `json:"found"`
	}{t.Backend, t.Username, t.Source, t.Found()})
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Store looks tokens up in the keyring and then the environment
type Store struct {
	keyring Keyring
	getenv  func(string) string
}

// Option configures a Store
type Option func(*Store)

// WithKeyring replaces the system keyring, e.g. with a MockKeyring in tests
func WithKeyring(k Keyring) Option {
	return func(s *Store) {
		s.keyring = k
	}
}

// NewStore creates a token store backed by the system keyring
func NewStore(opts ...Option) *Store {
	s := &Store{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores token in the keyring
func (s *Store) Save(ctx context.Context, acct Account, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	acct = acct.normalized()
	if token == "" {
		return errors.New("token cannot be empty")
	}
	return s.keyring.Set(acct.service(), acct.Username, token)
}

// Lookup finds the token for acct. A missing token is not an error; check
// Token.Found. An unreachable keyring falls through to the environment.
func (s *Store) Lookup(ctx context.Context, acct Account) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	acct = acct.normalized()

	value, err := s.keyring.Get(acct.service(), acct.Username)
	switch {
	case err == nil && value != "":
		return Token{Account: acct, Value: value, Source: SourceKeyring}, nil
	case err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyringNotAvailable):
		return Token{}, err
	}

	if value := s.envToken(acct); value != "" {
		return Token{Account: acct, Value: value, Source: SourceEnvironment}, nil
	}
	return Token{Account: acct, Source: SourceNone}, nil
}

// envToken reads the token variable unless the username variable names someone else
func (s *Store) envToken(acct Account) string {
	if user := s.getenv(UsernameEnvVar(acct.Backend)); user != "" && user != acct.Username {
		return ""
	}
	return s.getenv(TokenEnvVar(acct.Backend))
}

// Remove deletes the keyring entry. Removing a missing entry succeeds.
func (s *Store) Remove(ctx context.Context, acct Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	acct = acct.normalized()
	if err := s.keyring.Delete(acct.service(), acct.Username); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Status looks up every account
func (s *Store) Status(ctx context.Context, accts []Account) ([]Token, error) {
	tokens := make([]Token, 0, len(accts))
	for _, acct := range accts {
		tok, err := s.Lookup(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", acct, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// ReadToken prompts for a token. Input is hidden when reader is a
// terminal; any other reader is read a line at a time.
func ReadToken(reader io.Reader, writer io.Writer, acct Account) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter token for %s (user: %s): ", acct.Backend, acct.Username)

	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.ErrUnexpectedEOF
}
