package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// CLIHandler implements the credentials subcommands
type CLIHandler struct {
	store  *Store
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewCLIHandler creates a handler printing to stdout. stdin is only read by Set.
func NewCLIHandler(store *Store, stdin io.Reader, stdout, stderr io.Writer) *CLIHandler {
	return &CLIHandler{
		store:  store,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
}

func (h *CLIHandler) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(h.stdout, format, args...)
}

// Set reads a token from stdin and stores it in the keyring. Tokens are
// never accepted as arguments.
func (h *CLIHandler) Set(ctx context.Context, acct Account, prompt bool) error {
	if !prompt {
		return errors.New("--prompt flag is required for secure token input")
	}
	token, err := ReadToken(h.stdin, h.stdout, acct)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	if err := h.store.Save(ctx, acct, token); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return keyringUnavailable(acct)
		}
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	h.printf("Credentials stored in system keyring\n")
	return nil
}

// keyringUnavailable explains the environment variable fallback
func keyringUnavailable(acct Account) error {
	return fmt.Errorf(`system keyring not available on this machine

Set the token in the environment instead:
  export %s="your-api-token"
  export %s=%q   # optional, limits the token to this user

Run 'taskmaster credentials get' to verify the token is detected.`,
		TokenEnvVar(acct.Backend), UsernameEnvVar(acct.Backend), acct.Username)
}

// Get reports where the token comes from without printing it
func (h *CLIHandler) Get(ctx context.Context, acct Account, jsonOutput bool) error {
	tok, err := h.store.Lookup(ctx, acct)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}
	if jsonOutput {
		return h.writeJSON(tok)
	}

	if !tok.Found() {
		h.printf("No credentials found for %s\n", tok.Account)
		h.printf("Searched:\n")
		h.printf("  - System keyring: Not found\n")
		h.printf("  - %s: Not set\n", TokenEnvVar(tok.Backend))
		h.printf("\nSuggestion: Run 'taskmaster credentials set --username %s --prompt'\n", tok.Username)
		return nil
	}
	h.printf("Source: %s\n", tok.Source)
	h.printf("Username: %s\n", tok.Username)
	h.printf("Token: ******** (hidden)\n")
	h.printf("Backend: %s\n", tok.Backend)
	return nil
}

// Delete removes the keyring entry
func (h *CLIHandler) Delete(ctx context.Context, acct Account) error {
	if err := h.store.Remove(ctx, acct); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	h.printf("Credentials removed from system keyring\n")
	return nil
}

// List prints a status row per account
func (h *CLIHandler) List(ctx context.Context, accts []Account, jsonOutput bool) error {
	tokens, err := h.store.Status(ctx, accts)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if jsonOutput {
		return h.writeJSON(tokens)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("BACKEND", "USERNAME", "STATUS", "SOURCE")
	for _, tok := range tokens {
		status, source := "Missing", "-"
		if tok.Found() {
			status, source = "Available", string(tok.Source)
		}
		username := tok.Username
		if username == "" {
			username = "-"
		}
		t.Row(tok.Backend, username, status, source)
	}
	_, _ = fmt.Fprintln(h.stdout, t.String())
	return nil
}

func (h *CLIHandler) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(h.stdout, string(data))
	return nil
}
