package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fx-triangle-watch/internal/repository"

	"github.com/olekukonko/tablewriter"
	gossh "golang.org/x/crypto/ssh"
)

var errNoOperatorStore = errors.New("operator commands require DATABASE_URL")

type operatorAdmin interface {
	UpsertOperator(ctx context.Context, op repository.Operator) error
	ListActive(ctx context.Context) ([]repository.Operator, error)
}

// operatorFromAuthorizedKey builds an operator record from one line in
// authorized_keys format.
func operatorFromAuthorizedKey(username string, line []byte) (repository.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return repository.Operator{}, errors.New("username is required")
	}
	key, _, _, _, err := gossh.ParseAuthorizedKey(line)
	if err != nil {
		return repository.Operator{}, fmt.Errorf("parse public key: %w", err)
	}
	return repository.Operator{
		Username:    username,
		PublicKey:   strings.TrimSpace(string(gossh.MarshalAuthorizedKey(key))),
		KeyType:     key.Type(),
		Fingerprint: gossh.FingerprintSHA256(key),
		IsActive:    true,
	}, nil
}

// addOperator expects [username, public-key-file].
func addOperator(ctx context.Context, store operatorAdmin, args []string, out io.Writer) error {
	if store == nil {
		return errNoOperatorStore
	}
	if len(args) != 2 {
		return errors.New("usage: tui add-operator <username> <public-key-file>")
	}
	raw, err := readFileFunc(args[1])
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	op, err := operatorFromAuthorizedKey(args[0], raw)
	if err != nil {
		return err
	}
	if err := store.UpsertOperator(ctx, op); err != nil {
		return fmt.Errorf("save operator: %w", err)
	}
	fmt.Fprintf(out, "operator %s registered with %s\n", op.Username, op.Fingerprint)
	return nil
}

func listOperators(ctx context.Context, store operatorAdmin, out io.Writer) error {
	if store == nil {
		return errNoOperatorStore
	}
	ops, err := store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list operators: %w", err)
	}
	if len(ops) == 0 {
		fmt.Fprintln(out, "No active operators.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Username", "Key type", "Fingerprint", "Last login"})
	for _, op := range ops {
		last := "never"
		if op.LastLoginAt != nil {
			last = op.LastLoginAt.UTC().Format(time.RFC3339)
		}
		table.Append([]string{op.Username, op.KeyType, op.Fingerprint, last})
	}
	table.Render()
	return nil
}
