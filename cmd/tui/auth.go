package main

import (
	"context"
	"strings"

	"fx-triangle-watch/internal/repository"

	"github.com/charmbracelet/ssh"
	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"
)

const operatorKey = "operator"

type operatorStore interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*repository.Operator, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// operatorAuth admits keys whose SHA256 fingerprint is on the static list or
// belongs to an active dashboard operator.
type operatorAuth struct {
	allowed map[string]struct{}
	store   operatorStore
	log     *logrus.Entry
}

func newOperatorAuth(fingerprints []string, store operatorStore, logger *logrus.Logger) *operatorAuth {
	allowed := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		if fp = strings.TrimSpace(fp); fp != "" {
			allowed[fp] = struct{}{}
		}
	}
	return &operatorAuth{
		allowed: allowed,
		store:   store,
		log:     logger.WithField("component", "tui_auth"),
	}
}

// Empty reports whether no key could ever be admitted.
func (a *operatorAuth) Empty() bool {
	return len(a.allowed) == 0 && a.store == nil
}

func (a *operatorAuth) Handler(ctx ssh.Context, key ssh.PublicKey) bool {
	name, ok := a.admit(ctx, ctx.User(), key)
	if ok {
		ctx.SetValue(operatorKey, name)
	}
	return ok
}

// admit returns the operator name to show for an accepted key.
func (a *operatorAuth) admit(ctx context.Context, user string, key gossh.PublicKey) (string, bool) {
	fp := gossh.FingerprintSHA256(key)
	log := a.log.WithFields(logrus.Fields{"user": user, "fingerprint": fp})

	if _, ok := a.allowed[fp]; ok {
		log.Info("operator admitted from static list")
		return user, true
	}
	if a.store == nil {
		log.Warn("unknown key rejected")
		return "", false
	}

	op, err := a.store.FindByFingerprint(ctx, fp)
	if err != nil {
		log.WithError(err).Error("operator lookup failed")
		return "", false
	}
	if op == nil {
		log.Warn("unknown key rejected")
		return "", false
	}
	if err := a.store.UpdateLastLogin(ctx, op.ID); err != nil {
		log.WithError(err).Warn("failed to stamp last login")
	}
	log.WithField("operator", op.Username).Info("operator admitted")
	return op.Username, true
}

func operatorName(ctx ssh.Context) string {
	if name, ok := ctx.Value(operatorKey).(string); ok && name != "" {
		return name
	}
	return ctx.User()
}
