package secrets

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/codetribute/codetribute/internal/notify"
)

// Lookup describes one credential to resolve.
type Lookup struct {
	// Name keys the value in the store.
	Name string
	// Value is the configured value, usually from the environment. It wins
	// when set.
	Value string
	// Label is shown at the prompt.
	Label string
	// SavedNotice is sent after a prompted value has been stored.
	SavedNotice string
	// MissingNotice is sent as an error when no source yields a value.
	MissingNotice string
}

// Resolver finds credentials in order: configured value, encrypted store,
// interactive prompt. Prompted values are saved back to the store.
type Resolver struct {
	store    Store
	prompter Prompter
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewResolver creates a resolver. prompter may be nil to disable prompting.
func NewResolver(store Store, prompter Prompter, notifier notify.Notifier, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		prompter: prompter,
		notifier: notifier,
		logger:   logger,
	}
}

// Resolve returns the credential or an error matching ErrNotFound when every
// source is empty.
func (r *Resolver) Resolve(lookup Lookup) (string, error) {
	if lookup.Value != "" {
		return lookup.Value, nil
	}

	if r.store != nil {
		value, err := r.store.Get(lookup.Name)
		switch {
		case err == nil && value != "":
			r.logger.Debug("secret loaded from store", "name", lookup.Name)
			return value, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			r.logger.Warn("failed to read secret store", "name", lookup.Name, "error", err)
		}
	}

	value, err := r.prompt(lookup)
	if err != nil {
		r.notify(lookup.MissingNotice, true)
		return "", err
	}

	if r.store != nil {
		if err := r.store.Put(lookup.Name, value); err != nil {
			r.logger.Warn("failed to save secret", "name", lookup.Name, "error", err)
			return value, nil
		}
		r.notify(lookup.SavedNotice, false)
	}
	return value, nil
}

func (r *Resolver) prompt(lookup Lookup) (string, error) {
	if r.prompter == nil {
		return "", ErrNotFound
	}

	value, err := r.prompter.Prompt(lookup.Label)
	if err != nil {
		return "", fmt.Errorf("prompt for %s: %w", lookup.Name, errors.Join(ErrNotFound, err))
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

func (r *Resolver) notify(message string, failure bool) {
	if message == "" || r.notifier == nil {
		return
	}
	if failure {
		r.notifier.Error(message)
		return
	}
	r.notifier.Info(message)
}
