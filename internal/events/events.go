package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Kind is the routing key of an event.
type Kind string

const (
	KindLeadCaptured        Kind = "lead.captured"
	KindProfileImageChanged Kind = "profile.image_changed"
)

// ErrInvalidEvent is returned for events that cannot be decoded or lack required fields.
var ErrInvalidEvent = eris.New("invalid event")

// LeadCaptured is fired by the form subsystem when a landing page captures a lead.
type LeadCaptured struct {
	PageID   string            `json:"pageId"`
	LeadID   string            `json:"leadId"`
	LeadData map[string]string `json:"leadData,omitempty"`
}

// Validate checks required fields.
func (e LeadCaptured) Validate() error {
	if strings.TrimSpace(e.PageID) == "" {
		return eris.Wrap(ErrInvalidEvent, "lead captured event requires pageId")
	}
	return nil
}

// ProfileImageChanged is fired when a user's headshot changes in the profile directory.
type ProfileImageChanged struct {
	UserID      int64  `json:"userId"`
	HeadshotRef string `json:"headshotRef"`
}

// Validate checks required fields.
func (e ProfileImageChanged) Validate() error {
	if e.UserID <= 0 {
		return eris.Wrap(ErrInvalidEvent, "profile image changed event requires userId")
	}
	return nil
}

// LeadHandler reacts to captured leads.
type LeadHandler func(ctx context.Context, event LeadCaptured) error

// ProfileImageHandler reacts to headshot changes.
type ProfileImageHandler func(ctx context.Context, event ProfileImageChanged) error

// Dispatcher runs registered handlers synchronously in registration order.
// Every handler runs even if an earlier one fails; the failures are joined.
// Lead followups run after the lead handlers; their failures are logged, never returned.
type Dispatcher struct {
	mu            sync.RWMutex
	leadHandlers  []LeadHandler
	leadFollowups []LeadHandler
	imageHandlers []ProfileImageHandler
	logger        *logrus.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// OnLeadCaptured registers a lead handler.
func (d *Dispatcher) OnLeadCaptured(handler LeadHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leadHandlers = append(d.leadHandlers, handler)
}

// OnLeadCapturedFollowup registers a lead handler whose failure does not fail the dispatch.
func (d *Dispatcher) OnLeadCapturedFollowup(handler LeadHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leadFollowups = append(d.leadFollowups, handler)
}

// OnProfileImageChanged registers a headshot handler.
func (d *Dispatcher) OnProfileImageChanged(handler ProfileImageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageHandlers = append(d.imageHandlers, handler)
}

// LeadCaptured dispatches a lead event.
func (d *Dispatcher) LeadCaptured(ctx context.Context, event LeadCaptured) error {
	if err := event.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	handlers := append([]LeadHandler(nil), d.leadHandlers...)
	followups := append([]LeadHandler(nil), d.leadFollowups...)
	d.mu.RUnlock()

	fields := logrus.Fields{"page_id": event.PageID, "lead_id": event.LeadID}
	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logFailure(KindLeadCaptured, fields, err)
			errs = append(errs, err)
		}
	}
	for _, followup := range followups {
		if err := followup(ctx, event); err != nil {
			d.logFailure(KindLeadCaptured, fields, err)
		}
	}
	return errors.Join(errs...)
}

// ProfileImageChanged dispatches a headshot event.
func (d *Dispatcher) ProfileImageChanged(ctx context.Context, event ProfileImageChanged) error {
	if err := event.Validate(); err != nil {
		return err
	}

	d.mu.RLock()
	handlers := append([]ProfileImageHandler(nil), d.imageHandlers...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			d.logFailure(KindProfileImageChanged, logrus.Fields{"user_id": event.UserID}, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch decodes a JSON payload of the given kind and dispatches it.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, payload []byte) error {
	switch kind {
	case KindLeadCaptured:
		var event LeadCaptured
		if err := json.Unmarshal(payload, &event); err != nil {
			return eris.Wrapf(ErrInvalidEvent, "decoding %s: %v", kind, err)
		}
		return d.LeadCaptured(ctx, event)
	case KindProfileImageChanged:
		var event ProfileImageChanged
		if err := json.Unmarshal(payload, &event); err != nil {
			return eris.Wrapf(ErrInvalidEvent, "decoding %s: %v", kind, err)
		}
		return d.ProfileImageChanged(ctx, event)
	default:
		return eris.Wrapf(ErrInvalidEvent, "unknown event kind %q", kind)
	}
}

func (d *Dispatcher) logFailure(kind Kind, fields logrus.Fields, err error) {
	if d.logger == nil {
		return
	}
	d.logger.WithFields(fields).WithFields(logrus.Fields{"event": kind, "error": err.Error()}).Error("event handler failed")
}
