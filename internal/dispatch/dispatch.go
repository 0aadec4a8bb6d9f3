// Package dispatch sends invitations, reminders and announcements to the
// guests of a published event and records the per-guest outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/invitely/internal/email"
	"github.com/dukerupert/invitely/internal/model"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotPublished = errors.New("event is not published")
	ErrRateLimited       = errors.New("too many reminder requests, try again later")
	ErrNoChannels        = errors.New("no channels selected")
)

// Reminder throttling, per event owner.
const (
	ReminderLimit  = 5
	ReminderWindow = time.Hour
	// ReminderBatchSize bounds the number of guests contacted concurrently.
	ReminderBatchSize = 10
)

// Announcement channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type EventFinder interface {
	GetForOwner(id, userID int64) (*model.Event, error)
}

type GuestRepo interface {
	ListInviteEligible(eventID int64) ([]model.Guest, error)
	ListReminderEligible(eventID int64) ([]model.Guest, error)
	ListInvited(eventID int64) ([]model.Guest, error)
	EnsureInviteToken(id int64) (string, error)
	MarkInviteSent(id int64, at time.Time) error
	MarkInviteFailed(id int64) error
	MarkReminded(ids []int64, at time.Time) error
}

type AnnouncementRecorder interface {
	Create(eventID int64, subject, body string, channels []string, sent, failed int) (*model.Announcement, error)
}

type EmailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

type SMSSender interface {
	Configured() bool
	Send(ctx context.Context, to, body string) error
}

// Limiter is a fixed-window counter keyed by an arbitrary string.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// InviteResult is the aggregate outcome of an invitation run.
type InviteResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ReminderResult counts email and SMS outcomes separately.
type ReminderResult struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	SMSSent   int `json:"sms_sent"`
	SMSFailed int `json:"sms_failed"`
}

type Dispatcher struct {
	events        EventFinder
	guests        GuestRepo
	announcements AnnouncementRecorder
	email         EmailSender
	sms           SMSSender
	limiter       Limiter
	baseURL       string
	now           func() time.Time
	logger        *slog.Logger
}

func New(events EventFinder, guests GuestRepo, announcements AnnouncementRecorder, emailSender EmailSender, smsSender SMSSender, limiter Limiter, baseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		events:        events,
		guests:        guests,
		announcements: announcements,
		email:         emailSender,
		sms:           smsSender,
		limiter:       limiter,
		baseURL:       strings.TrimRight(baseURL, "/"),
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.With("component", "dispatch"),
	}
}

// publishedEvent loads the owner's event and checks it may be mailed.
func (d *Dispatcher) publishedEvent(eventID, ownerID int64) (*model.Event, error) {
	event, err := d.events.GetForOwner(eventID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	if !event.Published() {
		return nil, ErrEventNotPublished
	}
	return event, nil
}

// Details converts an event into the fields shown in guest messages.
func Details(e *model.Event) email.EventDetails {
	return email.EventDetails{
		Title:        e.Title,
		StartsAt:     e.StartsAt,
		Location:     e.Location,
		DesignURL:    e.DesignURL,
		HostName:     e.HostName,
		DressCode:    e.DressCode,
		RSVPDeadline: e.RSVPDeadline,
	}
}

// guestLink is the guest's personal RSVP link, or the public event page when
// the guest has no invite token.
func (d *Dispatcher) guestLink(g *model.Guest, e *model.Event) string {
	if g.InviteToken != nil && *g.InviteToken != "" {
		return d.baseURL + "/invite/" + *g.InviteToken
	}
	return d.baseURL + "/e/" + e.Slug
}

type outcome int

const (
	skipped outcome = iota
	delivered
	failed
)

// SendInvitations emails every guest whose invitation has not been
// delivered. Guests are processed one at a time and a failed send only marks
// that guest failed.
func (d *Dispatcher) SendInvitations(ctx context.Context, eventID, ownerID int64) (InviteResult, error) {
	var result InviteResult

	event, err := d.publishedEvent(eventID, ownerID)
	if err != nil {
		return result, err
	}
	guests, err := d.guests.ListInviteEligible(event.ID)
	if err != nil {
		return result, fmt.Errorf("list invite eligible guests: %w", err)
	}

	details := Details(event)
	for i := range guests {
		g := &guests[i]
		switch d.invite(ctx, g, details) {
		case delivered:
			if err := d.guests.MarkInviteSent(g.ID, d.now()); err != nil {
				return result, err
			}
			result.Sent++
		case failed:
			if err := d.guests.MarkInviteFailed(g.ID); err != nil {
				return result, err
			}
			result.Failed++
		}
	}

	d.logger.Info("invitations sent", "event_id", event.ID, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func (d *Dispatcher) invite(ctx context.Context, g *model.Guest, details email.EventDetails) outcome {
	addr := g.EmailAddr()
	if addr == "" {
		return skipped
	}

	token, err := d.guests.EnsureInviteToken(g.ID)
	if err != nil {
		d.logger.Warn("invite token failed", "guest_id", g.ID, "event_id", g.EventID, "error", err)
		return failed
	}

	msg, err := email.InvitationMessage(addr, g.Name, details, d.baseURL+"/invite/"+token)
	if err != nil {
		d.logger.Warn("build invitation failed", "guest_id", g.ID, "event_id", g.EventID, "error", err)
		return failed
	}
	if err := d.email.Send(ctx, msg); err != nil {
		d.logger.Warn("invitation send failed", "guest_id", g.ID, "event_id", g.EventID, "error", err)
		return failed
	}
	return delivered
}

// reminderOutcome is one guest's per-channel result.
type reminderOutcome struct {
	email outcome
	sms   outcome
}

// SendReminders contacts every invited, unreminded guest by email and SMS.
// Guests are sent to concurrently in batches of ReminderBatchSize and each
// batch completes before the next starts. A guest reached on any channel is
// marked reminded.
func (d *Dispatcher) SendReminders(ctx context.Context, eventID, ownerID int64) (ReminderResult, error) {
	var result ReminderResult

	if !d.limiter.Allow(fmt.Sprintf("reminders:%d", ownerID), ReminderLimit, ReminderWindow) {
		return result, ErrRateLimited
	}

	event, err := d.publishedEvent(eventID, ownerID)
	if err != nil {
		return result, err
	}
	guests, err := d.guests.ListReminderEligible(event.ID)
	if err != nil {
		return result, fmt.Errorf("list reminder eligible guests: %w", err)
	}

	details := Details(event)
	outcomes := make([]reminderOutcome, len(guests))
	for start := 0; start < len(guests); start += ReminderBatchSize {
		end := min(start+ReminderBatchSize, len(guests))

		// Failures land in outcomes; the group is only the batch join point.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = d.remind(ctx, &guests[i], event, details)
				return nil
			})
		}
		g.Wait()
	}

	var reminded []int64
	for i, o := range outcomes {
		switch o.email {
		case delivered:
			result.Sent++
		case failed:
			result.Failed++
		}
		switch o.sms {
		case delivered:
			result.SMSSent++
		case failed:
			result.SMSFailed++
		}
		if o.email == delivered || o.sms == delivered {
			reminded = append(reminded, guests[i].ID)
		}
	}

	if err := d.guests.MarkReminded(reminded, d.now()); err != nil {
		return result, err
	}

	d.logger.Info("reminders sent", "event_id", event.ID,
		"sent", result.Sent, "failed", result.Failed,
		"sms_sent", result.SMSSent, "sms_failed", result.SMSFailed)
	return result, nil
}

func (d *Dispatcher) remind(ctx context.Context, g *model.Guest, event *model.Event, details email.EventDetails) reminderOutcome {
	var o reminderOutcome
	link := d.guestLink(g, event)

	if addr := g.EmailAddr(); addr != "" {
		o.email = delivered
		msg, err := email.ReminderMessage(addr, g.Name, details, link)
		if err == nil {
			err = d.email.Send(ctx, msg)
		}
		if err != nil {
			d.logger.Warn("reminder email failed", "guest_id", g.ID, "event_id", g.EventID, "error", err)
			o.email = failed
		}
	}

	if phone := g.PhoneNumber(); phone != "" && d.sms.Configured() {
		o.sms = delivered
		if err := d.sms.Send(ctx, phone, email.ReminderSMS(g.Name, event.Title, link)); err != nil {
			d.logger.Warn("reminder sms failed", "guest_id", g.ID, "event_id", g.EventID, "error", err)
			o.sms = failed
		}
	}
	return o
}

// Announcement is a host message to all invited guests.
type Announcement struct {
	Subject  string
	Body     string
	Channels []string
}

// Announce sends an announcement to every invited guest over the selected
// channels and records it with its delivery counts.
func (d *Dispatcher) Announce(ctx context.Context, eventID, ownerID int64, a Announcement) (*model.Announcement, error) {
	var useEmail, useSMS bool
	for _, c := range a.Channels {
		switch c {
		case ChannelEmail:
			useEmail = true
		case ChannelSMS:
			useSMS = true
		}
	}
	if !useEmail && !useSMS {
		return nil, ErrNoChannels
	}

	event, err := d.publishedEvent(eventID, ownerID)
	if err != nil {
		return nil, err
	}
	guests, err := d.guests.ListInvited(event.ID)
	if err != nil {
		return nil, fmt.Errorf("list invited guests: %w", err)
	}

	details := Details(event)
	var sent, failedCount int
	count := func(err error, guestID int64, channel string) {
		if err != nil {
			d.logger.Warn("announcement send failed", "guest_id", guestID, "event_id", event.ID, "channel", channel, "error", err)
			failedCount++
			return
		}
		sent++
	}

	for i := range guests {
		g := &guests[i]
		link := d.guestLink(g, event)

		if addr := g.EmailAddr(); useEmail && addr != "" {
			msg, err := email.AnnouncementMessage(addr, g.Name, details, a.Subject, a.Body, link)
			if err == nil {
				err = d.email.Send(ctx, msg)
			}
			count(err, g.ID, ChannelEmail)
		}
		if phone := g.PhoneNumber(); useSMS && phone != "" && d.sms.Configured() {
			count(d.sms.Send(ctx, phone, email.AnnouncementSMS(event.Title, a.Subject, a.Body)), g.ID, ChannelSMS)
		}
	}

	channels := make([]string, 0, 2)
	if useEmail {
		channels = append(channels, ChannelEmail)
	}
	if useSMS {
		channels = append(channels, ChannelSMS)
	}

	rec, err := d.announcements.Create(event.ID, a.Subject, a.Body, channels, sent, failedCount)
	if err != nil {
		return nil, err
	}
	d.logger.Info("announcement sent", "event_id", event.ID, "sent", sent, "failed", failedCount)
	return rec, nil
}
