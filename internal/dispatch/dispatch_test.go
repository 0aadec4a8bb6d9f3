package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/invitely/internal/database"
	"github.com/dukerupert/invitely/internal/email"
	"github.com/dukerupert/invitely/internal/middleware"
	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
)

type fakeEmail struct {
	mu     sync.Mutex
	sent   []email.Message
	failTo map[string]bool
}

func (f *fakeEmail) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSMS struct {
	mu         sync.Mutex
	configured bool
	sent       []string
	failTo     map[string]bool
}

func (f *fakeSMS) Configured() bool { return f.configured }

func (f *fakeSMS) Send(_ context.Context, to, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return errors.New("undeliverable")
	}
	f.sent = append(f.sent, to)
	return nil
}

type env struct {
	db      *sql.DB
	d       *Dispatcher
	email   *fakeEmail
	sms     *fakeSMS
	events  *store.EventStore
	guests  *store.GuestStore
	ownerID int64
	event   *model.Event
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	owner, err := store.NewUserStore(db).FindOrCreate(model.Identifier{Method: model.MethodEmail, Value: "host@example.com"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	events := store.NewEventStore(db)
	event, err := events.Create(owner.ID, model.EventFields{Title: "Summer Party", Location: "Backyard"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	e := &env{
		db:      db,
		email:   &fakeEmail{failTo: map[string]bool{}},
		sms:     &fakeSMS{configured: true, failTo: map[string]bool{}},
		events:  events,
		guests:  store.NewGuestStore(db),
		ownerID: owner.ID,
		event:   event,
	}
	e.d = New(events, e.guests, store.NewAnnouncementStore(db), e.email, e.sms,
		middleware.NewRateLimiter(), "https://invitely.test/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e
}

func (e *env) publish(t *testing.T) {
	t.Helper()
	if _, err := e.events.SetStatus(e.event.ID, e.ownerID, model.EventStatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func (e *env) addGuest(t *testing.T, name, addr, phone string) *model.Guest {
	t.Helper()
	var em, ph *string
	if addr != "" {
		em = &addr
	}
	if phone != "" {
		ph = &phone
	}
	g, err := e.guests.Create(e.event.ID, name, em, ph, "")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	return g
}

func (e *env) guest(t *testing.T, id int64) *model.Guest {
	t.Helper()
	g, err := e.guests.GetForEvent(id, e.event.ID)
	if err != nil || g == nil {
		t.Fatalf("get guest %d: %v", id, err)
	}
	return g
}

func TestSendInvitationsDraftEvent(t *testing.T) {
	e := setup(t)
	e.addGuest(t, "Ann", "ann@example.com", "")

	_, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID)
	if !errors.Is(err, ErrEventNotPublished) {
		t.Fatalf("err = %v, want ErrEventNotPublished", err)
	}
	if n := e.email.count(); n != 0 {
		t.Errorf("emails sent = %d, want 0", n)
	}
}

func TestSendInvitationsNotOwner(t *testing.T) {
	e := setup(t)
	e.publish(t)

	_, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID+100)
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestSendInvitationsPartialFailure(t *testing.T) {
	e := setup(t)
	e.publish(t)
	ann := e.addGuest(t, "Ann", "ann@example.com", "")
	bob := e.addGuest(t, "Bob", "bob@example.com", "")
	cat := e.addGuest(t, "Cat", "cat@example.com", "")
	noEmail := e.addGuest(t, "Dan", "", "+15550001111")
	e.email.failTo["bob@example.com"] = true

	res, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("send invitations: %v", err)
	}
	if res != (InviteResult{Sent: 2, Failed: 1}) {
		t.Errorf("result = %+v, want {Sent:2 Failed:1}", res)
	}

	for _, id := range []int64{ann.ID, cat.ID} {
		g := e.guest(t, id)
		if g.InviteStatus != model.InviteSent || g.InviteSentAt == nil {
			t.Errorf("guest %s: status=%s sent_at=%v", g.Name, g.InviteStatus, g.InviteSentAt)
		}
		if g.InviteToken == nil {
			t.Errorf("guest %s has no invite token", g.Name)
		}
	}
	if g := e.guest(t, bob.ID); g.InviteStatus != model.InviteFailed {
		t.Errorf("bob status = %s, want failed", g.InviteStatus)
	}
	if g := e.guest(t, noEmail.ID); g.InviteStatus != model.InviteNotSent {
		t.Errorf("guest without email status = %s, want not_sent", g.InviteStatus)
	}

	annAfter := e.guest(t, ann.ID)
	var found bool
	for _, msg := range e.email.sent {
		if msg.To == "ann@example.com" {
			found = strings.Contains(msg.HTMLBody, "https://invitely.test/invite/"+*annAfter.InviteToken)
		}
	}
	if !found {
		t.Error("invitation for ann does not link to her invite token")
	}
}

func TestSendInvitationsSkipsAlreadySent(t *testing.T) {
	e := setup(t)
	e.publish(t)
	ann := e.addGuest(t, "Ann", "ann@example.com", "")
	bob := e.addGuest(t, "Bob", "bob@example.com", "")
	e.email.failTo["bob@example.com"] = true

	if _, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstSentAt := e.guest(t, ann.ID).InviteSentAt
	bobToken := e.guest(t, bob.ID).InviteToken

	delete(e.email.failTo, "bob@example.com")
	before := e.email.count()
	res, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res != (InviteResult{Sent: 1}) {
		t.Errorf("result = %+v, want only the failed guest retried", res)
	}
	if n := e.email.count() - before; n != 1 {
		t.Errorf("emails in second run = %d, want 1", n)
	}
	if e.email.sent[len(e.email.sent)-1].To != "bob@example.com" {
		t.Error("second run should only contact bob")
	}
	if got := e.guest(t, ann.ID).InviteSentAt; !got.Equal(*firstSentAt) {
		t.Errorf("ann invite_sent_at changed from %v to %v", firstSentAt, got)
	}
	if got := e.guest(t, bob.ID).InviteToken; bobToken == nil || got == nil || *got != *bobToken {
		t.Errorf("bob token changed across resend: %v -> %v", bobToken, got)
	}
}

// invite sends invitations and fails the test on error.
func (e *env) invite(t *testing.T) {
	t.Helper()
	if _, err := e.d.SendInvitations(context.Background(), e.event.ID, e.ownerID); err != nil {
		t.Fatalf("send invitations: %v", err)
	}
}

func TestSendRemindersTwice(t *testing.T) {
	e := setup(t)
	e.publish(t)
	e.addGuest(t, "Ann", "ann@example.com", "+15550000001")
	e.addGuest(t, "Bob", "bob@example.com", "")
	e.invite(t)

	first, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("first reminders: %v", err)
	}
	if first != (ReminderResult{Sent: 2, SMSSent: 1}) {
		t.Errorf("first = %+v", first)
	}

	second, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("second reminders: %v", err)
	}
	if second != (ReminderResult{}) {
		t.Errorf("second = %+v, want all zero", second)
	}
}

func TestSendRemindersPartialChannelFailure(t *testing.T) {
	e := setup(t)
	e.publish(t)
	ann := e.addGuest(t, "Ann", "ann@example.com", "+15550000001")
	e.invite(t)
	e.sms.failTo["+15550000001"] = true

	res, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res != (ReminderResult{Sent: 1, SMSFailed: 1}) {
		t.Errorf("result = %+v, want {Sent:1 SMSFailed:1}", res)
	}
	if g := e.guest(t, ann.ID); g.ReminderSentAt == nil {
		t.Error("guest reached by email should be marked reminded")
	}
}

func TestSendRemindersAllChannelsFailedStaysEligible(t *testing.T) {
	e := setup(t)
	e.publish(t)
	ann := e.addGuest(t, "Ann", "ann@example.com", "+15550000001")
	e.invite(t)
	e.email.failTo["ann@example.com"] = true
	e.sms.failTo["+15550000001"] = true

	res, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res != (ReminderResult{Failed: 1, SMSFailed: 1}) {
		t.Errorf("result = %+v", res)
	}
	if g := e.guest(t, ann.ID); g.ReminderSentAt != nil {
		t.Error("guest with no successful channel should stay eligible")
	}
}

func TestSendRemindersSMSNotConfigured(t *testing.T) {
	e := setup(t)
	e.publish(t)
	e.addGuest(t, "Ann", "ann@example.com", "+15550000001")
	e.invite(t)
	e.sms.configured = false

	res, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res != (ReminderResult{Sent: 1}) {
		t.Errorf("result = %+v, want email only", res)
	}
	if len(e.sms.sent) != 0 {
		t.Error("no SMS should be sent when unconfigured")
	}
}

func TestSendRemindersBatches(t *testing.T) {
	e := setup(t)
	e.publish(t)
	const n = ReminderBatchSize*2 + 3
	for i := 0; i < n; i++ {
		e.addGuest(t, "Guest", "guest"+string(rune('a'+i))+"@example.com", "")
	}
	e.invite(t)

	res, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res.Sent != n {
		t.Errorf("sent = %d, want %d", res.Sent, n)
	}
	eligible, err := e.guests.ListReminderEligible(e.event.ID)
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("eligible after run = %d, want 0", len(eligible))
	}
}

// slowEmail holds each send open briefly and records how many run at once
// and how many had finished when each send started.
type slowEmail struct {
	mu           sync.Mutex
	inFlight     int
	peak         int
	finished     int
	startedAfter map[string]int
}

func (f *slowEmail) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	f.inFlight++
	f.peak = max(f.peak, f.inFlight)
	f.startedAfter[msg.To] = f.finished
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.finished++
	f.mu.Unlock()
	return nil
}

func TestSendRemindersBatchesRunInOrder(t *testing.T) {
	e := setup(t)
	e.publish(t)
	const n = ReminderBatchSize*2 + 3
	for i := range n {
		e.addGuest(t, "Guest", fmt.Sprintf("guest%02d@example.com", i), "")
	}
	e.invite(t)

	slow := &slowEmail{startedAfter: map[string]int{}}
	d := New(e.events, e.guests, store.NewAnnouncementStore(e.db), slow, e.sms,
		middleware.NewRateLimiter(), "https://invitely.test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if res.Sent != n {
		t.Fatalf("sent = %d, want %d", res.Sent, n)
	}

	if slow.peak > ReminderBatchSize {
		t.Errorf("peak in-flight sends = %d, want at most %d", slow.peak, ReminderBatchSize)
	}
	if slow.peak < 2 {
		t.Errorf("peak in-flight sends = %d, want sends within a batch to overlap", slow.peak)
	}

	// Every send in batch b starts only after all earlier batches finished.
	for i := range n {
		addr := fmt.Sprintf("guest%02d@example.com", i)
		batch := i / ReminderBatchSize
		if got, want := slow.startedAfter[addr], batch*ReminderBatchSize; got < want {
			t.Errorf("%s (batch %d) started after %d finished sends, want at least %d", addr, batch, got, want)
		}
	}
}

func TestSendRemindersRateLimited(t *testing.T) {
	e := setup(t)
	e.publish(t)

	for i := 0; i < ReminderLimit; i++ {
		if _, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	_, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("6th call err = %v, want ErrRateLimited", err)
	}

	// Other owners have their own window.
	_, err = e.d.SendReminders(context.Background(), e.event.ID, e.ownerID+1)
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("other owner err = %v, want ErrEventNotFound", err)
	}
}

func TestSendRemindersDraftEvent(t *testing.T) {
	e := setup(t)
	_, err := e.d.SendReminders(context.Background(), e.event.ID, e.ownerID)
	if !errors.Is(err, ErrEventNotPublished) {
		t.Errorf("err = %v, want ErrEventNotPublished", err)
	}
}

func TestAnnounce(t *testing.T) {
	e := setup(t)
	e.publish(t)
	e.addGuest(t, "Ann", "ann@example.com", "+15550000001")
	e.addGuest(t, "Bob", "bob@example.com", "")
	e.invite(t)
	e.addGuest(t, "Late", "late@example.com", "") // never invited
	e.sms.failTo["+15550000001"] = true

	rec, err := e.d.Announce(context.Background(), e.event.ID, e.ownerID, Announcement{
		Subject:  "Venue change",
		Body:     "We moved indoors.",
		Channels: []string{ChannelEmail, ChannelSMS},
	})
	if err != nil {
		t.Fatalf("announce: %v", err)
	}
	if rec.SentCount != 2 || rec.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", rec.SentCount, rec.FailedCount)
	}
	if len(rec.Channels) != 2 {
		t.Errorf("channels = %v", rec.Channels)
	}
	for _, msg := range e.email.sent {
		if msg.To == "late@example.com" {
			t.Error("uninvited guest received announcement")
		}
	}
}

func TestAnnounceNoChannels(t *testing.T) {
	e := setup(t)
	e.publish(t)
	_, err := e.d.Announce(context.Background(), e.event.ID, e.ownerID, Announcement{Subject: "x", Body: "y", Channels: []string{"pigeon"}})
	if !errors.Is(err, ErrNoChannels) {
		t.Errorf("err = %v, want ErrNoChannels", err)
	}
}

func TestDetails(t *testing.T) {
	starts := time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)
	d := Details(&model.Event{Title: "BBQ", StartsAt: &starts, HostName: "Sam"})
	if d.Title != "BBQ" || d.HostName != "Sam" || d.StartsAt == nil {
		t.Errorf("details = %+v", d)
	}
}
