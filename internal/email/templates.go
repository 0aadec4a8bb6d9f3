package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	textTemplate "text/template"
	"time"
)

// EventDetails is the event information shown in guest-facing emails.
type EventDetails struct {
	Title        string
	StartsAt     *time.Time
	Location     string
	DesignURL    string
	HostName     string
	DressCode    string
	RSVPDeadline *time.Time
}

func (e EventDetails) When() string {
	if e.StartsAt == nil {
		return ""
	}
	return e.StartsAt.Format("Monday, January 2, 2006 at 3:04 PM")
}

func (e EventDetails) Deadline() string {
	if e.RSVPDeadline == nil {
		return ""
	}
	return e.RSVPDeadline.Format("January 2, 2006")
}

var funcs = template.FuncMap{
	"nl2br": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}

var htmlTemplates = template.Must(template.New("email").Funcs(funcs).Parse(`
{{define "details"}}
{{if .Event.DesignURL}}<p><img src="{{.Event.DesignURL}}" alt="{{.Event.Title}}" style="max-width:100%"></p>{{end}}
<h1>{{.Event.Title}}</h1>
{{if .Event.When}}<p><strong>When:</strong> {{.Event.When}}</p>{{end}}
{{if .Event.Location}}<p><strong>Where:</strong> {{.Event.Location}}</p>{{end}}
{{if .Event.HostName}}<p><strong>Hosted by:</strong> {{.Event.HostName}}</p>{{end}}
{{if .Event.DressCode}}<p><strong>Dress code:</strong> {{.Event.DressCode}}</p>{{end}}
{{if .Event.Deadline}}<p>Please RSVP by {{.Event.Deadline}}.</p>{{end}}
{{end}}

{{define "passcode"}}
<p>{{.Intro}}</p>
<p style="font-size:28px;letter-spacing:6px"><strong>{{.Code}}</strong></p>
<p>This code expires in 15 minutes.</p>
<p><a href="{{.Link}}">{{.Action}}</a></p>
{{end}}

{{define "invitation"}}
<p>Hi {{.GuestName}},</p>
<p>You're invited!</p>
{{template "details" .}}
<p><a href="{{.Link}}">View invitation and RSVP</a></p>
{{end}}

{{define "reminder"}}
<p>Hi {{.GuestName}},</p>
<p>Just a reminder that we haven't heard from you yet.</p>
{{template "details" .}}
<p><a href="{{.Link}}">RSVP now</a></p>
{{end}}

{{define "announcement"}}
<p>Hi {{.GuestName}},</p>
<p>An update about <strong>{{.Event.Title}}</strong>:</p>
<p>{{nl2br .Body}}</p>
<p><a href="{{.Link}}">View event</a></p>
{{end}}
`))

var textTemplates = textTemplate.Must(textTemplate.New("email").Parse(`
{{define "passcode"}}{{.Intro}}

Your code: {{.Code}}

This code expires in 15 minutes.

{{.Action}}: {{.Link}}
{{end}}

{{define "invitation"}}Hi {{.GuestName}},

You're invited to {{.Event.Title}}!
{{if .Event.When}}
When: {{.Event.When}}{{end}}{{if .Event.Location}}
Where: {{.Event.Location}}{{end}}{{if .Event.Deadline}}
Please RSVP by {{.Event.Deadline}}.{{end}}

View invitation and RSVP: {{.Link}}
{{end}}

{{define "reminder"}}Hi {{.GuestName}},

Just a reminder that we haven't heard from you about {{.Event.Title}}.
{{if .Event.When}}
When: {{.Event.When}}{{end}}{{if .Event.Deadline}}
Please RSVP by {{.Event.Deadline}}.{{end}}

RSVP now: {{.Link}}
{{end}}

{{define "announcement"}}Hi {{.GuestName}},

An update about {{.Event.Title}}:

{{.Body}}

View event: {{.Link}}
{{end}}
`))

type guestData struct {
	GuestName string
	Event     EventDetails
	Link      string
	Body      string
}

type passcodeData struct {
	Intro  string
	Code   string
	Action string
	Link   string
}

func render(name, to, subject, tag string, data any) (Message, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBuf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&textBuf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	return Message{
		To:       to,
		Subject:  subject,
		HTMLBody: strings.TrimSpace(htmlBuf.String()),
		TextBody: strings.TrimSpace(textBuf.String()),
		Tag:      tag,
	}, nil
}

// PasscodeMessage builds the sign-in code email. Admins get host copy and
// guests get event copy.
func PasscodeMessage(to, code, role, link string) (Message, error) {
	data := passcodeData{Code: code, Link: link}
	var subject string
	if role == "admin" {
		subject = "Your Invitely admin sign-in code"
		data.Intro = "Use this code to sign in to the Invitely admin dashboard."
		data.Action = "Open the dashboard"
	} else {
		subject = "Your Invitely sign-in code"
		data.Intro = "Use this code to sign in and manage your RSVP."
		data.Action = "Continue to Invitely"
	}
	return render("passcode", to, subject, "passcode", data)
}

// PasscodeSMS is the plain-text SMS body for a sign-in code.
func PasscodeSMS(code string) string {
	return fmt.Sprintf("Your Invitely code is %s. It expires in 15 minutes.", code)
}

func InvitationMessage(to, guestName string, event EventDetails, link string) (Message, error) {
	subject := fmt.Sprintf("You're invited: %s", event.Title)
	return render("invitation", to, subject, "invitation", guestData{GuestName: guestName, Event: event, Link: link})
}

func ReminderMessage(to, guestName string, event EventDetails, link string) (Message, error) {
	subject := fmt.Sprintf("Reminder: please RSVP to %s", event.Title)
	return render("reminder", to, subject, "reminder", guestData{GuestName: guestName, Event: event, Link: link})
}

// ReminderSMS is the plain-text SMS body for a reminder.
func ReminderSMS(guestName, eventTitle, link string) string {
	return fmt.Sprintf("Hi %s, reminder to RSVP for %s: %s", guestName, eventTitle, link)
}

func AnnouncementMessage(to, guestName string, event EventDetails, subject, body, link string) (Message, error) {
	data := guestData{GuestName: guestName, Event: event, Link: link, Body: body}
	return render("announcement", to, fmt.Sprintf("%s: %s", event.Title, subject), "announcement", data)
}

// AnnouncementSMS is the plain-text SMS body for an announcement.
func AnnouncementSMS(eventTitle, subject, body string) string {
	return fmt.Sprintf("%s: %s\n%s", eventTitle, subject, body)
}
