package loginevent

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kdhira/loginzap/internal/clientip"
	"github.com/kdhira/loginzap/internal/useragent"
)

// TimestampLayout formats the logged-in time as "YYYY-MM-DD HH:MM:SS".
const TimestampLayout = "2006-01-02 15:04:05"

// User identifies the account that just logged in.
type User struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
}

// Labels names the payload fields.
type Labels struct {
	ID           string `json:"id" yaml:"id"`
	Username     string `json:"username" yaml:"username"`
	Email        string `json:"email" yaml:"email"`
	LoggedInTime string `json:"logged_in_time" yaml:"logged_in_time"`
	IPAddress    string `json:"ip_address" yaml:"ip_address"`
	Browser      string `json:"browser" yaml:"browser"`
}

// DefaultLabels returns the stock field labels.
func DefaultLabels() Labels {
	return Labels{
		ID:           "ID",
		Username:     "Username",
		Email:        "Email",
		LoggedInTime: "Current Time",
		IPAddress:    "User IP Address",
		Browser:      "Browser",
	}
}

// WithDefaults fills empty labels from DefaultLabels.
func (l Labels) WithDefaults() Labels {
	d := DefaultLabels()
	if l.ID == "" {
		l.ID = d.ID
	}
	if l.Username == "" {
		l.Username = d.Username
	}
	if l.Email == "" {
		l.Email = d.Email
	}
	if l.LoggedInTime == "" {
		l.LoggedInTime = d.LoggedInTime
	}
	if l.IPAddress == "" {
		l.IPAddress = d.IPAddress
	}
	if l.Browser == "" {
		l.Browser = d.Browser
	}
	return l
}

// Sender delivers an assembled payload.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Hooks lets extensions rename the time label and rewrite the payload
// before it is sent.
type Hooks interface {
	LoggedInTimeLabel(label string) string
	FilterPayload(ctx context.Context, p Payload) Payload
}

// Options configures an Assembler. Only Sender is required.
type Options struct {
	Sender   Sender
	Hooks    Hooks
	Labels   Labels
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// Assembler turns login events into payloads and hands them to a Sender.
type Assembler struct {
	sender Sender
	hooks  Hooks
	labels Labels
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

// New builds an Assembler from opts.
func New(opts Options) *Assembler {
	a := &Assembler{
		sender: opts.Sender,
		hooks:  opts.Hooks,
		labels: opts.Labels.WithDefaults(),
		loc:    opts.Location,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Build assembles the payload for u logging in through r.
func (a *Assembler) Build(ctx context.Context, r *http.Request, u User) Payload {
	timeLabel := a.labels.LoggedInTime
	if a.hooks != nil {
		timeLabel = a.hooks.LoggedInTimeLabel(timeLabel)
	}

	var ua string
	if r != nil {
		ua = r.UserAgent()
	}

	p := Payload{
		{Label: a.labels.ID, Value: u.ID},
		{Label: a.labels.Username, Value: u.Username},
		{Label: a.labels.Email, Value: u.Email},
		{Label: timeLabel, Value: a.now().In(a.loc).Format(TimestampLayout)},
		{Label: a.labels.IPAddress, Value: clientip.ResolveRequest(r)},
		{Label: a.labels.Browser, Value: useragent.Parse(ua).String()},
	}
	if a.hooks != nil {
		p = a.hooks.FilterPayload(ctx, p)
	}
	return p
}

// OnLogin builds and sends the payload for a successful login. Delivery
// failures are logged and otherwise ignored.
func (a *Assembler) OnLogin(ctx context.Context, r *http.Request, u User) {
	eventID := uuid.NewString()
	ctx = WithEventID(ctx, eventID)
	logger := a.logger.With("event_id", eventID, "user_id", u.ID)

	p := a.Build(ctx, r, u)
	logger.Debug("login payload assembled", "fields", p.Labels())

	if a.sender == nil {
		return
	}
	if err := a.sender.Send(ctx, p); err != nil {
		logger.Error("webhook delivery failed", "error", err)
	}
}

type eventIDKey struct{}

// WithEventID tags ctx with the login event identifier.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventID returns the identifier stored by WithEventID, or "".
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)
	return id
}
