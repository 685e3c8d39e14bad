package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/warp/meeting-engine/meeting"
)

type fakeChannel struct {
	name   string
	accept func(Recipient) bool
	err    error

	mu   sync.Mutex
	sent []Message
}

func (f *fakeChannel) Name() string              { return f.name }
func (f *fakeChannel) Accepts(to Recipient) bool { return f.accept(to) }
func (f *fakeChannel) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.err
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func sampleNotification() meeting.Notification {
	return meeting.Notification{
		ID:        "n-1",
		Kind:      meeting.NotifyAssigned,
		MeetingID: "current:a",
		Date:      meeting.NewDate(2024, 3, 1),
		Time:      meeting.NewTimeOfDay(10, 30),
		Role:      meeting.RoleManager,
		Assignee:  meeting.Employee{ID: "7", Name: "Jane Doe", Email: "jane.doe@example.com"},
		ChangedBy: meeting.EmployeeRef{ID: "8", Name: "Omer Levi"},
		Conflict:  true,
	}
}

func TestRender(t *testing.T) {
	msg := Render(sampleNotification())

	assert.Equal(t, "jane.doe@example.com", msg.To.Email)
	assert.Equal(t, "You were assigned as manager", msg.Subject)
	assert.Contains(t, msg.Text, "2024-03-01 10:30")
	assert.Contains(t, msg.Text, "Assigned by Omer Levi")
	assert.Contains(t, msg.Text, "unavailable")
}

func TestDispatcher_SkipsChannelsWithoutAddress(t *testing.T) {
	// GIVEN: an email and an sms channel, assignee has only an email
	email := &fakeChannel{name: "email", accept: func(r Recipient) bool { return r.Email != "" }}
	sms := &fakeChannel{name: "sms", accept: func(r Recipient) bool { return r.Phone != "" }}
	d := NewDispatcher(email, sms)

	// WHEN
	err := d.Notify(context.Background(), sampleNotification())

	// THEN: only email sends
	require.NoError(t, err)
	assert.Equal(t, 1, email.count())
	assert.Equal(t, 0, sms.count())
}

func TestDispatcher_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &fakeChannel{name: "a", accept: func(Recipient) bool { return true }, err: boom}
	b := &fakeChannel{name: "b", accept: func(Recipient) bool { return true }}

	err := NewDispatcher(a, b).Notify(context.Background(), sampleNotification())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, b.count(), "a failing channel must not stop the others")
}

type blockingNotifier struct {
	release chan struct{}
	err     error
	called  chan meeting.Notification
}

func (b *blockingNotifier) Notify(_ context.Context, n meeting.Notification) error {
	b.called <- n
	<-b.release
	return b.err
}

func TestAsync_ReturnsImmediatelyAndSwallowsErrors(t *testing.T) {
	// GIVEN: a downstream notifier that blocks then fails
	next := &blockingNotifier{
		release: make(chan struct{}),
		err:     errors.New("smtp down"),
		called:  make(chan meeting.Notification, 1),
	}
	a := NewAsync(next, nil, 0)

	// WHEN: notifying with a context that is cancelled right after
	ctx, cancel := context.WithCancel(context.Background())
	n := sampleNotification()
	n.ID = ""
	err := a.Notify(ctx, n)
	cancel()

	// THEN: no error, delivery still happens with an id assigned
	require.NoError(t, err)
	got := <-next.called
	assert.NotEmpty(t, got.ID)
	close(next.release)
	a.Wait()
}

type fakeSendGrid struct {
	status int
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	return &rest.Response{StatusCode: f.status, Body: "nope"}, nil
}

func TestSendGridChannel(t *testing.T) {
	client := &fakeSendGrid{status: 202}
	ch := &SendGridChannel{client: client, fromName: "Meetings", fromAddr: "noreply@example.com"}

	msg := Render(sampleNotification())
	require.True(t, ch.Accepts(msg.To))
	require.NoError(t, ch.Send(context.Background(), msg))
	require.NotNil(t, client.got)
	assert.Equal(t, msg.Subject, client.got.Subject)
	assert.Equal(t, "noreply@example.com", client.got.From.Address)

	client.status = 400
	assert.Error(t, ch.Send(context.Background(), msg))
}

type fakeTwilio struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = p
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioChannel(t *testing.T) {
	api := &fakeTwilio{}
	ch := &TwilioChannel{api: api, from: "+15550000000"}

	assert.False(t, ch.Accepts(Recipient{Phone: "0501234567"}))
	to := Recipient{Name: "Jane Doe", Phone: "+972501234567"}
	require.True(t, ch.Accepts(to))

	require.NoError(t, ch.Send(context.Background(), Message{To: to, Subject: "s", Text: "t"}))
	require.NotNil(t, api.params.To)
	assert.Equal(t, "+972501234567", *api.params.To)
	assert.Equal(t, "+15550000000", *api.params.From)

	api.err = errors.New("rate limited")
	assert.Error(t, ch.Send(context.Background(), Message{To: to}))
}

func TestNewChannels_RequireCredentials(t *testing.T) {
	_, err := NewSendGridChannel("", "a@b.c", "")
	assert.Error(t, err)
	_, err = NewTwilioChannel("sid", "", "+1")
	assert.Error(t, err)

	sg, err := NewSendGridChannel("key", "a@b.c", "")
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", sg.Name())
}
