package courier_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/coregx/courier"
	"github.com/coregx/courier/adapters/relica"
	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "courier.db") +
		"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, courier.Migrate(context.Background(), db, "sqlite3", courier.DefaultTablePrefix))
	return db
}

type sentEmail struct {
	Recipient string
	Subject   string
	HTMLBody  string
	TextBody  string
}

// fakeTransport records sends. Recipients listed in failFor are rejected.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[string]error)}
}

func (f *fakeTransport) Send(_ context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[recipient.String()]; ok {
		return err
	}
	f.sent = append(f.sent, sentEmail{
		Recipient: recipient.String(),
		Subject:   subject,
		HTMLBody:  htmlBody,
		TextBody:  textBody,
	})
	return nil
}

func (f *fakeTransport) Sent() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// recordingLogger keeps formatted messages per level.
type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Debugf(string, ...interface{}) {}
func (l *recordingLogger) Infof(string, ...interface{})  {}
func (l *recordingLogger) Info(string)                   {}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// stack wires the library against one SQLite database.
type stack struct {
	db          *sql.DB
	repos       *relica.Repositories
	queue       *courier.DeliveryQueue
	coordinator *courier.Coordinator
	transport   *fakeTransport
	logger      *recordingLogger
}

func newStack(t *testing.T, opts ...courier.CoordinatorOption) *stack {
	t.Helper()

	db := openSQLite(t)
	repos := relica.NewRepositories(db, "sqlite3")
	logger := &recordingLogger{}

	queue, err := courier.NewDeliveryQueue(db, repos.Queue)
	require.NoError(t, err)

	coordinator, err := courier.NewCoordinator(append([]courier.CoordinatorOption{
		courier.WithCoordinatorStore(db, repos.Claim),
		courier.WithCoordinatorLogger(logger),
	}, opts...)...)
	require.NoError(t, err)

	return &stack{
		db:          db,
		repos:       repos,
		queue:       queue,
		coordinator: coordinator,
		transport:   newFakeTransport(),
		logger:      logger,
	}
}

func (s *stack) publisher(t *testing.T, opts ...courier.PublisherOption) *courier.Publisher {
	t.Helper()
	p, err := courier.NewPublisher(append([]courier.PublisherOption{
		courier.WithPublisherCoordinator(s.coordinator),
		courier.WithPublisherRepositories(s.repos.PublishAction, s.queue, s.repos.Subscriber),
		courier.WithPublisherTransport(s.transport),
		courier.WithPublisherLogger(s.logger),
	}, opts...)...)
	require.NoError(t, err)
	return p
}

func (s *stack) worker(t *testing.T, opts ...courier.Option) *courier.DeliveryWorker {
	t.Helper()
	w, err := courier.NewDeliveryWorker(append([]courier.Option{
		courier.WithQueue(s.queue),
		courier.WithPublishActions(s.repos.PublishAction),
		courier.WithTransport(s.transport),
		courier.WithLogger(s.logger),
		courier.WithPolicy(retry.Policy{IdleWait: 20 * time.Millisecond, ErrorBackoff: 10 * time.Millisecond}),
	}, opts...)...)
	require.NoError(t, err)
	return w
}

// addConfirmed stores confirmed subscribers verbatim, without address validation,
// so tests can plant addresses that became invalid after they were stored.
func (s *stack) addConfirmed(t *testing.T, emails ...string) {
	t.Helper()
	for i, email := range emails {
		_, err := s.db.Exec(
			"INSERT INTO courier_subscribers (email, name, status, confirmation_token, subscribed_at) VALUES (?, ?, ?, ?, ?)",
			email, fmt.Sprintf("Subscriber %d", i), string(model.SubscriberConfirmed), model.NewConfirmationToken(), time.Now().UTC())
		require.NoError(t, err)
	}
}

func (s *stack) queueLen(t *testing.T) int {
	t.Helper()
	n, err := s.queue.Len(context.Background())
	require.NoError(t, err)
	return n
}

func (s *stack) insertAction(t *testing.T, title string) model.PublishAction {
	t.Helper()
	action := model.NewPublishAction(title, "text "+title, "<p>"+title+"</p>")
	require.NoError(t, s.repos.PublishAction.Insert(context.Background(), s.db, action))
	return action
}

func mustKey(t *testing.T, raw string) model.IdempotencyKey {
	t.Helper()
	key, err := model.ParseIdempotencyKey(raw)
	require.NoError(t, err)
	return key
}

func recipientsOf(sent []sentEmail) []string {
	out := make([]string, 0, len(sent))
	for _, s := range sent {
		out = append(out, s.Recipient)
	}
	return out
}

func sqlNullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
