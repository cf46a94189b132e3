package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/domain"
)

// fakeTicketRepo is an in-memory store that mirrors the postgres contract:
// one ticket per customer number, atomic appends, monotonically increasing
// message ids.
type fakeTicketRepo struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	byNumber map[string]string
	messages map[string][]domain.TicketMessage
	nextMsg  int64

	// lookupMisses forces GetByNumber to report not-found for the next N
	// calls, simulating two requests racing past the initial lookup.
	lookupMisses int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:  make(map[string]*domain.Ticket),
		byNumber: make(map[string]string),
		messages: make(map[string][]domain.TicketMessage),
	}
}

func (f *fakeTicketRepo) CreateWithMessage(_ context.Context, customerNumber string, msg *domain.TicketMessage) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byNumber[customerNumber]; exists {
		return nil, domain.ErrDuplicateNumber
	}
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		CustomerNumber: customerNumber,
		Open:           true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.tickets[ticket.ID] = ticket
	f.byNumber[customerNumber] = ticket.ID
	f.nextMsg++
	stored := *msg
	stored.ID = f.nextMsg
	stored.TicketID = ticket.ID
	stored.CreatedAt = time.Now()
	f.messages[ticket.ID] = append(f.messages[ticket.ID], stored)
	msg.ID = stored.ID
	msg.TicketID = ticket.ID
	return ticket, nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) GetByNumber(_ context.Context, customerNumber string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupMisses > 0 {
		f.lookupMisses--
		return nil, domain.ErrTicketNotFound
	}
	id, ok := f.byNumber[customerNumber]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	copied := *f.tickets[id]
	return &copied, nil
}

func (f *fakeTicketRepo) AppendMessage(_ context.Context, ticketID string, msg *domain.TicketMessage, reopen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if reopen {
		ticket.Open = true
	}
	ticket.UpdatedAt = time.Now()
	f.nextMsg++
	stored := *msg
	stored.ID = f.nextMsg
	stored.TicketID = ticketID
	stored.CreatedAt = time.Now()
	f.messages[ticketID] = append(f.messages[ticketID], stored)
	msg.ID = stored.ID
	msg.TicketID = ticketID
	return nil
}

func (f *fakeTicketRepo) ListMessages(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TicketMessage{}, f.messages[ticketID]...), nil
}

func (f *fakeTicketRepo) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if ticket.Open {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (f *fakeTicketRepo) SetOpen(_ context.Context, ticketID string, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	ticket.Open = open
	return nil
}

func (f *fakeTicketRepo) ticketCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

type sentMessage struct {
	To   string
	Text string
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMessage
	fail  bool
	calls int
}

func (f *fakeSender) Send(_ context.Context, to, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("provider unreachable")
	}
	f.sent = append(f.sent, sentMessage{To: to, Text: text})
	return "msg-1", nil
}

func (f *fakeSender) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage{}, f.sent...)
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now()
	f.entries = append(f.entries, *history)
	return nil
}

func (f *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range f.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func newTestService(repo *fakeTicketRepo, sender *fakeSender, history *fakeHistoryRepo) *TicketService {
	deps := TicketDependencies{
		TicketRepo: repo,
		Sender:     sender,
		Logger:     zap.NewNop(),
	}
	if history != nil {
		deps.HistoryRepo = history
	}
	return NewTicketService(deps)
}

func TestReceiveInboundCreatesTicketAndConfirms(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)

	require.NoError(t, svc.ReceiveInbound(context.Background(), "+15551230000", "Hi, I need help"))

	ticket, err := repo.GetByNumber(context.Background(), "+15551230000")
	require.NoError(t, err)
	assert.True(t, ticket.Open)

	msgs, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.DirectionInbound, msgs[0].Direction)
	assert.Equal(t, "Hi, I need help", msgs[0].Content)

	sent := sender.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+15551230000", sent[0].To)
	assert.Contains(t, sent[0].Text, ShortTicketID(ticket.ID))
}

func TestReceiveInboundAppendsToExistingTicket(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15551230000", "Hi, I need help"))
	require.NoError(t, svc.ReceiveInbound(ctx, "+15551230000", "Still waiting"))

	assert.Equal(t, 1, repo.ticketCount())

	ticket, err := repo.GetByNumber(ctx, "+15551230000")
	require.NoError(t, err)
	msgs, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Still waiting", msgs[1].Content)

	// Only the first contact triggers a confirmation.
	assert.Len(t, sender.sentMessages(), 1)
}

func TestReceiveInboundManyMessagesSingleTicketInOrder(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeSender{}, nil)
	ctx := context.Background()

	texts := []string{"first", "second", "third", "fourth", "fifth"}
	for _, text := range texts {
		require.NoError(t, svc.ReceiveInbound(ctx, "+15550001111", text))
	}

	assert.Equal(t, 1, repo.ticketCount())
	ticket, err := repo.GetByNumber(ctx, "+15550001111")
	require.NoError(t, err)
	msgs, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, msgs[i].Content)
		assert.Equal(t, domain.DirectionInbound, msgs[i].Direction)
	}
}

func TestReceiveInboundLostCreateRaceRetriesAsAppend(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)
	ctx := context.Background()

	// Both requests observe "no ticket" before either create commits.
	repo.lookupMisses = 2

	require.NoError(t, svc.ReceiveInbound(ctx, "+15552220000", "message one"))
	require.NoError(t, svc.ReceiveInbound(ctx, "+15552220000", "message two"))

	assert.Equal(t, 1, repo.ticketCount())
	ticket, err := repo.GetByNumber(ctx, "+15552220000")
	require.NoError(t, err)
	msgs, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "message one", msgs[0].Content)
	assert.Equal(t, "message two", msgs[1].Content)

	// Exactly one confirmation: the create winner's.
	assert.Len(t, sender.sentMessages(), 1)
}

func TestReceiveInboundConcurrentFirstContact(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.ReceiveInbound(context.Background(), "+15553330000", "hello"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.ticketCount())
	ticket, err := repo.GetByNumber(context.Background(), "+15553330000")
	require.NoError(t, err)
	msgs, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, workers)
	assert.Len(t, sender.sentMessages(), 1)
}

func TestReceiveInboundConfirmationFailureKeepsTicket(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{fail: true}
	svc := newTestService(repo, sender, nil)

	require.NoError(t, svc.ReceiveInbound(context.Background(), "+15554440000", "hello"))

	ticket, err := repo.GetByNumber(context.Background(), "+15554440000")
	require.NoError(t, err)
	msgs, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestReceiveInboundRejectsEmptyPayload(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeSender{}, nil)

	assert.Error(t, svc.ReceiveInbound(context.Background(), "", "hello"))
	assert.Error(t, svc.ReceiveInbound(context.Background(), "+15550000000", "  "))
	assert.Equal(t, 0, repo.ticketCount())
}

func TestReplyAppendsOutboundAndRelays(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15551230000", "Hi, I need help"))
	ticket, err := repo.GetByNumber(ctx, "+15551230000")
	require.NoError(t, err)

	before, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Reply(ctx, ticket.ID, "We are looking into it"))

	after, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)])

	last := after[len(after)-1]
	assert.Equal(t, domain.DirectionOutbound, last.Direction)
	assert.Equal(t, "We are looking into it", last.Content)

	sent := sender.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "+15551230000", sent[1].To)
	assert.Equal(t, "We are looking into it", sent[1].Text)
}

func TestReplyToUnknownTicketIsNoOp(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)

	err := svc.Reply(context.Background(), uuid.NewString(), "anyone there?")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
	assert.Equal(t, 0, repo.ticketCount())
	assert.Empty(t, sender.sentMessages())
}

func TestReplySendFailureKeepsMessage(t *testing.T) {
	repo := newFakeTicketRepo()
	sender := &fakeSender{}
	svc := newTestService(repo, sender, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15555550000", "hello"))
	ticket, err := repo.GetByNumber(ctx, "+15555550000")
	require.NoError(t, err)

	sender.fail = true
	require.NoError(t, svc.Reply(ctx, ticket.ID, "reply that never arrives"))

	msgs, err := repo.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.DirectionOutbound, msgs[1].Direction)
}

func TestInboundReopensClosedTicket(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeSender{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15556660000", "hello"))
	ticket, err := repo.GetByNumber(ctx, "+15556660000")
	require.NoError(t, err)
	require.NoError(t, svc.CloseTicket(ctx, ticket.ID, "agent"))

	closed, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.False(t, closed.Open)

	require.NoError(t, svc.ReceiveInbound(ctx, "+15556660000", "me again"))
	reopened, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, reopened.Open)
}

func TestReplyReopensClosedTicket(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeSender{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15557770000", "hello"))
	ticket, err := repo.GetByNumber(ctx, "+15557770000")
	require.NoError(t, err)
	require.NoError(t, svc.CloseTicket(ctx, ticket.ID, "agent"))

	require.NoError(t, svc.Reply(ctx, ticket.ID, "following up"))
	reopened, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, reopened.Open)
}

func TestCloseTicketRecordsHistory(t *testing.T) {
	repo := newFakeTicketRepo()
	history := &fakeHistoryRepo{}
	svc := newTestService(repo, &fakeSender{}, history)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15558880000", "hello"))
	ticket, err := repo.GetByNumber(ctx, "+15558880000")
	require.NoError(t, err)

	require.NoError(t, svc.CloseTicket(ctx, ticket.ID, "agent"))
	require.NoError(t, svc.ReceiveInbound(ctx, "+15558880000", "back again"))

	entries, err := history.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ChangeTypeOpened, entries[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeClosed, entries[1].ChangeType)
	assert.Equal(t, "agent", entries[1].Actor)
	assert.Equal(t, domain.ChangeTypeReopened, entries[2].ChangeType)
	assert.Equal(t, "customer", entries[2].Actor)
}

func TestCloseTicketAlreadyClosedIsNoOp(t *testing.T) {
	repo := newFakeTicketRepo()
	history := &fakeHistoryRepo{}
	svc := newTestService(repo, &fakeSender{}, history)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15559990000", "hello"))
	ticket, err := repo.GetByNumber(ctx, "+15559990000")
	require.NoError(t, err)

	require.NoError(t, svc.CloseTicket(ctx, ticket.ID, "agent"))
	require.NoError(t, svc.CloseTicket(ctx, ticket.ID, "agent"))

	entries, err := history.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestListOpenTicketsAnnotatesShortIDs(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeSender{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.ReceiveInbound(ctx, "+15550000001", "a"))
	require.NoError(t, svc.ReceiveInbound(ctx, "+15550000002", "b"))

	views, err := svc.ListOpenTickets(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		assert.Equal(t, ShortTicketID(view.Ticket.ID), view.ShortID)
		assert.NotEmpty(t, view.Messages)
	}
}

func TestStringPreviewKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", stringPreview("short", 120))
	assert.Equal(t, "abcdefg...", stringPreview(strings.Repeat("abcdefghij", 3), 10))

	long := strings.Repeat("über", 40)
	got := stringPreview(long, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "überübe...", got)

	assert.Equal(t, "日本", stringPreview("日本語のテキスト", 2))
}
