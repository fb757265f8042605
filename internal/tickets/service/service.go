package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clawnema/internal/logger"
	"clawnema/internal/models"
	"clawnema/internal/payment"
	ticketdb "clawnema/internal/tickets/db"
	theaterdb "clawnema/internal/theaters/db"
	"clawnema/internal/utils"
)

var ErrSessionNotFound = errors.New("session not found or expired")

type TicketLedger interface {
	Insert(ctx context.Context, ticket *models.Ticket) error
	IsTxUsed(ctx context.Context, txHash string) (bool, error)
	FindBySessionToken(ctx context.Context, token string, now time.Time) (*models.Ticket, error)
}

type TheaterLookup interface {
	Get(ctx context.Context, id string) (*models.Theater, error)
	GetActive(ctx context.Context, id string) (*models.Theater, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, theater *models.Theater, claimedRef string) (*payment.Verification, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type TicketService struct {
	Ledger          TicketLedger
	Theaters        TheaterLookup
	Verifier        PaymentVerifier
	Publisher       EventPublisher
	Logger          *logger.Logger
	SessionDuration time.Duration
	IssuedTopic     string
	// PublishTimeout bounds the best-effort event write; zero means two seconds.
	PublishTimeout time.Duration
	Now            func() time.Time
}

const defaultPublishTimeout = 2 * time.Second

func NewTicketService(ledger TicketLedger, theaters TheaterLookup, verifier PaymentVerifier, publisher EventPublisher, l *logger.Logger, sessionDuration time.Duration, issuedTopic string) *TicketService {
	return &TicketService{
		Ledger:          ledger,
		Theaters:        theaters,
		Verifier:        verifier,
		Publisher:       publisher,
		Logger:          l,
		SessionDuration: sessionDuration,
		IssuedTopic:     issuedTopic,
		Now:             time.Now,
	}
}

// Purchase is a minted session.
type Purchase struct {
	TicketID     string                `json:"-"`
	SessionToken string                `json:"session_token"`
	ExpiresAt    time.Time             `json:"expires_at"`
	Theater      models.TheaterSummary `json:"theater"`
	TxHash       string                `json:"tx_hash"`
	Method       string                `json:"verification_method"`
}

// Purchase verifies claimedRef as payment for theaterID and mints a session.
// Each step is a hard gate; nothing is written unless every gate passes.
func (s *TicketService) Purchase(ctx context.Context, agentID, claimedRef, theaterID string) (*Purchase, error) {
	agentID = strings.TrimSpace(agentID)
	theaterID = strings.TrimSpace(theaterID)
	ref := payment.NormalizeRef(claimedRef)

	if agentID == "" || ref == "" || theaterID == "" {
		return nil, &PurchaseError{Kind: KindInvalidRequest, Message: "Missing required fields: agent_id, tx_hash, theater_id"}
	}

	if err := s.checkUnused(ctx, ref); err != nil {
		return nil, err
	}

	theater, err := s.Theaters.GetActive(ctx, theaterID)
	if errors.Is(err, theaterdb.ErrNotFound) {
		return nil, &PurchaseError{Kind: KindTheaterNotFound, Message: "Theater not found"}
	}
	if err != nil {
		return nil, s.internal("load theater", err)
	}

	verified, err := s.Verifier.Verify(ctx, theater, ref)
	if err != nil {
		return nil, &PurchaseError{Kind: KindPayment, Err: err}
	}

	// The log scan may have bound the claim to a different on-chain hash.
	if verified.CanonicalTxID != ref {
		if err := s.checkUnused(ctx, verified.CanonicalTxID); err != nil {
			return nil, err
		}
	}

	now := s.Now().UTC()
	ticket := &models.Ticket{
		ID:                 utils.GenerateID(),
		AgentID:            agentID,
		TxHash:             verified.CanonicalTxID,
		ClaimedRef:         ref,
		TheaterID:          theater.ID,
		SessionToken:       utils.GenerateSessionToken(),
		AmountUnits:        verified.Amount.String(),
		VerificationMethod: verified.Method,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.SessionDuration),
	}

	if err := s.Ledger.Insert(ctx, ticket); err != nil {
		if errors.Is(err, ticketdb.ErrDuplicateKey) {
			s.Logger.LogSecurity("DOUBLE_SPEND", fmt.Sprintf("concurrent claim on %s lost the insert race", ticket.TxHash))
			return nil, duplicate()
		}
		return nil, s.internal("insert ticket", err)
	}

	s.Logger.LogTicket("ISSUED", ticket.ID, fmt.Sprintf("agent %s, theater %s, tx %s via %s", agentID, theater.ID, ticket.TxHash, ticket.VerificationMethod))
	s.publishIssued(ctx, ticket)

	return &Purchase{
		TicketID:     ticket.ID,
		SessionToken: ticket.SessionToken,
		ExpiresAt:    ticket.ExpiresAt,
		Theater:      theater.Summary(),
		TxHash:       ticket.TxHash,
		Method:       ticket.VerificationMethod,
	}, nil
}

func duplicate() *PurchaseError {
	return &PurchaseError{Kind: KindDuplicateTransaction, Message: "Transaction already used for a ticket"}
}

func (s *TicketService) checkUnused(ctx context.Context, txHash string) error {
	used, err := s.Ledger.IsTxUsed(ctx, txHash)
	if err != nil {
		return s.internal("check tx usage", err)
	}
	if used {
		return duplicate()
	}
	return nil
}

func (s *TicketService) internal(op string, err error) *PurchaseError {
	s.Logger.Error("TICKET", fmt.Sprintf("%s: %v", op, err))
	return &PurchaseError{Kind: KindInternal, Message: "Failed to process ticket purchase", Err: fmt.Errorf("%s: %w", op, err)}
}

// publishIssued is best effort; the ticket is already committed.
func (s *TicketService) publishIssued(ctx context.Context, t *models.Ticket) {
	if s.Publisher == nil {
		return
	}
	event := models.TicketIssuedEvent{
		TicketID:           t.ID,
		AgentID:            t.AgentID,
		TheaterID:          t.TheaterID,
		TxHash:             t.TxHash,
		AmountUnits:        t.AmountUnits,
		VerificationMethod: t.VerificationMethod,
		IssuedAt:           t.CreatedAt,
		ExpiresAt:          t.ExpiresAt,
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	// The buyer's disconnect must not cancel the write, and a stalled broker
	// must not hold the response.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Publisher.Publish(pubCtx, s.IssuedTopic, t.TheaterID, event); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish ticket issued event for %s: %v", t.ID, err))
	}
}

// Authenticate resolves a live session token to its ticket.
func (s *TicketService) Authenticate(ctx context.Context, token string) (*models.Ticket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	ticket, err := s.Ledger.FindBySessionToken(ctx, token, s.Now())
	if errors.Is(err, ticketdb.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate session: %w", err)
	}
	return ticket, nil
}

type SessionInfo struct {
	AgentID      string    `json:"agent_id"`
	TheaterID    string    `json:"theater_id"`
	TheaterTitle string    `json:"theater_title"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *TicketService) Session(ctx context.Context, token string) (*SessionInfo, error) {
	ticket, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	info := &SessionInfo{
		AgentID:   ticket.AgentID,
		TheaterID: ticket.TheaterID,
		ExpiresAt: ticket.ExpiresAt,
		CreatedAt: ticket.CreatedAt,
	}
	// A theater removed from the catalog still leaves the session readable.
	if theater, err := s.Theaters.Get(ctx, ticket.TheaterID); err == nil {
		info.TheaterTitle = theater.Title
	} else if !errors.Is(err, theaterdb.ErrNotFound) {
		return nil, fmt.Errorf("load theater for session: %w", err)
	}
	return info, nil
}
